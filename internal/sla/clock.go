package sla

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant. Used by one-off runs and tests.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
