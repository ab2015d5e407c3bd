package domain

import (
	"strings"
	"time"
)

// SLAStatus enumerates the lifecycle states of an SLA timer.
type SLAStatus string

const (
	SLAStatusActive    SLAStatus = "ACTIVE"
	SLAStatusPaused    SLAStatus = "PAUSED"
	SLAStatusCompleted SLAStatus = "COMPLETED"
	SLAStatusBreached  SLAStatus = "BREACHED"
)

// Valid reports whether s is a known status.
func (s SLAStatus) Valid() bool {
	switch s {
	case SLAStatusActive, SLAStatusPaused, SLAStatusCompleted, SLAStatusBreached:
		return true
	}
	return false
}

// ParseSLAStatus accepts any letter case.
func ParseSLAStatus(raw string) (SLAStatus, bool) {
	status := SLAStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// SLATimer is the deadline clock for one ticket's service-level agreement.
//
// WarningSent and BreachNotificationSent only ever move from false to true.
// DueDate is fixed when the timer is created.
type SLATimer struct {
	ID                     string
	TicketID               string
	TicketKey              string
	AssigneeEmail          *string
	DueDate                time.Time
	Status                 SLAStatus
	WarningSent            bool
	BreachNotificationSent bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsBreached reports whether the due date has passed or is exactly now.
func (t SLATimer) IsBreached(now time.Time) bool {
	return !now.Before(t.DueDate)
}

// TimeToDue returns the remaining time until the due date; negative once overdue.
func (t SLATimer) TimeToDue(now time.Time) time.Duration {
	return t.DueDate.Sub(now)
}
