package domain

import "time"

// StaffMember models a support engineer or dispatcher.
type StaffMember struct {
	ID        string
	Name      string
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
