package events

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
	// AssigneeEmail is empty when the ticket was opened unassigned.
	AssigneeEmail string `json:"assignee_email,omitempty"`
	// AutoAssigned is set when the ticket went to the default dispatcher.
	AutoAssigned bool `json:"auto_assigned,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Ticket   domain.Ticket      `json:"ticket"`
	Assignee domain.StaffMember `json:"assignee"`
	// AssignedBy is the staff member who made the assignment, when it was not the
	// assignee themselves.
	AssignedBy *domain.StaffMember `json:"assigned_by,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Ticket       domain.Ticket       `json:"ticket"`
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	AssigneeName string              `json:"assignee_name,omitempty"`
}
