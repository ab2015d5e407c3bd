package domain

import "time"

// NotificationKind identifies the message a notification renders into.
type NotificationKind string

const (
	NotificationSLAWarning          NotificationKind = "SLA_WARNING"
	NotificationSLABreach           NotificationKind = "SLA_BREACH"
	NotificationTicketCreated       NotificationKind = "TICKET_CREATED"
	NotificationTicketAssigned      NotificationKind = "TICKET_ASSIGNED"
	NotificationTicketStatusChanged NotificationKind = "TICKET_STATUS_CHANGED"
	// NotificationTicketAutoAssigned tells the default dispatcher that an unassigned
	// ticket landed on them.
	NotificationTicketAutoAssigned NotificationKind = "TICKET_AUTO_ASSIGNED"
	// NotificationAssignmentConfirmed tells the staff member who assigned a ticket
	// that the assignment went through.
	NotificationAssignmentConfirmed NotificationKind = "TICKET_ASSIGNMENT_CONFIRMED"
)

// RecipientRole describes why a recipient receives a ticket notification.
type RecipientRole string

const (
	RecipientAssignee     RecipientRole = "assignee"
	RecipientRequester    RecipientRole = "requester"
	RecipientDispatcher   RecipientRole = "dispatcher"
	RecipientDeveloperOrg RecipientRole = "developer_org"
)

// NotificationEvent is an ephemeral message handed to the notification dispatcher.
// Recipient is always resolved before the event is built.
type NotificationEvent struct {
	Kind      NotificationKind  `json:"kind"`
	TicketID  string            `json:"ticket_id"`
	TicketKey string            `json:"ticket_key,omitempty"`
	Recipient string            `json:"recipient"`
	Role      RecipientRole     `json:"role,omitempty"`
	DueDate   *time.Time        `json:"due_date,omitempty"`
	Title     string            `json:"title,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Keys of NotificationEvent.Details.
const (
	DetailDescription   = "description"
	DetailStatus        = "status"
	DetailAssigneeName  = "assignee_name"
	DetailAssigneeEmail = "assignee_email"
)
