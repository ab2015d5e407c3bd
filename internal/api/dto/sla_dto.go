package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SLATimerResponse describes one timer.
type SLATimerResponse struct {
	ID                     string           `json:"id"`
	TicketID               string           `json:"ticket_id"`
	TicketKey              string           `json:"ticket_key"`
	DueDate                time.Time        `json:"due_date"`
	Status                 domain.SLAStatus `json:"status"`
	WarningSent            bool             `json:"warning_sent"`
	BreachNotificationSent bool             `json:"breach_notification_sent"`
}

// NewSLATimerResponse maps a domain timer. The assignee email is not exposed.
func NewSLATimerResponse(t domain.SLATimer) SLATimerResponse {
	return SLATimerResponse{
		ID:                     t.ID,
		TicketID:               t.TicketID,
		TicketKey:              t.TicketKey,
		DueDate:                t.DueDate,
		Status:                 t.Status,
		WarningSent:            t.WarningSent,
		BreachNotificationSent: t.BreachNotificationSent,
	}
}

// SLACheckResponse wraps the summary of a manual pass.
type SLACheckResponse struct {
	Summary string `json:"summary"`
}
