package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
)

// Enqueuer accepts notification events for asynchronous delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, event domain.NotificationEvent)
}

// NotificationService turns ticket events into queued notifications.
type NotificationService struct {
	dispatcher   events.Dispatcher
	notifier     Enqueuer
	logger       *zap.Logger
	developerOrg string
}

// NotificationOption configures the notification service.
type NotificationOption func(*NotificationService)

// WithDeveloperOrgEmail copies every new ticket to the developer organisation mailbox.
func WithDeveloperOrgEmail(address string) NotificationOption {
	return func(n *NotificationService) {
		n.developerOrg = strings.TrimSpace(address)
	}
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier Enqueuer, logger *zap.Logger, opts ...NotificationOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	ticket := payload.Ticket
	details := map[string]string{domain.DetailDescription: ticket.Description}
	created := func(recipient string, role domain.RecipientRole) domain.NotificationEvent {
		return domain.NotificationEvent{
			Kind:      domain.NotificationTicketCreated,
			TicketID:  ticket.ID,
			TicketKey: ticket.ExternalKey,
			Recipient: recipient,
			Role:      role,
			Title:     ticket.Title,
			Details:   details,
		}
	}

	if payload.AutoAssigned {
		notice := created(payload.AssigneeEmail, domain.RecipientDispatcher)
		notice.Kind = domain.NotificationTicketAutoAssigned
		n.send(ctx, notice)
	} else {
		n.send(ctx, created(payload.AssigneeEmail, domain.RecipientAssignee))
	}
	n.send(ctx, created(n.developerOrg, domain.RecipientDeveloperOrg))
	n.send(ctx, created(ticket.RequesterEmail, domain.RecipientRequester))
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.send(ctx, domain.NotificationEvent{
		Kind:      domain.NotificationTicketAssigned,
		TicketID:  payload.Ticket.ID,
		TicketKey: payload.Ticket.ExternalKey,
		Recipient: payload.Assignee.Email,
		Role:      domain.RecipientAssignee,
		Title:     payload.Ticket.Title,
		Details: map[string]string{
			domain.DetailDescription:  payload.Ticket.Description,
			domain.DetailAssigneeName: payload.Assignee.Name,
		},
	})
	if payload.AssignedBy != nil {
		n.send(ctx, domain.NotificationEvent{
			Kind:      domain.NotificationAssignmentConfirmed,
			TicketID:  payload.Ticket.ID,
			TicketKey: payload.Ticket.ExternalKey,
			Recipient: payload.AssignedBy.Email,
			Role:      domain.RecipientDispatcher,
			Title:     payload.Ticket.Title,
			Details: map[string]string{
				domain.DetailAssigneeName:  payload.Assignee.Name,
				domain.DetailAssigneeEmail: payload.Assignee.Email,
			},
		})
	}
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	n.send(ctx, domain.NotificationEvent{
		Kind:      domain.NotificationTicketStatusChanged,
		TicketID:  payload.Ticket.ID,
		TicketKey: payload.Ticket.ExternalKey,
		Recipient: payload.Ticket.RequesterEmail,
		Role:      domain.RecipientRequester,
		Title:     payload.Ticket.Title,
		Details: map[string]string{
			domain.DetailStatus:       string(payload.NewStatus),
			domain.DetailAssigneeName: payload.AssigneeName,
		},
	})
	return nil
}

// send skips events without a recipient.
func (n *NotificationService) send(ctx context.Context, event domain.NotificationEvent) {
	if strings.TrimSpace(event.Recipient) == "" {
		n.logger.Debug("notification has no recipient",
			zap.String("kind", string(event.Kind)),
			zap.String("ticket_id", event.TicketID),
			zap.String("role", string(event.Role)),
		)
		return
	}
	n.notifier.Enqueue(ctx, event)
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("event %s: unexpected payload %T", event.Type, event.Payload)
}
