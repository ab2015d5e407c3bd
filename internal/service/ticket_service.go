package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/errorutil"
)

// TimerLifecycle drives a ticket's SLA timer.
type TimerLifecycle interface {
	Start(ctx context.Context, ticketID string, priority domain.TicketPriority, now time.Time) (*domain.SLATimer, error)
	Pause(ctx context.Context, ticketID string) error
	Resume(ctx context.Context, ticketID string) error
	Complete(ctx context.Context, ticketID string) error
}

// TicketService coordinates ticket workflows and keeps the SLA timer in step.
type TicketService struct {
	tickets    repository.TicketRepository
	staff      repository.StaffRepository
	timers     TimerLifecycle
	dispatcher events.Dispatcher
	clock      sla.Clock
	logger     *zap.Logger

	dispatcherID string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	StaffRepo  repository.StaffRepository
	Timers     TimerLifecycle
	Dispatcher events.Dispatcher
	Clock      sla.Clock
	Logger     *zap.Logger
	// DispatcherID is the staff member that tickets opened without an assignee are
	// handed to. Empty leaves such tickets unassigned.
	DispatcherID string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterEmail string
	Title          string
	Description    string
	Priority       domain.TicketPriority
	AssigneeID     *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = sla.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		staff:      deps.StaffRepo,
		timers:     deps.Timers,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,

		dispatcherID: deps.DispatcherID,
	}
}

// CreateTicket opens a ticket and starts its SLA timer.
func (s *TicketService) CreateTicket(ctx context.Context, actorID string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	requester, err := mail.ParseAddress(strings.TrimSpace(input.RequesterEmail))
	if err != nil {
		return nil, apperrors.NewValidationError("requester_email is invalid", map[string]any{"field": "requester_email"})
	}
	priority := domain.TicketPriority(strings.ToUpper(string(input.Priority)))
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("priority is invalid", map[string]any{"field": "priority"})
	}

	var assignee *domain.StaffMember
	autoAssigned := false
	if input.AssigneeID != nil {
		if assignee, err = s.activeStaff(ctx, *input.AssigneeID); err != nil {
			return nil, err
		}
	} else if s.dispatcherID != "" {
		assignee = s.defaultDispatcher(ctx)
		autoAssigned = assignee != nil
	}

	ticket := &domain.Ticket{
		ExternalKey:    generateTicketKey(),
		RequesterEmail: requester.Address,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
	}
	if assignee != nil {
		ticket.AssigneeID = &assignee.ID
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	if _, err := s.timers.Start(ctx, ticket.ID, ticket.Priority, s.clock.Now()); err != nil {
		s.discardTicket(ctx, ticket.ID, err)
		return nil, err
	}

	payload := events.TicketCreatedPayload{Ticket: *ticket, AutoAssigned: autoAssigned}
	if assignee != nil {
		payload.AssigneeEmail = assignee.Email
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  payload,
	})
	return ticket, nil
}

// AssignTicket hands the ticket to a staff member.
func (s *TicketService) AssignTicket(ctx context.Context, actorID, ticketID, staffID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound("ticket", ticketID, err)
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"status": ticket.Status})
	}
	staff, err := s.activeStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}

	ticket.AssigneeID = &staff.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	payload := events.TicketAssignedPayload{Ticket: *ticket, Assignee: *staff}
	if actorID != "" && actorID != staff.ID {
		if actor, err := s.staff.GetByID(ctx, actorID); err == nil {
			payload.AssignedBy = actor
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  payload,
	})
	return ticket, nil
}

// UpdateStatus moves a ticket through its workflow. Terminal statuses complete the SLA
// timer, waiting on the requester pauses it and leaving that wait resumes it.
func (s *TicketService) UpdateStatus(ctx context.Context, actorID, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("status is invalid", map[string]any{"field": "status"})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound("ticket", ticketID, err)
	}
	if ticket.Status == newStatus {
		return ticket, nil
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   newStatus,
		})
	}

	oldStatus := ticket.Status
	if newStatus.Terminal() {
		now := s.clock.Now()
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
	ticket.Status = newStatus
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.syncTimer(ctx, ticket, oldStatus); err != nil {
		return nil, err
	}

	payload := events.TicketStatusChangedPayload{Ticket: *ticket, OldStatus: oldStatus, NewStatus: newStatus}
	if ticket.AssigneeID != nil {
		if staff, err := s.staff.GetByID(ctx, *ticket.AssigneeID); err == nil {
			payload.AssigneeName = staff.Name
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  payload,
	})
	return ticket, nil
}

func (s *TicketService) syncTimer(ctx context.Context, ticket *domain.Ticket, oldStatus domain.TicketStatus) error {
	var err error
	switch {
	case ticket.Status.Terminal():
		err = s.timers.Complete(ctx, ticket.ID)
	case oldStatus.Terminal():
		// Reopened: the old timer is done, track the new attempt from now.
		_, err = s.timers.Start(ctx, ticket.ID, ticket.Priority, s.clock.Now())
	case ticket.Status == domain.TicketStatusPendingUser:
		err = s.timers.Pause(ctx, ticket.ID)
	case oldStatus == domain.TicketStatusPendingUser:
		err = s.timers.Resume(ctx, ticket.ID)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, sla.ErrNotFound) || errors.Is(err, sla.ErrInvalidTransition) {
		s.logger.Warn("sla timer left unchanged",
			zap.String("ticket_id", ticket.ID),
			zap.String("status", string(ticket.Status)),
			zap.Error(err),
		)
		return nil
	}
	return err
}

// defaultDispatcher returns the configured dispatcher, or nil when they cannot take
// tickets right now.
func (s *TicketService) defaultDispatcher(ctx context.Context) *domain.StaffMember {
	staff, err := s.activeStaff(ctx, s.dispatcherID)
	if err != nil {
		s.logger.Warn("default dispatcher unavailable, ticket left unassigned",
			zap.String("staff_id", s.dispatcherID),
			zap.Error(err),
		)
		return nil
	}
	return staff
}

// discardTicket removes a ticket whose SLA timer could not be started.
func (s *TicketService) discardTicket(ctx context.Context, ticketID string, cause error) {
	if err := s.tickets.Delete(context.WithoutCancel(ctx), ticketID); err != nil {
		s.logger.Error("remove ticket without sla timer",
			zap.String("ticket_id", ticketID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

func (s *TicketService) activeStaff(ctx context.Context, staffID string) (*domain.StaffMember, error) {
	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return nil, notFound("staff member", staffID, err)
	}
	if !staff.Active {
		return nil, apperrors.NewValidationError("staff member is inactive", map[string]any{"staff_id": staffID})
	}
	return staff, nil
}

func notFound(resource, id string, err error) error {
	if repository.IsNotFound(err) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:        {domain.TicketStatusInProgress, domain.TicketStatusPendingUser, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress:  {domain.TicketStatusPendingUser, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusPendingUser: {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusResolved:    {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:      {},
	domain.TicketStatusCancelled:   {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	s.dispatcher.Publish(ctx, event)
}
