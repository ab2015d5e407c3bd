package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

// TimerRepository is the slice of the timer store the lifecycle needs.
type TimerRepository interface {
	Create(ctx context.Context, timer *domain.SLATimer) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.SLATimer, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.SLAStatus) error
}

// Lifecycle owns timer status changes driven by ticket workflow. It never touches the
// notification flags and never rewrites a due date.
type Lifecycle struct {
	timers   TimerRepository
	policies *Policies
	logger   *zap.Logger
}

// NewLifecycle builds a lifecycle manager; nil policies fall back to DefaultPolicies.
func NewLifecycle(timers TimerRepository, policies *Policies, logger *zap.Logger) *Lifecycle {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{timers: timers, policies: policies, logger: logger}
}

// Start opens an Active timer for the ticket. A ticket holds at most one open timer.
func (l *Lifecycle) Start(ctx context.Context, ticketID string, priority domain.TicketPriority, now time.Time) (*domain.SLATimer, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("%w: empty ticket id", ErrNotFound)
	}
	timer := &domain.SLATimer{
		TicketID: ticketID,
		DueDate:  l.policies.DueDate(priority, now),
		Status:   domain.SLAStatusActive,
	}
	if err := l.timers.Create(ctx, timer); err != nil {
		if errors.Is(err, repository.ErrOpenTimerExists) {
			return nil, fmt.Errorf("%w: ticket %s already has an open timer", ErrInvalidTransition, ticketID)
		}
		return nil, fmt.Errorf("create sla timer: %w", err)
	}
	l.logger.Info("sla timer started",
		zap.String("timer_id", timer.ID),
		zap.String("ticket_id", ticketID),
		zap.String("priority", string(priority)),
		zap.Time("due_date", timer.DueDate),
	)
	return timer, nil
}

// Pause stops an Active timer from being evaluated.
func (l *Lifecycle) Pause(ctx context.Context, ticketID string) error {
	return l.transition(ctx, ticketID, domain.SLAStatusPaused, domain.SLAStatusActive)
}

// Resume re-activates a Paused timer.
func (l *Lifecycle) Resume(ctx context.Context, ticketID string) error {
	return l.transition(ctx, ticketID, domain.SLAStatusActive, domain.SLAStatusPaused)
}

// Complete ends tracking for an Active or Paused timer.
func (l *Lifecycle) Complete(ctx context.Context, ticketID string) error {
	return l.transition(ctx, ticketID, domain.SLAStatusCompleted, domain.SLAStatusActive, domain.SLAStatusPaused)
}

func (l *Lifecycle) transition(ctx context.Context, ticketID string, to domain.SLAStatus, from ...domain.SLAStatus) error {
	timer, err := l.timers.GetByTicketID(ctx, ticketID)
	if err != nil {
		if repository.IsNotFound(err) {
			return fmt.Errorf("%w: no sla timer for ticket %s", ErrNotFound, ticketID)
		}
		return fmt.Errorf("load sla timer: %w", err)
	}
	if timer.Status == to {
		return nil
	}

	allowed := false
	for _, status := range from {
		if timer.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, timer.Status, to)
	}

	if err := l.timers.UpdateStatus(ctx, timer.ID, timer.Status, to); err != nil {
		if repository.IsNotFound(err) {
			// Status moved underneath us.
			return fmt.Errorf("%w: timer %s changed concurrently", ErrInvalidTransition, timer.ID)
		}
		return fmt.Errorf("update sla timer: %w", err)
	}
	l.logger.Info("sla timer status changed",
		zap.String("timer_id", timer.ID),
		zap.String("ticket_id", ticketID),
		zap.String("from", string(timer.Status)),
		zap.String("to", string(to)),
	)
	return nil
}
