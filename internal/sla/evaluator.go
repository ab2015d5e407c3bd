package sla

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// DefaultWarningWindow is how long before the due date a warning goes out.
const DefaultWarningWindow = time.Hour

// FlagStore flips the per-timer notification flags. Each call updates a single column
// and reports whether this caller performed the false to true transition.
type FlagStore interface {
	MarkWarningSent(ctx context.Context, id string) (bool, error)
	MarkBreachNotified(ctx context.Context, id string) (bool, error)
}

// Notifier accepts notification events for asynchronous delivery. Enqueue returns
// immediately and reports nothing back; delivery problems are its own concern.
type Notifier interface {
	Enqueue(ctx context.Context, event domain.NotificationEvent)
}

// Result aggregates one evaluation pass.
type Result struct {
	// Breaches counts timers currently breached, whether or not they were notified now.
	Breaches int
	// Warnings counts warnings sent during this pass.
	Warnings int
	// Failed counts timers skipped because of a not-found or persistence fault.
	Failed int
}

// Summary renders the result for logs and the scheduler.
func (r Result) Summary() string {
	summary := fmt.Sprintf("SLA check completed. Found %d breaches and sent %d warnings.", r.Breaches, r.Warnings)
	if r.Failed > 0 {
		summary += fmt.Sprintf(" %d timers failed.", r.Failed)
	}
	return summary
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeBreach
	outcomeWarning
)

// Evaluator decides, per active timer, whether a breach or warning notification fires.
type Evaluator struct {
	flags         FlagStore
	notifier      Notifier
	logger        *zap.Logger
	metrics       *observability.Metrics
	warningWindow time.Duration
}

// Option configures the evaluator.
type Option func(*Evaluator)

// WithWarningWindow overrides DefaultWarningWindow.
func WithWarningWindow(window time.Duration) Option {
	return func(e *Evaluator) {
		if window > 0 {
			e.warningWindow = window
		}
	}
}

// WithMetrics records per-timer failures.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = metrics
	}
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(flags FlagStore, notifier Notifier, logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		flags:         flags,
		notifier:      notifier,
		logger:        logger,
		warningWindow: DefaultWarningWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAll evaluates timers that the caller already filtered to Active. Timers are
// independent: a fault on one is logged and counted, and the rest are still evaluated.
func (e *Evaluator) EvaluateAll(ctx context.Context, now time.Time, timers []domain.SLATimer) Result {
	var result Result
	for _, timer := range timers {
		out, err := e.evaluate(ctx, now, timer)
		switch out {
		case outcomeBreach:
			result.Breaches++
		case outcomeWarning:
			result.Warnings++
		}
		if err != nil {
			result.Failed++
			reason := failureReason(err)
			e.metrics.RecordTimerFailure(reason)
			e.logger.Error("sla timer evaluation failed",
				zap.String("timer_id", timer.ID),
				zap.String("ticket_id", timer.TicketID),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}
	return result
}

func (e *Evaluator) evaluate(ctx context.Context, now time.Time, timer domain.SLATimer) (outcome, error) {
	if timer.ID == "" || timer.TicketID == "" {
		return outcomeNone, fmt.Errorf("%w: timer %q has no ticket reference", ErrNotFound, timer.ID)
	}

	// Breach wins over warning; a breached timer is never warned in the same pass.
	if timer.IsBreached(now) {
		if timer.BreachNotificationSent {
			return outcomeBreach, nil
		}
		if _, err := e.fire(ctx, timer, domain.NotificationSLABreach, e.flags.MarkBreachNotified); err != nil {
			return outcomeBreach, err
		}
		return outcomeBreach, nil
	}

	remaining := timer.TimeToDue(now)
	if remaining <= 0 || remaining > e.warningWindow || timer.WarningSent {
		return outcomeNone, nil
	}
	claimed, err := e.fire(ctx, timer, domain.NotificationSLAWarning, e.flags.MarkWarningSent)
	if err != nil {
		return outcomeNone, err
	}
	if !claimed {
		return outcomeNone, nil
	}
	return outcomeWarning, nil
}

// fire claims the flag first and only then enqueues, so two overlapping passes can
// never both send. A missing recipient still consumes the flag: one attempt per timer.
func (e *Evaluator) fire(ctx context.Context, timer domain.SLATimer, kind domain.NotificationKind, mark func(context.Context, string) (bool, error)) (bool, error) {
	recipient, recipientErr := ResolveRecipient(timer)

	claimed, err := mark(ctx, timer.ID)
	if err != nil {
		return false, fmt.Errorf("%w: mark %s for timer %s: %w", ErrPersistence, kind, timer.ID, err)
	}
	if !claimed {
		e.logger.Debug("sla notification already claimed",
			zap.String("timer_id", timer.ID),
			zap.String("kind", string(kind)),
		)
		return false, nil
	}

	if recipientErr != nil {
		e.metrics.RecordTimerFailure(failureReason(recipientErr))
		e.logger.Warn("sla notification skipped",
			zap.String("timer_id", timer.ID),
			zap.String("ticket_id", timer.TicketID),
			zap.String("kind", string(kind)),
			zap.Error(recipientErr),
		)
		return true, nil
	}

	due := timer.DueDate
	e.notifier.Enqueue(ctx, domain.NotificationEvent{
		Kind:      kind,
		TicketID:  timer.TicketID,
		TicketKey: ticketLabel(timer),
		Recipient: recipient,
		Role:      domain.RecipientAssignee,
		DueDate:   &due,
	})
	e.logger.Info("sla notification enqueued",
		zap.String("timer_id", timer.ID),
		zap.String("ticket_id", timer.TicketID),
		zap.String("kind", string(kind)),
		zap.Time("due_date", due),
	)
	return true, nil
}

// ResolveRecipient returns the assignee's address or ErrRecipientUnavailable.
func ResolveRecipient(timer domain.SLATimer) (string, error) {
	if timer.AssigneeEmail == nil || strings.TrimSpace(*timer.AssigneeEmail) == "" {
		return "", fmt.Errorf("%w: ticket %s has no assignee email", ErrRecipientUnavailable, ticketLabel(timer))
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(*timer.AssigneeEmail))
	if err != nil {
		return "", fmt.Errorf("%w: ticket %s: %v", ErrRecipientUnavailable, ticketLabel(timer), err)
	}
	return addr.Address, nil
}

func ticketLabel(timer domain.SLATimer) string {
	if timer.TicketKey != "" {
		return timer.TicketKey
	}
	return timer.TicketID
}
