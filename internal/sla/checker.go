package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

// SkippedSummary is returned when another pass already holds the lease.
const SkippedSummary = "SLA check skipped: another pass is in progress."

// ActiveTimerSource lists timers whose status is Active, joined with their ticket
// reference and the assignee's email.
type ActiveTimerSource interface {
	ListActive(ctx context.Context) ([]domain.SLATimer, error)
}

// Checker runs one guarded evaluation pass over all active timers.
type Checker struct {
	timers    ActiveTimerSource
	evaluator *Evaluator
	locker    Locker
	clock     Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewChecker wires a checker. A nil locker means passes are never guarded; a nil
// clock uses SystemClock.
func NewChecker(timers ActiveTimerSource, evaluator *Evaluator, locker Locker, clock Clock, logger *zap.Logger, metrics *observability.Metrics) *Checker {
	if locker == nil {
		locker = NoopLocker{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		timers:    timers,
		evaluator: evaluator,
		locker:    locker,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckAll evaluates every active timer once and returns a human readable summary.
// An error is returned only when the pass could not run at all.
func (c *Checker) CheckAll(ctx context.Context) (string, error) {
	started := time.Now()

	release, err := c.locker.Acquire(ctx)
	if errors.Is(err, ErrPassInProgress) {
		c.metrics.RecordSLAPass(observability.PassSkipped, time.Since(started), 0, 0)
		c.logger.Info(SkippedSummary)
		return SkippedSummary, nil
	}
	if err != nil {
		c.metrics.RecordSLAPass(observability.PassFailed, time.Since(started), 0, 0)
		return "", fmt.Errorf("acquire sla check lease: %w", err)
	}
	defer release()

	now := c.clock.Now()
	timers, err := c.timers.ListActive(ctx)
	if err != nil {
		c.metrics.RecordSLAPass(observability.PassFailed, time.Since(started), 0, 0)
		return "", fmt.Errorf("list active sla timers: %w", err)
	}

	result := c.evaluator.EvaluateAll(ctx, now, timers)
	elapsed := time.Since(started)
	c.metrics.RecordSLAPass(observability.PassCompleted, elapsed, result.Breaches, result.Warnings)

	summary := result.Summary()
	c.logger.Info(summary,
		zap.Int("timers", len(timers)),
		zap.Int("breaches", result.Breaches),
		zap.Int("warnings", result.Warnings),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", elapsed),
	)
	return summary, nil
}
