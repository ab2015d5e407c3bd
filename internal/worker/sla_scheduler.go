package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PassRunner runs one SLA evaluation pass and reports its summary.
type PassRunner interface {
	CheckAll(ctx context.Context) (string, error)
}

// SchedulerOptions tunes the SLA scheduler.
type SchedulerOptions struct {
	// PassTimeout bounds a single pass. Keep it below the lease TTL.
	PassTimeout time.Duration
	// RunOnStart triggers one pass before the first scheduled tick.
	RunOnStart bool
	// StopTimeout caps how long Run waits for an in-flight pass on shutdown.
	StopTimeout time.Duration
}

// SLAScheduler triggers SLA passes on a cron schedule. A tick that fires while the
// previous pass is still running is skipped.
type SLAScheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	runner   PassRunner
	logger   *zap.Logger
	opts     SchedulerOptions
}

// NewSLAScheduler validates schedule. The pass job is registered by Run so that every
// pass inherits its context.
func NewSLAScheduler(runner PassRunner, schedule string, logger *zap.Logger, opts SchedulerOptions) (*SLAScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PassTimeout <= 0 {
		opts.PassTimeout = 2 * time.Minute
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}

	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sla schedule %q: %w", schedule, err)
	}

	cl := cronLogger{logger: logger.Sugar()}
	return &SLAScheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: parsed,
		runner:   runner,
		logger:   logger,
		opts:     opts,
	}, nil
}

// Run starts the cron loop and blocks until ctx is cancelled. Cancelling ctx also
// cancels a pass that is still running. Run must be called once.
func (s *SLAScheduler) Run(ctx context.Context) {
	if s.opts.RunOnStart {
		s.runPass(ctx)
	}

	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.runPass(ctx) }))
	s.cron.Start()
	s.logger.Info("sla scheduler started", zap.Int("entries", len(s.cron.Entries())))

	<-ctx.Done()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(s.opts.StopTimeout):
		s.logger.Warn("sla scheduler stop timed out")
	}
	s.logger.Info("sla scheduler stopped")
}

func (s *SLAScheduler) runPass(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.opts.PassTimeout)
	defer cancel()

	summary, err := s.runner.CheckAll(ctx)
	if err != nil {
		s.logger.Error("sla pass failed", zap.Error(err))
		return
	}
	s.logger.Info(summary)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
