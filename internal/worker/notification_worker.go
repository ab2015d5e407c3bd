package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/queue"
)

// Options tunes the worker.
type Options struct {
	Concurrency int
	MaxAttempts int
	// ErrorBackoff is the pause after a queue error other than ErrEmpty.
	ErrorBackoff time.Duration
}

// NotificationWorker drains the notification queue and delivers each job through every
// channel. Delivery outcomes never flow back to the SLA timers.
type NotificationWorker struct {
	queue    queue.Queue
	renderer *notify.Renderer
	channels []notify.Channel
	logger   *zap.Logger
	metrics  *observability.Metrics
	opts     Options
}

// NewNotificationWorker creates a worker.
func NewNotificationWorker(q queue.Queue, renderer *notify.Renderer, channels []notify.Channel, logger *zap.Logger, metrics *observability.Metrics, opts Options) *NotificationWorker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		queue:    q,
		renderer: renderer,
		channels: channels,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Run blocks until ctx is cancelled and every goroutine has returned.
func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started",
		zap.Int("concurrency", w.opts.Concurrency),
		zap.Int("channels", len(w.channels)),
	)
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	w.logger.Info("notification worker stopped")
}

func (w *NotificationWorker) loop(ctx context.Context, id int) {
	for ctx.Err() == nil {
		job, err := w.queue.Pop(ctx)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			continue
		case ctx.Err() != nil:
			return
		case err != nil:
			w.logger.Error("pop notification job", zap.Int("worker", id), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.opts.ErrorBackoff):
			}
			continue
		}
		w.Process(ctx, job)
	}
}

// Drain processes jobs on the calling goroutine until the queue reports empty, and
// returns how many jobs it handled. Used when the process exits after one pass.
func (w *NotificationWorker) Drain(ctx context.Context) (int, error) {
	handled := 0
	for {
		job, err := w.queue.Pop(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			return handled, nil
		}
		if err != nil {
			return handled, err
		}
		w.Process(ctx, job)
		handled++
	}
}

// Process delivers one job. Channels that fail are retried by re-queueing the job until
// MaxAttempts is reached; channels that already succeeded are not sent again.
func (w *NotificationWorker) Process(ctx context.Context, job *queue.Job) {
	kind := string(job.Event.Kind)
	logger := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("kind", kind),
		zap.String("ticket_id", job.Event.TicketID),
		zap.Int("attempt", job.Attempts+1),
	)

	msg, err := w.renderer.Render(job.Event)
	if err != nil {
		logger.Error("render notification, dropping job", zap.Error(err))
		return
	}

	var failed []string
	for _, channel := range w.channels {
		if !owed(job, channel.Name()) {
			continue
		}
		if err := channel.Send(ctx, msg); err != nil {
			w.metrics.RecordDelivery(kind, channel.Name(), false)
			logger.Warn("notification delivery failed", zap.String("channel", channel.Name()), zap.Error(err))
			failed = append(failed, channel.Name())
			continue
		}
		w.metrics.RecordDelivery(kind, channel.Name(), true)
		logger.Info("notification delivered", zap.String("channel", channel.Name()), zap.String("to", msg.To))
	}
	if len(failed) == 0 {
		return
	}

	job.Attempts++
	if job.Attempts >= w.opts.MaxAttempts {
		logger.Error("notification dropped after max attempts", zap.Strings("channels", failed))
		return
	}
	job.Pending = failed
	// Re-queue even if ctx is done so a shutdown does not lose the retry.
	if err := w.queue.Push(context.WithoutCancel(ctx), *job); err != nil {
		logger.Error("requeue notification", zap.Error(err))
	}
}

func owed(job *queue.Job, channel string) bool {
	if len(job.Pending) == 0 {
		return true
	}
	for _, name := range job.Pending {
		if name == channel {
			return true
		}
	}
	return false
}
