package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/queue"
)

// QueueDispatcher hands notification events to the job queue. It is fire-and-forget:
// callers never learn whether the push or the eventual delivery succeeded.
type QueueDispatcher struct {
	queue   queue.Queue
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewQueueDispatcher creates a dispatcher.
func NewQueueDispatcher(q queue.Queue, logger *zap.Logger, metrics *observability.Metrics) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{queue: q, logger: logger, metrics: metrics}
}

// Enqueue pushes event as a new job.
func (d *QueueDispatcher) Enqueue(ctx context.Context, event domain.NotificationEvent) {
	job := queue.NewJob(event)
	if err := d.queue.Push(ctx, job); err != nil {
		d.metrics.RecordEnqueue(string(event.Kind), false)
		d.logger.Error("enqueue notification",
			zap.String("job_id", job.ID),
			zap.String("kind", string(event.Kind)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
		return
	}
	d.metrics.RecordEnqueue(string(event.Kind), true)
	d.logger.Debug("notification enqueued",
		zap.String("job_id", job.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("ticket_id", event.TicketID),
	)
}
