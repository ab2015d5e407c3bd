package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/queue"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

type stubChannel struct {
	name     string
	mu       sync.Mutex
	failures int
	sent     []notify.Message
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("relay unavailable")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *stubChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func breachJob() queue.Job {
	due := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return queue.NewJob(domain.NotificationEvent{
		Kind:      domain.NotificationSLABreach,
		TicketID:  "t1",
		TicketKey: "HD-1",
		Recipient: "eng@example.com",
		DueDate:   &due,
	})
}

func newWorker(q queue.Queue, maxAttempts int, channels ...notify.Channel) *worker.NotificationWorker {
	return worker.NewNotificationWorker(q, notify.NewRenderer("https://desk.example.com"), channels, zap.NewNop(),
		observability.NewMetrics(prometheus.NewRegistry()), worker.Options{Concurrency: 2, MaxAttempts: maxAttempts})
}

func TestProcess_DeliversToEveryChannel(t *testing.T) {
	q := queue.NewMemoryQueue(4, 10*time.Millisecond)
	email := &stubChannel{name: "email"}
	hook := &stubChannel{name: "webhook"}
	job := breachJob()

	newWorker(q, 3, email, hook).Process(context.Background(), &job)

	require.Equal(t, 1, email.count())
	assert.Equal(t, 1, hook.count())
	assert.Equal(t, "SLA BREACHED for Ticket HD-1", email.sent[0].Subject)
	assert.Equal(t, "eng@example.com", email.sent[0].To)
	assert.Zero(t, q.Len())
}

func TestProcess_RequeuesOnlyFailedChannels(t *testing.T) {
	q := queue.NewMemoryQueue(4, 10*time.Millisecond)
	email := &stubChannel{name: "email", failures: 1}
	hook := &stubChannel{name: "webhook"}
	w := newWorker(q, 3, email, hook)
	job := breachJob()

	w.Process(context.Background(), &job)
	assert.Equal(t, 0, email.count())
	assert.Equal(t, 1, hook.count())

	retry, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, job.ID, retry.ID)
	assert.Equal(t, 1, retry.Attempts)
	assert.Equal(t, []string{"email"}, retry.Pending)

	w.Process(context.Background(), retry)
	assert.Equal(t, 1, email.count())
	assert.Equal(t, 1, hook.count(), "webhook is not sent twice")
	assert.Zero(t, q.Len())
}

func TestProcess_DropsAfterMaxAttempts(t *testing.T) {
	q := queue.NewMemoryQueue(4, 10*time.Millisecond)
	email := &stubChannel{name: "email", failures: 10}
	w := newWorker(q, 2, email)
	job := breachJob()

	w.Process(context.Background(), &job)
	retry, err := q.Pop(context.Background())
	require.NoError(t, err)

	w.Process(context.Background(), retry)
	assert.Zero(t, q.Len())
	assert.Zero(t, email.count())
}

func TestProcess_UnknownKindIsDropped(t *testing.T) {
	q := queue.NewMemoryQueue(4, 10*time.Millisecond)
	email := &stubChannel{name: "email"}
	job := queue.NewJob(domain.NotificationEvent{Kind: "FAX"})

	newWorker(q, 3, email).Process(context.Background(), &job)

	assert.Zero(t, email.count())
	assert.Zero(t, q.Len())
}

func TestRun_DrainsQueueUntilCancelled(t *testing.T) {
	q := queue.NewMemoryQueue(16, 10*time.Millisecond)
	email := &stubChannel{name: "email"}
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(context.Background(), breachJob()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newWorker(q, 3, email).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return email.count() == 5 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestDrain_ProcessesRetriesUntilEmpty(t *testing.T) {
	q := queue.NewMemoryQueue(8, 10*time.Millisecond)
	email := &stubChannel{name: "email", failures: 1}
	require.NoError(t, q.Push(context.Background(), breachJob()))
	require.NoError(t, q.Push(context.Background(), breachJob()))

	handled, err := newWorker(q, 3, email).Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, handled, "two jobs plus one retry")
	assert.Equal(t, 2, email.count())
	assert.Zero(t, q.Len())
}
