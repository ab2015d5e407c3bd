package queue

import (
	"context"
	"time"
)

// MemoryQueue is a bounded in-process queue for single-node deployments and tests.
// Jobs are lost when the process exits.
type MemoryQueue struct {
	jobs    chan Job
	timeout time.Duration
}

// NewMemoryQueue creates a queue holding up to size jobs.
func NewMemoryQueue(size int, timeout time.Duration) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MemoryQueue{jobs: make(chan Job, size), timeout: timeout}
}

// Push waits up to the pop timeout for room in a full queue before giving up with
// ErrFull, so a consumer running alongside keeps a burst from being dropped.
func (q *MemoryQueue) Push(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.jobs <- job:
		return nil
	case <-timer.C:
		return ErrFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (*Job, error) {
	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case job := <-q.jobs:
		return &job, nil
	case <-timer.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports how many jobs are waiting.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}
