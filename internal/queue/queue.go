package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

var (
	// ErrEmpty is returned by Pop when nothing arrived before the pop timeout.
	ErrEmpty = errors.New("queue: empty")
	// ErrFull is returned by Push when a bounded queue cannot take more jobs.
	ErrFull = errors.New("queue: full")
)

// Job is one pending notification delivery.
type Job struct {
	ID         string                   `json:"id"`
	Event      domain.NotificationEvent `json:"event"`
	EnqueuedAt time.Time                `json:"enqueued_at"`
	Attempts   int                      `json:"attempts"`
	// Pending names the channels still owed a delivery; empty means all of them.
	Pending []string `json:"pending,omitempty"`
}

// NewJob wraps an event for delivery.
func NewJob(event domain.NotificationEvent) Job {
	return Job{
		ID:         uuid.NewString(),
		Event:      event,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue moves jobs from producers to the notification worker.
type Queue interface {
	Push(ctx context.Context, job Job) error
	// Pop blocks until a job arrives, the pop timeout passes (ErrEmpty) or ctx ends.
	Pop(ctx context.Context) (*Job, error)
}
