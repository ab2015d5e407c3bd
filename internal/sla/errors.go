package sla

import "errors"

var (
	// ErrNotFound means a timer or the ticket it references is gone.
	ErrNotFound = errors.New("sla: not found")
	// ErrRecipientUnavailable means no usable email address exists for a notification.
	ErrRecipientUnavailable = errors.New("sla: recipient unavailable")
	// ErrPersistence means a notification flag could not be written.
	ErrPersistence = errors.New("sla: persistence failure")
	// ErrPassInProgress means another evaluation pass holds the lease.
	ErrPassInProgress = errors.New("sla: evaluation pass already in progress")
	// ErrInvalidTransition means a timer is not in a state that allows the requested change.
	ErrInvalidTransition = errors.New("sla: invalid timer transition")
)

// failureReason labels an evaluation error for logs and metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRecipientUnavailable):
		return "recipient_unavailable"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unknown"
	}
}
