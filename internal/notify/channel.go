package notify

import "context"

// Channel delivers a rendered message somewhere.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
