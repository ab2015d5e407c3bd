package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogChannel writes messages to the log instead of delivering them. It stands in when
// no SMTP relay or webhook is configured.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, msg Message) error {
	c.logger.Info("notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
