package notify

import (
	"context"

	"go.uber.org/zap"
)

// Console is the no-credentials channel: alerts go to the log. Useful for
// development and for running the monitor purely as a recorder.
type Console struct {
	log *zap.Logger
}

func NewConsole(log *zap.Logger) *Console {
	return &Console{log: log}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Send(_ context.Context, msg Message) error {
	c.log.Info("ALERT",
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Int("priority", msg.Priority))
	return nil
}
