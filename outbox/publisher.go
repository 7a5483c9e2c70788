package outbox

import (
	"context"

	"go.uber.org/zap"
)

// Publisher delivers a claimed message to its downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) error

func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogPublisher writes every message to the structured log. It is the default
// sink when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.logger.Info("outbox message published",
		zap.String("id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.ByteString("payload", msg.Payload),
		zap.Int("attempts", msg.Attempts),
	)
	return nil
}
