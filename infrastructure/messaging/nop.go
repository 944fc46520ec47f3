// Package messaging holds event publishers that need no external bus
package messaging

import (
	"context"

	"go.uber.org/zap"

	"designgraph/application/ports"
	"designgraph/domain/events"
)

var _ ports.EventPublisher = (*LogPublisher)(nil)

// LogPublisher writes events to the log instead of a bus. Used when
// events are disabled.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event at debug level
func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Debug("Event",
		zap.String("eventType", event.GetEventType()),
		zap.String("sessionID", event.GetAggregateID()),
		zap.Int64("version", event.GetVersion()))
	return nil
}

// PublishBatch logs each event
func (p *LogPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, e := range domainEvents {
		_ = p.Publish(ctx, e)
	}
	return nil
}
