// Package events delivers domain events raised by the pipeline. Delivery
// is best effort: a failed publish is logged and never surfaces to the
// operation that raised the event.
package events

import (
	"context"
	"encoding/json"

	"github.com/ecofridge/server/internal/domain/shared"
	"github.com/ecofridge/server/internal/ports/outbound"
	"go.uber.org/zap"
)

// LogPublisher writes every event to the structured log
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher logging at info level
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

// Publish implements outbound.EventPublisher
func (p *LogPublisher) Publish(_ context.Context, events ...shared.DomainEvent) {
	for _, e := range events {
		p.logger.Info("Domain event",
			zap.String("event", e.EventName()),
			zap.Time("occurred_at", e.OccurredAt()),
			zap.Any("payload", e),
		)
	}
}

// Fanout publishes to several publishers in order
type Fanout []outbound.EventPublisher

// Publish implements outbound.EventPublisher
func (f Fanout) Publish(ctx context.Context, events ...shared.DomainEvent) {
	for _, p := range f {
		p.Publish(ctx, events...)
	}
}

func encode(e shared.DomainEvent) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
