package events

import (
	"context"
	"time"

	"github.com/ecofridge/server/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamPublisher appends events to a capped Redis stream so other
// services can follow inventory and score changes.
type StreamPublisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamPublisher creates a publisher writing to "<prefix>:events"
func NewStreamPublisher(client redis.UniversalClient, prefix string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: prefix + ":events",
		maxLen: 10000,
		logger: logger.Named("events-stream"),
	}
}

// Stream returns the stream key
func (p *StreamPublisher) Stream() string {
	return p.stream
}

// Publish implements outbound.EventPublisher
func (p *StreamPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) {
	for _, e := range events {
		payload, err := encode(e)
		if err != nil {
			p.logger.Warn("Event encoding failed", zap.String("event", e.EventName()), zap.Error(err))
			continue
		}

		err = p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{
				"name":        e.EventName(),
				"occurred_at": e.OccurredAt().UTC().Format(time.RFC3339Nano),
				"payload":     payload,
			},
		}).Err()
		if err != nil {
			p.logger.Warn("Event publish failed", zap.String("event", e.EventName()), zap.Error(err))
		}
	}
}
