package generation

import (
	"context"

	"github.com/ecofridge/server/internal/ports/outbound"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func spanFrom(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	return span
}

// newTokenCounter registers the token usage instrument on the global meter
// provider. A failed registration falls back to a no-op counter.
func newTokenCounter() metric.Int64Counter {
	counter, err := otel.Meter(tracerName).Int64Counter("ecofridge.model.tokens",
		metric.WithDescription("Tokens reported by the model provider"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		counter, _ = otel.GetMeterProvider().Meter("noop").Int64Counter("noop")
	}
	return counter
}

func (c *Client) recordUsage(ctx context.Context, operation string, usage outbound.TokenUsage) {
	op := attribute.String("operation", operation)
	if usage.PromptTokens > 0 {
		c.tokens.Add(ctx, int64(usage.PromptTokens), metric.WithAttributes(op, attribute.String("direction", "prompt")))
	}
	if usage.OutputTokens > 0 {
		c.tokens.Add(ctx, int64(usage.OutputTokens), metric.WithAttributes(op, attribute.String("direction", "output")))
	}
	if span := spanFrom(ctx); span != nil {
		span.SetAttributes(
			attribute.Int("genai.usage.prompt_tokens", usage.PromptTokens),
			attribute.Int("genai.usage.output_tokens", usage.OutputTokens),
		)
	}
}
