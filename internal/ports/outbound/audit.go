package outbound

import (
	"context"
	"time"

	"github.com/ecofridge/server/internal/domain/shared"
)

// AuditKind partitions the audit trail
type AuditKind string

const (
	AuditPrompts   AuditKind = "prompts"
	AuditResponses AuditKind = "responses"
	AuditErrors    AuditKind = "errors"
)

// Audited generation operations
const (
	OperationIngredientClassification = "ingredient_classification"
	OperationRecipeGeneration         = "recipe_instructions_generation"
	OperationPointsAnalysis           = "points_analysis"
)

// AuditEntry is one append-only audit record
type AuditEntry struct {
	Operation string
	Kind      AuditKind
	Text      string
	At        time.Time
}

// AuditSink receives every prompt and raw response. Callers treat errors as
// non-fatal.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// EventPublisher receives domain events after the writes behind them succeeded
type EventPublisher interface {
	Publish(ctx context.Context, events ...shared.DomainEvent)
}
