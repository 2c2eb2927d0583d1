// Package audit archives every prompt and raw model response. The trail is
// write-only: nothing in the pipeline reads it back.
package audit

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/ecofridge/server/internal/infrastructure/config"
	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const timestampLayout = "20060102T150405.000000000Z"

// objectName returns "<operation>/<kind>/log_<timestamp>_<id>.txt". The
// random suffix keeps two entries written in the same instant apart.
func objectName(entry outbound.AuditEntry) string {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	file := fmt.Sprintf("log_%s_%s.txt", at.UTC().Format(timestampLayout), uuid.NewString()[:8])
	return path.Join(entry.Operation, string(entry.Kind), file)
}

func validEntry(entry outbound.AuditEntry) error {
	if entry.Operation == "" || entry.Kind == "" {
		return fmt.Errorf("audit entry needs operation and kind")
	}
	return nil
}

// Nop discards every entry
type Nop struct{}

// Record implements outbound.AuditSink
func (Nop) Record(context.Context, outbound.AuditEntry) error { return nil }

// New builds the sink selected by configuration
func New(cfg config.AuditConfig, logger *zap.Logger) (outbound.AuditSink, error) {
	switch cfg.Backend {
	case config.AuditFile:
		return NewFileSink(cfg.Dir)
	case config.AuditS3:
		return NewS3Sink(cfg, logger)
	case config.AuditNone, "":
		return Nop{}, nil
	default:
		return nil, apperrors.NewConfigurationError("audit.backend", "unknown backend "+cfg.Backend)
	}
}
