// Package audit writes the append-only event log. Every ingestion phase
// and every lead mutation records one entry; entries are never updated or
// deleted.
package audit

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/store"
)

// Logger appends to and reads the event log.
type Logger struct {
	store store.AuditStore
}

// NewLogger wires an audit logger over the given store.
func NewLogger(st store.AuditStore) *Logger {
	return &Logger{store: st}
}

// Append writes one entry. The store fills ID and CreatedAt when unset.
func (l *Logger) Append(ctx context.Context, entry model.AuditEntry) error {
	if err := l.store.AppendAudit(ctx, entry); err != nil {
		return eris.Wrap(err, "audit: append")
	}
	zap.L().Debug("audit entry",
		zap.String("actor", entry.Actor),
		zap.String("action", entry.Action),
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID))
	return nil
}

// Record is a convenience wrapper for the common append shape.
func (l *Logger) Record(ctx context.Context, actor, action, entityType, entityID string, details map[string]any) error {
	return l.Append(ctx, model.AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
}

// List reads entries matching the filter, newest first.
func (l *Logger) List(ctx context.Context, filter store.AuditFilter) ([]model.AuditEntry, error) {
	entries, err := l.store.ListAudit(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "audit: list")
	}
	return entries, nil
}
