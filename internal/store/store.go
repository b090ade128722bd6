// Package store persists the pipeline's entities behind typed repository
// interfaces. Scoring and promotion logic never touch raw rows. Two
// backends ship: Postgres (pgx) and SQLite for local runs.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadpipe/internal/model"
)

// PropertyStore persists canonical parcels. All writes are upserts keyed
// on the normalized (apn, county) golden identity; properties are never
// deleted.
type PropertyStore interface {
	UpsertProperty(ctx context.Context, p *model.Property) (*model.Property, error)
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	GetPropertyByKey(ctx context.Context, apn, county string) (*model.Property, error)
	UpdatePropertyFields(ctx context.Context, id string, fields map[string]any) error
}

// EventStore persists distress events. InsertEvent attempts the write
// optimistically: a uniqueness violation on the fingerprint is classified
// as deduped=true, not an error.
type EventStore interface {
	InsertEvent(ctx context.Context, e *model.DistressEvent) (deduped bool, err error)
	ListEventsByProperty(ctx context.Context, propertyID string) ([]model.DistressEvent, error)
}

// ScoreStore appends scoring snapshots. Records are never mutated; the
// current score is the most recent record by time.
type ScoreStore interface {
	AppendScoringRecord(ctx context.Context, r *model.ScoringRecord) error
	AppendPredictionRecord(ctx context.Context, r *model.PredictionRecord) error
	LatestScoringRecord(ctx context.Context, propertyID string) (*model.ScoringRecord, error)
	LatestPredictionRecord(ctx context.Context, propertyID string) (*model.PredictionRecord, error)
	// ScoreHistory returns up to limit composite scores, oldest first.
	ScoreHistory(ctx context.Context, propertyID string, limit int) ([]float64, error)
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status     model.LeadStatus
	AssignedTo string
	MinScore   float64
	Limit      int
	Offset     int
}

// LeadStore persists leads. UpdateLeadCAS applies the write only when the
// stored lock_version equals observedVersion, incrementing it; otherwise
// it returns model.ErrVersionConflict.
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindActiveLeadByProperty(ctx context.Context, propertyID string) (*model.Lead, error)
	CreateLead(ctx context.Context, lead *model.Lead) error
	UpdateLeadCAS(ctx context.Context, lead *model.Lead, observedVersion int64) error
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
}

// AuditFilter specifies criteria for reading the event log.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Action     string
	Since      time.Time
	Limit      int
}

// AuditStore appends to and reads the immutable event log.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry model.AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)
}

// Store aggregates every repository plus lifecycle management.
type Store interface {
	PropertyStore
	EventStore
	ScoreStore
	LeadStore
	AuditStore

	Migrate(ctx context.Context) error
	Close() error
}

// propertyFieldColumns is the allow-list for manual corrections: the only
// columns UpdatePropertyFields will touch.
var propertyFieldColumns = map[string]string{
	"owner_name":      "owner_name",
	"owner_phone":     "owner_phone",
	"owner_email":     "owner_email",
	"street":          "street",
	"city":            "city",
	"state":           "state",
	"zip_code":        "zip_code",
	"estimated_value": "estimated_value",
	"equity_percent":  "equity_percent",
	"loan_balance":    "loan_balance",
}

// AllowedPropertyField reports whether a manual correction may touch the
// named field.
func AllowedPropertyField(name string) bool {
	_, ok := propertyFieldColumns[name]
	return ok
}
