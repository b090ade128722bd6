// Package ingest folds incoming distress signals into the pipeline:
// identity resolution, event dedup, scoring, and the promotion gate. It is
// the only writer of properties and events.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/identity"
	"github.com/sells-group/leadpipe/internal/leads"
	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/predict"
	"github.com/sells-group/leadpipe/internal/scoring"
)

// Store defines the persistence operations the ingest service needs.
type Store interface {
	UpsertProperty(ctx context.Context, p *model.Property) (*model.Property, error)
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	UpdatePropertyFields(ctx context.Context, id string, fields map[string]any) error
	InsertEvent(ctx context.Context, e *model.DistressEvent) (bool, error)
	ListEventsByProperty(ctx context.Context, propertyID string) ([]model.DistressEvent, error)
	AppendScoringRecord(ctx context.Context, r *model.ScoringRecord) error
	AppendPredictionRecord(ctx context.Context, r *model.PredictionRecord) error
	ScoreHistory(ctx context.Context, propertyID string, limit int) ([]float64, error)
}

// Promoter is the lead promotion gate.
type Promoter interface {
	Promote(ctx context.Context, propertyID string, blended float64, source string, tags []string) (*leads.PromoteOutcome, error)
}

// Auditor appends immutable entries to the event log.
type Auditor interface {
	Append(ctx context.Context, entry model.AuditEntry) error
}

// Config tunes the ingestion pipeline.
type Config struct {
	// DefaultCounty fills in when a source emits records with no county.
	DefaultCounty string `yaml:"default_county" mapstructure:"default_county"`

	// ConversionRates holds the historical per-source deal conversion
	// rates feeding the deterministic scorer's adjustment.
	ConversionRates map[string]float64 `yaml:"conversion_rates" mapstructure:"conversion_rates"`
}

// Service runs the ingestion pipeline.
type Service struct {
	store    Store
	promoter Promoter
	audit    Auditor
	scoreCfg scoring.Config
	weights  predict.WeightSchema
	cfg      Config
	now      func() time.Time
}

// NewService wires an ingest service. The weight schema and scoring config
// are validated here so a bad calibration is rejected before it can be
// applied to any record.
func NewService(store Store, promoter Promoter, auditor Auditor, scoreCfg scoring.Config, weights predict.WeightSchema, cfg Config) (*Service, error) {
	if err := scoreCfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "ingest: scoring config")
	}
	if err := weights.Validate(); err != nil {
		return nil, eris.Wrap(err, "ingest: weight schema")
	}
	return &Service{
		store:    store,
		promoter: promoter,
		audit:    auditor,
		scoreCfg: scoreCfg,
		weights:  weights,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// IngestRecord folds one crawled record into the pipeline. Returns whether
// a lead was created or refreshed. Records without a resolvable golden
// identity are skipped, not failed, so one junk row never aborts a batch.
func (s *Service) IngestRecord(ctx context.Context, rec model.CrawledRecord) (bool, error) {
	apn := identity.NormalizeAPN(rec.APN)
	county := identity.NormalizeCounty(rec.County, s.cfg.DefaultCounty)
	if apn == "" || county == "" {
		zap.L().Warn("record lacks golden identity, skipping",
			zap.String("source", rec.Source),
			zap.String("owner", rec.OwnerName),
			zap.String("street", rec.Street))
		return false, nil
	}
	if !model.ValidEventType(rec.Type) {
		return false, model.NewValidationError("type", "unknown event type")
	}

	prop := &model.Property{
		APN:       apn,
		County:    county,
		State:     rec.State,
		Street:    rec.Street,
		City:      rec.City,
		OwnerName: rec.OwnerName,
		Flags:     ownerFlagsFrom(rec),
	}
	stored, err := s.store.UpsertProperty(ctx, prop)
	if err != nil {
		return false, eris.Wrap(err, "ingest: upsert property")
	}

	var rawPayload []byte
	if len(rec.Raw) > 0 {
		rawPayload, err = json.Marshal(rec.Raw)
		if err != nil {
			return false, eris.Wrap(err, "ingest: marshal raw payload")
		}
	}
	observed := rec.Date
	if observed.IsZero() {
		observed = s.now()
	}
	event := &model.DistressEvent{
		PropertyID:  stored.ID,
		Type:        rec.Type,
		Source:      rec.Source,
		Severity:    rec.Severity,
		Confidence:  rec.Confidence,
		Fingerprint: identity.Fingerprint(apn, county, string(rec.Type), rec.Source),
		RawPayload:  rawPayload,
		ObservedAt:  observed,
	}
	deduped, err := s.store.InsertEvent(ctx, event)
	if err != nil {
		return false, eris.Wrap(err, "ingest: insert event")
	}

	outcome, blended, err := s.scoreAndPromote(ctx, stored, rec.Source)
	if err != nil {
		return false, err
	}

	s.auditRecord(ctx, "system", "ingest.record", stored.ID, map[string]any{
		"source":        rec.Source,
		"event_type":    string(rec.Type),
		"event_deduped": deduped,
		"blended":       blended,
		"lead_created":  outcome.Created,
		"lead_refresh":  outcome.Refreshed,
	})
	return outcome.Created || outcome.Refreshed, nil
}

// scoreAndPromote runs both scorers over the property's full event history,
// persists the snapshots, blends, and applies the promotion gate.
func (s *Service) scoreAndPromote(ctx context.Context, prop *model.Property, source string) (*leads.PromoteOutcome, float64, error) {
	events, err := s.store.ListEventsByProperty(ctx, prop.ID)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: list events")
	}

	now := s.now()
	det := scoring.Compute(buildScoringInput(prop, events, now, s.cfg.ConversionRates[source]), s.scoreCfg)
	scoreRec := model.ScoringRecord{
		PropertyID:      prop.ID,
		MotivationScore: det.MotivationScore,
		DealScore:       det.DealScore,
		Composite:       det.Composite,
		Label:           det.Label,
		Factors:         det.Factors,
	}
	if err := s.store.AppendScoringRecord(ctx, &scoreRec); err != nil {
		return nil, 0, eris.Wrap(err, "ingest: append scoring record")
	}

	history, err := s.store.ScoreHistory(ctx, prop.ID, 10)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: score history")
	}
	out, err := predict.Compute(buildFeatures(prop, events, history, now), s.weights)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: predictive score")
	}
	predRec := predict.BuildPredictionRecord(prop.ID, out, s.weights)
	if err := s.store.AppendPredictionRecord(ctx, &predRec); err != nil {
		return nil, 0, eris.Wrap(err, "ingest: append prediction record")
	}

	blended := scoring.Blend(det.Composite, out.Score, s.scoreCfg)

	outcome, err := s.promoter.Promote(ctx, prop.ID, blended, source, eventTypeTags(events))
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: promote")
	}
	return outcome, blended, nil
}

func (s *Service) auditRecord(ctx context.Context, actor, action, entityID string, details map[string]any) {
	err := s.audit.Append(ctx, model.AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "property",
		EntityID:   entityID,
		Details:    details,
	})
	if err != nil {
		zap.L().Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

// eventTypeTags returns the distinct event types, in first-seen order.
func eventTypeTags(events []model.DistressEvent) []string {
	seen := map[string]bool{}
	var tags []string
	for _, e := range events {
		t := string(e.Type)
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	return tags
}
