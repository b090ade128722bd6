package ingest

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/identity"
	"github.com/sells-group/leadpipe/internal/leads"
	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/predict"
	"github.com/sells-group/leadpipe/internal/scoring"
)

// pushSource is the source identifier used for threshold lookup and
// fingerprinting on the inbound push path.
const pushSource = "push"

// PushPayload is the inbound pre-scored signal from an external harvester.
type PushPayload struct {
	ExternalID string             `json:"external_id"`
	APN        string             `json:"apn"`
	County     string             `json:"county,omitempty"`
	HeatScore  float64            `json:"heat_score"`
	Tags       []string           `json:"tags,omitempty"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	Address    string             `json:"address,omitempty"`
	OwnerName  string             `json:"owner_name,omitempty"`
}

// Validate checks required fields and ranges. No side effects on failure.
func (p PushPayload) Validate() error {
	if p.ExternalID == "" {
		return model.NewValidationError("external_id", "required")
	}
	if identity.NormalizeAPN(p.APN) == "" {
		return model.NewValidationError("apn", "required")
	}
	if p.HeatScore < 0 || p.HeatScore > 100 {
		return model.NewValidationError("heat_score", "must be within 0-100")
	}
	return nil
}

// PushResult is the push endpoint's response body.
type PushResult struct {
	Success      bool    `json:"success"`
	PropertyID   string  `json:"property_id"`
	LeadID       string  `json:"lead_id,omitempty"`
	HeatScore    float64 `json:"heat_score"`
	EventDeduped bool    `json:"event_deduped"`
}

// Push ingests a pre-scored signal. The pushed heat score stands in for
// the deterministic composite; the predictive scorer still runs and the
// blend feeds the promotion gate at the push threshold.
func (s *Service) Push(ctx context.Context, payload PushPayload) (*PushResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	apn := identity.NormalizeAPN(payload.APN)
	county := identity.NormalizeCounty(payload.County, s.cfg.DefaultCounty)
	if county == "" {
		return nil, model.NewValidationError("county", "required when no default county is configured")
	}

	eventType := pushEventType(payload.Tags)
	prop := &model.Property{
		APN:       apn,
		County:    county,
		Street:    payload.Address,
		OwnerName: payload.OwnerName,
	}
	stored, err := s.store.UpsertProperty(ctx, prop)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: push upsert property")
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: push marshal payload")
	}
	event := &model.DistressEvent{
		PropertyID:  stored.ID,
		Type:        eventType,
		Source:      pushSource,
		Severity:    payload.HeatScore / 10,
		Confidence:  0.85,
		Fingerprint: identity.Fingerprint(apn, county, string(eventType), pushSource),
		RawPayload:  rawPayload,
		ObservedAt:  s.now(),
	}
	deduped, err := s.store.InsertEvent(ctx, event)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: push insert event")
	}

	// Snapshot the pushed score with the sender's breakdown so the audit
	// trail shows what the external system reported.
	scoreRec := model.ScoringRecord{
		PropertyID:      stored.ID,
		MotivationScore: payload.HeatScore,
		DealScore:       payload.HeatScore,
		Composite:       payload.HeatScore,
		Label:           scoring.Label(payload.HeatScore),
		Factors:         breakdownFactors(payload.Breakdown),
	}
	if err := s.store.AppendScoringRecord(ctx, &scoreRec); err != nil {
		return nil, eris.Wrap(err, "ingest: push append scoring record")
	}

	outcome, blended, err := s.predictAndPromote(ctx, stored, payload.HeatScore, pushSource, payload.Tags)
	if err != nil {
		return nil, err
	}

	leadID := ""
	if outcome.Lead != nil {
		leadID = outcome.Lead.ID
	}
	s.auditRecord(ctx, "system", "ingest.push", stored.ID, map[string]any{
		"external_id":   payload.ExternalID,
		"heat_score":    payload.HeatScore,
		"blended":       blended,
		"event_deduped": deduped,
		"lead_id":       leadID,
	})

	return &PushResult{
		Success:      true,
		PropertyID:   stored.ID,
		LeadID:       leadID,
		HeatScore:    blended,
		EventDeduped: deduped,
	}, nil
}

// predictAndPromote runs the predictive half only, blending against an
// externally supplied deterministic score.
func (s *Service) predictAndPromote(ctx context.Context, prop *model.Property, det float64, source string, tags []string) (*leads.PromoteOutcome, float64, error) {
	events, err := s.store.ListEventsByProperty(ctx, prop.ID)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: list events")
	}
	history, err := s.store.ScoreHistory(ctx, prop.ID, 10)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: score history")
	}

	out, err := predict.Compute(buildFeatures(prop, events, history, s.now()), s.weights)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: predictive score")
	}
	predRec := predict.BuildPredictionRecord(prop.ID, out, s.weights)
	if err := s.store.AppendPredictionRecord(ctx, &predRec); err != nil {
		return nil, 0, eris.Wrap(err, "ingest: append prediction record")
	}

	blended := scoring.Blend(det, out.Score, s.scoreCfg)
	outcome, err := s.promoter.Promote(ctx, prop.ID, blended, source, mergeTagSets(tags, eventTypeTags(events)))
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: promote")
	}
	return outcome, blended, nil
}

// pushEventType maps incoming tags onto the event taxonomy; the first
// recognized tag wins, fsbo otherwise (external pushes are listing-driven).
func pushEventType(tags []string) model.EventType {
	for _, tag := range tags {
		if t := model.EventType(tag); model.ValidEventType(t) {
			return t
		}
	}
	return model.EventFSBO
}

func breakdownFactors(breakdown map[string]float64) []model.Factor {
	if len(breakdown) == 0 {
		return nil
	}
	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	factors := make([]model.Factor, 0, len(names))
	for _, name := range names {
		factors = append(factors, model.Factor{Name: name, Contribution: breakdown[name]})
	}
	return factors
}

func mergeTagSets(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, set := range [][]string{a, b} {
		for _, tag := range set {
			if tag != "" && !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	return out
}
