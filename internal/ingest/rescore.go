package ingest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/model"
)

// rescoreSource is the threshold-lookup source for operator-initiated
// rescores. It is absent from the threshold map so the default applies.
const rescoreSource = "rescore"

// RescoreResult reports what a rescore did.
type RescoreResult struct {
	PropertyID string  `json:"property_id"`
	Blended    float64 `json:"blended"`
	LeadID     string  `json:"lead_id,omitempty"`
	Created    bool    `json:"lead_created"`
	Refreshed  bool    `json:"lead_refreshed"`
}

// Rescore recomputes both scores for a property from its stored event
// history, appends fresh snapshots, and re-applies the promotion gate.
// No new event is recorded.
func (s *Service) Rescore(ctx context.Context, propertyID string) (*RescoreResult, error) {
	if propertyID == "" {
		return nil, model.NewValidationError("property_id", "required")
	}
	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: get property %s", propertyID)
	}

	outcome, blended, err := s.scoreAndPromote(ctx, prop, rescoreSource)
	if err != nil {
		return nil, err
	}

	res := &RescoreResult{
		PropertyID: prop.ID,
		Blended:    blended,
		Created:    outcome.Created,
		Refreshed:  outcome.Refreshed,
	}
	if outcome.Lead != nil {
		res.LeadID = outcome.Lead.ID
	}

	s.auditRecord(ctx, "system", "property.rescored", prop.ID, map[string]any{
		"blended":      blended,
		"lead_created": outcome.Created,
		"lead_refresh": outcome.Refreshed,
	})
	return res, nil
}
