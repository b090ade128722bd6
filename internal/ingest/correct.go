package ingest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/store"
)

// Correction is an inbound manual data fix.
type Correction struct {
	PropertyID string         `json:"property_id"`
	LeadID     string         `json:"lead_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Fields     map[string]any `json:"fields"`
}

// Correct applies an allow-listed manual correction to a property. Fields
// outside the allow-list reject the whole correction so a typo cannot
// silently half-apply. The change is logged against the lead when one is
// referenced.
func (s *Service) Correct(ctx context.Context, c Correction) error {
	if c.PropertyID == "" {
		return model.NewValidationError("property_id", "required")
	}
	if len(c.Fields) == 0 {
		return model.NewValidationError("fields", "at least one field required")
	}
	for name := range c.Fields {
		if !store.AllowedPropertyField(name) {
			return model.NewValidationError("fields."+name, "not correctable")
		}
	}

	if err := s.store.UpdatePropertyFields(ctx, c.PropertyID, c.Fields); err != nil {
		return eris.Wrap(err, "ingest: apply correction")
	}

	actor := c.ActorID
	if actor == "" {
		actor = "manual"
	}
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	details := map[string]any{"fields": names}
	if c.LeadID != "" {
		details["lead_id"] = c.LeadID
	}
	s.auditRecord(ctx, actor, "property.corrected", c.PropertyID, details)
	return nil
}
