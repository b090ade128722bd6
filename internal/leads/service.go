package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/model"
)

// Store defines the persistence operations the lead service needs.
// FindActiveLeadByProperty returns nil when no lead in an active status
// exists. UpdateCAS must apply the write only if the stored lock_version
// still equals observedVersion, incrementing it; a mismatch is reported as
// model.ErrVersionConflict.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindActiveLeadByProperty(ctx context.Context, propertyID string) (*model.Lead, error)
	CreateLead(ctx context.Context, lead *model.Lead) error
	UpdateLeadCAS(ctx context.Context, lead *model.Lead, observedVersion int64) error
}

// Compliance is the scrub check gating exposure-increasing actions.
// Reasons is non-empty when the lead is blocked.
type Compliance interface {
	Check(ctx context.Context, lead *model.Lead, actorID string) (reasons []string, err error)
}

// Auditor appends immutable entries to the event log.
type Auditor interface {
	Append(ctx context.Context, entry model.AuditEntry) error
}

// Config holds promotion thresholds and the ghost-mode toggle. Thresholds
// differ per source; sources absent from the map use DefaultThreshold.
type Config struct {
	DefaultThreshold float64            `yaml:"default_threshold" mapstructure:"default_threshold"`
	Thresholds       map[string]float64 `yaml:"thresholds" mapstructure:"thresholds"`

	// GhostMode suppresses activity logging. It never bypasses compliance.
	GhostMode bool `yaml:"ghost_mode" mapstructure:"ghost_mode"`
}

// DefaultConfig mirrors the thresholds observed across call sites: the
// inbound push path promotes at 60, bulk catalog ingestion at 75,
// everything else at 65.
func DefaultConfig() Config {
	return Config{
		DefaultThreshold: 65,
		Thresholds: map[string]float64{
			"push":          60,
			"catalog_delta": 75,
		},
	}
}

// ThresholdFor returns the promotion threshold for a source.
func (c Config) ThresholdFor(source string) float64 {
	if t, ok := c.Thresholds[source]; ok {
		return t
	}
	return c.DefaultThreshold
}

// Service governs all lead creation and mutation.
type Service struct {
	store      Store
	compliance Compliance
	audit      Auditor
	cfg        Config
}

// NewService wires a lead service.
func NewService(store Store, compliance Compliance, audit Auditor, cfg Config) *Service {
	return &Service{store: store, compliance: compliance, audit: audit, cfg: cfg}
}

// PromoteOutcome reports what Promote did.
type PromoteOutcome struct {
	Lead      *model.Lead
	Created   bool
	Refreshed bool
}

// Promote decides whether a property becomes or stays a lead. If an active
// lead exists its priority and tags are refreshed without creating a
// duplicate; otherwise a new lead is created at prospect when the blended
// score meets the source's threshold.
func (s *Service) Promote(ctx context.Context, propertyID string, blended float64, source string, tags []string) (*PromoteOutcome, error) {
	existing, err := s.store.FindActiveLeadByProperty(ctx, propertyID)
	if err != nil {
		return nil, eris.Wrap(err, "leads: find active lead")
	}

	if existing != nil {
		existing.Priority = blended
		existing.Tags = mergeTags(existing.Tags, tags)
		if err := s.store.UpdateLeadCAS(ctx, existing, existing.LockVersion); err != nil {
			return nil, eris.Wrap(err, "leads: refresh priority")
		}
		s.logActivity(ctx, "system", "lead.priority_refreshed", existing.ID, map[string]any{
			"priority": blended,
			"source":   source,
		})
		return &PromoteOutcome{Lead: existing, Refreshed: true}, nil
	}

	if blended < s.cfg.ThresholdFor(source) {
		return &PromoteOutcome{}, nil
	}

	lead := &model.Lead{
		ID:         uuid.New().String(),
		PropertyID: propertyID,
		Status:     model.StatusProspect,
		Priority:   blended,
		Source:     source,
		Tags:       tags,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateLead(ctx, lead); err != nil {
		return nil, eris.Wrap(err, "leads: create lead")
	}

	zap.L().Info("lead promoted",
		zap.String("lead_id", lead.ID),
		zap.String("property_id", propertyID),
		zap.Float64("priority", blended),
		zap.String("source", source),
	)
	s.logActivity(ctx, "system", "lead.created", lead.ID, map[string]any{
		"property_id": propertyID,
		"priority":    blended,
		"source":      source,
	})
	return &PromoteOutcome{Lead: lead, Created: true}, nil
}

// Transition moves a lead to next under optimistic concurrency. When
// observedVersion is nil the server re-reads and uses the current version.
func (s *Service) Transition(ctx context.Context, leadID string, next model.LeadStatus, actorID, note string, observedVersion *int64) (*model.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: get lead %s", leadID)
	}

	version := lead.LockVersion
	if observedVersion != nil {
		version = *observedVersion
	}

	if !ValidateStatusTransition(lead.Status, next) {
		return nil, &IllegalTransitionError{From: lead.Status, To: next}
	}

	if increasesExposure(next) {
		if err := s.checkCompliance(ctx, lead, actorID); err != nil {
			return nil, err
		}
	}

	prev := lead.Status
	lead.Status = next
	if note != "" {
		lead.Notes = appendNote(lead.Notes, actorID, note)
	}
	if err := s.store.UpdateLeadCAS(ctx, lead, version); err != nil {
		return nil, eris.Wrapf(err, "leads: transition %s", leadID)
	}

	details := map[string]any{
		"from": string(prev),
		"to":   string(next),
	}
	if note != "" {
		details["note"] = note
	}
	s.logActivity(ctx, actorID, "lead.status_changed", leadID, details)
	return lead, nil
}

// appendNote adds a timestamped, attributed line to the lead's notes.
func appendNote(existing, actorID, note string) string {
	line := fmt.Sprintf("%s %s: %s", time.Now().UTC().Format(time.RFC3339), actorID, note)
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

// Assign claims a lead for an operator. Assignment increases contact
// exposure and is always compliance-gated.
func (s *Service) Assign(ctx context.Context, leadID, assignee, actorID string, observedVersion *int64) (*model.Lead, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "leads: get lead %s", leadID)
	}

	version := lead.LockVersion
	if observedVersion != nil {
		version = *observedVersion
	}

	if err := s.checkCompliance(ctx, lead, actorID); err != nil {
		return nil, err
	}

	lead.AssignedTo = assignee
	if err := s.store.UpdateLeadCAS(ctx, lead, version); err != nil {
		return nil, eris.Wrapf(err, "leads: assign %s", leadID)
	}

	s.logActivity(ctx, actorID, "lead.assigned", leadID, map[string]any{
		"assigned_to": assignee,
	})
	return lead, nil
}

func (s *Service) checkCompliance(ctx context.Context, lead *model.Lead, actorID string) error {
	if s.compliance == nil {
		return nil
	}
	reasons, err := s.compliance.Check(ctx, lead, actorID)
	if err != nil {
		return eris.Wrap(err, "leads: compliance check")
	}
	if len(reasons) > 0 {
		return &ComplianceBlockedError{LeadID: lead.ID, Reasons: reasons}
	}
	return nil
}

// logActivity appends to the audit log unless ghost mode is on. Ghost mode
// only suppresses logging; compliance gates above always run.
func (s *Service) logActivity(ctx context.Context, actor, action, entityID string, details map[string]any) {
	if s.cfg.GhostMode || s.audit == nil {
		return
	}
	entry := model.AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "lead",
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		zap.L().Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

func mergeTags(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(add))
	for _, t := range existing {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range add {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
