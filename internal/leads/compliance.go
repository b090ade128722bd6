package leads

import (
	"context"

	"github.com/sells-group/leadpipe/internal/model"
)

// ScrubConfig lists the entities blocked from exposure-increasing actions:
// properties on a legal hold, owners on a do-not-contact list, and actors
// whose access was revoked.
type ScrubConfig struct {
	BlockedProperties []string `yaml:"blocked_properties" mapstructure:"blocked_properties"`
	DoNotContact      []string `yaml:"do_not_contact" mapstructure:"do_not_contact"`
	RevokedActors     []string `yaml:"revoked_actors" mapstructure:"revoked_actors"`
}

// ScrubList is the stock Compliance implementation: membership checks
// against configured block lists. Reasons accumulate so a caller sees every
// violation at once, not just the first.
type ScrubList struct {
	blockedProperties map[string]bool
	doNotContact      map[string]bool
	revokedActors     map[string]bool
}

// NewScrubList builds a ScrubList from config.
func NewScrubList(cfg ScrubConfig) *ScrubList {
	return &ScrubList{
		blockedProperties: toSet(cfg.BlockedProperties),
		doNotContact:      toSet(cfg.DoNotContact),
		revokedActors:     toSet(cfg.RevokedActors),
	}
}

// Check returns the reasons the action must be blocked. Empty means clear.
func (s *ScrubList) Check(ctx context.Context, lead *model.Lead, actorID string) ([]string, error) {
	var reasons []string
	if s.blockedProperties[lead.PropertyID] {
		reasons = append(reasons, "property on legal hold")
	}
	if actorID != "" && s.revokedActors[actorID] {
		reasons = append(reasons, "actor access revoked")
	}
	if lead.AssignedTo != "" && s.revokedActors[lead.AssignedTo] {
		reasons = append(reasons, "assignee access revoked")
	}
	for _, tag := range lead.Tags {
		if s.doNotContact[tag] {
			reasons = append(reasons, "owner on do-not-contact list")
			break
		}
	}
	return reasons, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
