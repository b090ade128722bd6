// Package leads implements the guarded lead lifecycle: the status state
// machine, the promotion gate, and optimistic-concurrency mutations.
//
// Status graph:
//
//	prospect ──► lead ──► negotiation ──► disposition ──► closed
//	    │          │  ▲        │               │
//	    │          │  └── nurture ◄────────────┤
//	    └──────────┴───────────┴───── dead ◄───┘
//
// dead and closed are terminal.
package leads

import (
	"fmt"

	"github.com/sells-group/leadpipe/internal/model"
)

// validTransitions lists every allowed (current → next) pair. Terminal
// states have no entry.
var validTransitions = map[model.LeadStatus][]model.LeadStatus{
	model.StatusProspect:    {model.StatusLead, model.StatusDead},
	model.StatusLead:        {model.StatusNegotiation, model.StatusNurture, model.StatusDead},
	model.StatusNegotiation: {model.StatusDisposition, model.StatusNurture, model.StatusDead},
	model.StatusDisposition: {model.StatusClosed, model.StatusNurture, model.StatusDead},
	model.StatusNurture:     {model.StatusLead, model.StatusDead},
}

// ParseStatus converts a raw string to a LeadStatus, rejecting unknown
// values.
func ParseStatus(s string) (model.LeadStatus, error) {
	st := model.LeadStatus(s)
	switch st {
	case model.StatusProspect, model.StatusLead, model.StatusNegotiation,
		model.StatusDisposition, model.StatusNurture, model.StatusDead, model.StatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown lead status %q", s)
}

// ValidateStatusTransition returns true only if next is in current's
// allowed set.
func ValidateStatusTransition(current, next model.LeadStatus) bool {
	allowed, ok := validTransitions[current]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == next {
			return true
		}
	}
	return false
}

// increasesExposure reports whether a transition into next raises contact
// exposure and therefore requires a compliance pass.
func increasesExposure(next model.LeadStatus) bool {
	return next == model.StatusLead || next == model.StatusNegotiation
}
