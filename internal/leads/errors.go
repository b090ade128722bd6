package leads

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sells-group/leadpipe/internal/model"
)

// IllegalTransitionError reports a status change not in the allowed table.
type IllegalTransitionError struct {
	From model.LeadStatus
	To   model.LeadStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// IsIllegalTransition reports whether err is (or wraps) an
// IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var ite *IllegalTransitionError
	return errors.As(err, &ite)
}

// ComplianceBlockedError carries the structured reasons a scrub check
// refused an exposure-increasing action.
type ComplianceBlockedError struct {
	LeadID  string
	Reasons []string
}

func (e *ComplianceBlockedError) Error() string {
	return fmt.Sprintf("compliance blocked lead %s: %s", e.LeadID, strings.Join(e.Reasons, "; "))
}

// IsComplianceBlocked reports whether err is (or wraps) a
// ComplianceBlockedError.
func IsComplianceBlocked(err error) bool {
	var cbe *ComplianceBlockedError
	return errors.As(err, &cbe)
}
