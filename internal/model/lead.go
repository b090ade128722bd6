package model

import "time"

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	StatusProspect    LeadStatus = "prospect"
	StatusLead        LeadStatus = "lead"
	StatusNegotiation LeadStatus = "negotiation"
	StatusDisposition LeadStatus = "disposition"
	StatusNurture     LeadStatus = "nurture"
	StatusDead        LeadStatus = "dead"
	StatusClosed      LeadStatus = "closed"
)

// ActiveStatuses are the states in which a lead blocks creation of a
// second lead for the same property.
var ActiveStatuses = []LeadStatus{StatusProspect, StatusLead, StatusNegotiation}

// IsActive reports whether s counts toward the one-active-lead-per-property
// invariant.
func (s LeadStatus) IsActive() bool {
	return s == StatusProspect || s == StatusLead || s == StatusNegotiation
}

// Lead is the work item a human acts on. Priority mirrors the last blended
// heat score. LockVersion only increases; every write is a compare-and-swap
// against the version the writer last observed.
type Lead struct {
	ID          string     `json:"id" db:"id"`
	PropertyID  string     `json:"property_id" db:"property_id"`
	Status      LeadStatus `json:"status" db:"status"`
	Priority    float64    `json:"priority" db:"priority"`
	Source      string     `json:"source" db:"source"`
	Tags        []string   `json:"tags,omitempty" db:"tags"`
	AssignedTo  string     `json:"assigned_to,omitempty" db:"assigned_to"`
	LockVersion int64      `json:"lock_version" db:"lock_version"`
	Notes       string     `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// AuditEntry is one immutable row in the append-only event log. Every
// ingestion phase and every lead mutation appends one.
type AuditEntry struct {
	ID         string         `json:"id" db:"id"`
	Actor      string         `json:"actor" db:"actor"`
	Action     string         `json:"action" db:"action"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	EntityID   string         `json:"entity_id" db:"entity_id"`
	Details    map[string]any `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
