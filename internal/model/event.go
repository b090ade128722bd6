package model

import "time"

// EventType classifies a distress signal.
type EventType string

const (
	EventProbate        EventType = "probate"
	EventPreForeclosure EventType = "pre_foreclosure"
	EventTaxLien        EventType = "tax_lien"
	EventCodeViolation  EventType = "code_violation"
	EventVacant         EventType = "vacant"
	EventDivorce        EventType = "divorce"
	EventBankruptcy     EventType = "bankruptcy"
	EventFSBO           EventType = "fsbo"
	EventAbsentee       EventType = "absentee"
	EventInherited      EventType = "inherited"
	EventWaterShutoff   EventType = "water_shutoff"
	EventUtilityShutoff EventType = "utility_shutoff"
	EventEviction       EventType = "eviction"
)

// knownEventTypes is the closed set accepted at the ingestion boundary.
var knownEventTypes = map[EventType]bool{
	EventProbate: true, EventPreForeclosure: true, EventTaxLien: true,
	EventCodeViolation: true, EventVacant: true, EventDivorce: true,
	EventBankruptcy: true, EventFSBO: true, EventAbsentee: true,
	EventInherited: true, EventWaterShutoff: true, EventUtilityShutoff: true,
	EventEviction: true,
}

// ValidEventType reports whether t is a recognized distress type.
func ValidEventType(t EventType) bool { return knownEventTypes[t] }

// DistressEvent is one observed signal for a property. Events are
// append-only: never updated, never deleted. History is reconstructed by
// querying all events for a property. The fingerprint, a hash over
// (apn, county, type, source), is globally unique; inserting a second
// event with the same fingerprint is a no-op duplicate, not an error.
type DistressEvent struct {
	ID          string    `json:"id" db:"id"`
	PropertyID  string    `json:"property_id" db:"property_id"`
	Type        EventType `json:"type" db:"event_type"`
	Source      string    `json:"source" db:"source"`
	Severity    float64   `json:"severity" db:"severity"`     // 0-10
	Confidence  float64   `json:"confidence" db:"confidence"` // 0-1
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	RawPayload  []byte    `json:"raw_payload,omitempty" db:"raw_payload"`
	ObservedAt  time.Time `json:"observed_at" db:"observed_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CrawledRecord is the normalized output of one harvesting adapter
// before it is folded into Property/DistressEvent. It is ephemeral and
// tolerates missing fields; a record with no address is still emitted
// and resolved later by downstream enrichment.
type CrawledRecord struct {
	OwnerName  string         `json:"owner_name,omitempty"`
	APN        string         `json:"apn,omitempty"`
	Street     string         `json:"street,omitempty"`
	City       string         `json:"city,omitempty"`
	State      string         `json:"state,omitempty"`
	County     string         `json:"county,omitempty"`
	Date       time.Time      `json:"date"`
	SourceLink string         `json:"source_link,omitempty"`
	Type       EventType      `json:"type"`
	Source     string         `json:"source"`
	Severity   float64        `json:"severity"`
	Confidence float64        `json:"confidence"`
	Raw        map[string]any `json:"raw,omitempty"`
}
