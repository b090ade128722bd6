package ingest

import (
	"encoding/json"
	"time"

	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/scoring"
)

// ownerFlagsFrom lifts owner attributes the adapters infer into property
// flags, where later sightings from other sources merge into them.
func ownerFlagsFrom(rec model.CrawledRecord) map[string]any {
	flags := map[string]any{}
	if rec.SourceLink != "" {
		flags["source_link"] = rec.SourceLink
	}
	switch rec.Type {
	case model.EventAbsentee:
		flags["absentee"] = true
	case model.EventInherited:
		flags["inherited"] = true
	case model.EventProbate:
		flags["probate"] = true
	case model.EventVacant:
		flags["vacant"] = true
	}
	if len(flags) == 0 {
		return nil
	}
	return flags
}

func flagBool(flags map[string]any, key string) bool {
	v, ok := flags[key].(bool)
	return ok && v
}

func flagFloat(flags map[string]any, key string) (float64, bool) {
	v, ok := flags[key].(float64)
	return v, ok
}

// ownerProfile derives the scorer's owner flags from stored property flags
// plus the event history.
func ownerProfile(prop *model.Property, events []model.DistressEvent) model.OwnerProfile {
	p := model.OwnerProfile{
		Absentee:   flagBool(prop.Flags, "absentee"),
		Corporate:  flagBool(prop.Flags, "corporate"),
		Inherited:  flagBool(prop.Flags, "inherited"),
		Elderly:    flagBool(prop.Flags, "elderly"),
		OutOfState: flagBool(prop.Flags, "out_of_state"),
	}
	for _, e := range events {
		switch e.Type {
		case model.EventAbsentee:
			p.Absentee = true
		case model.EventInherited:
			p.Inherited = true
		case model.EventProbate:
			p.Inherited = true
		}
	}
	return p
}

// buildScoringInput maps a property and its event history to the
// deterministic scorer's input.
func buildScoringInput(prop *model.Property, events []model.DistressEvent, now time.Time, convRate float64) scoring.Input {
	signals := make([]scoring.Signal, 0, len(events))
	for _, e := range events {
		days := now.Sub(e.ObservedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		signals = append(signals, scoring.Signal{
			Type:           e.Type,
			Severity:       e.Severity,
			DaysSinceEvent: days,
		})
	}

	equity := -1.0
	if prop.EquityPercent != nil {
		equity = *prop.EquityPercent
	}
	compRatio := 0.0
	if v, ok := flagFloat(prop.Flags, "comp_value_ratio"); ok {
		compRatio = v
	}

	return scoring.Input{
		Signals:        signals,
		Owner:          ownerProfile(prop, events),
		EquityPercent:  equity,
		CompValueRatio: compRatio,
		ConversionRate: convRate,
	}
}

// buildFeatures maps stored state to the predictive scorer's bundle.
// Missing data stays nil; the scorer treats gaps as neutral and reflects
// them in its confidence.
func buildFeatures(prop *model.Property, events []model.DistressEvent, history []float64, now time.Time) model.FeatureBundle {
	owner := ownerProfile(prop, events)

	f := model.FeatureBundle{
		EquityPercent:     prop.EquityPercent,
		LoanBalance:       prop.LoanBalance,
		Absentee:          owner.Absentee,
		Corporate:         owner.Corporate,
		Inherited:         owner.Inherited,
		PhoneOnFile:       prop.OwnerPhone != "",
		EmailOnFile:       prop.OwnerEmail != "",
		HistoricalScores:  history,
		RecentSignalCount: countRecent(events, now, 90),
	}

	if prop.EquityPercent != nil && prop.LoanBalance != nil && *prop.LoanBalance == 0 {
		f.FreeAndClear = true
	}
	if v, ok := flagFloat(prop.Flags, "owner_age_estimate"); ok {
		f.OwnerAgeEstimate = &v
	}
	if v, ok := flagFloat(prop.Flags, "ownership_years"); ok {
		f.OwnershipYears = &v
	}
	if v, ok := flagFloat(prop.Flags, "comp_value_ratio"); ok {
		f.ComparableValueRat = &v
	}

	for _, e := range events {
		switch e.Type {
		case model.EventProbate:
			f.Probate = true
		case model.EventInherited:
			f.Inherited = true
		case model.EventVacant:
			f.Vacant = true
		case model.EventTaxLien:
			if f.TaxDelinquentAmt == nil {
				if amt, ok := taxAmount(e); ok {
					f.TaxDelinquentAmt = &amt
				}
			}
		case model.EventPreForeclosure:
			if f.ForeclosureStage == "" {
				f.ForeclosureStage = "notice"
			}
		}
	}
	return f
}

func countRecent(events []model.DistressEvent, now time.Time, windowDays float64) int {
	n := 0
	for _, e := range events {
		if now.Sub(e.ObservedAt).Hours()/24 <= windowDays {
			n++
		}
	}
	return n
}

func taxAmount(e model.DistressEvent) (float64, bool) {
	if len(e.RawPayload) == 0 {
		return 0, false
	}
	// Raw payloads are adapter-specific; only the tax roll's amount_due is
	// worth digging out here.
	var raw struct {
		AmountDue float64 `json:"amount_due"`
	}
	if err := json.Unmarshal(e.RawPayload, &raw); err != nil || raw.AmountDue <= 0 {
		return 0, false
	}
	return raw.AmountDue, true
}
