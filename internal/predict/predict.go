package predict

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/leadpipe/internal/model"
)

// Output is the result of one predictive scoring run.
type Output struct {
	Score             float64 // 0-100
	DaysUntilDistress int     // estimated time to a critical event
	Confidence        float64 // 0-100, driven by data completeness
	Components        []model.Factor
}

// neutral is the component value used when a feature is unavailable.
const neutral = 50.0

// Compute maps a feature bundle to a probabilistic composite score and a
// time-to-distress estimate. Pure: no time or randomness dependence; the
// caller supplies all temporal deltas in the bundle. Returns an error only
// for an invalid weight schema.
func Compute(f model.FeatureBundle, w WeightSchema) (Output, error) {
	if err := w.Validate(); err != nil {
		return Output{}, err
	}

	present := 0
	total := 0
	track := func(known bool, v float64) float64 {
		total++
		if known {
			present++
			return v
		}
		return neutral
	}

	components := map[string]float64{
		"owner_age_inference":     track(f.OwnerAgeEstimate != nil, ownerAge(f.OwnerAgeEstimate)),
		"equity_burn_rate":        track(f.EquityPercent != nil && f.PrevEquityPercent != nil, equityBurn(f)),
		"absentee_duration":       track(true, absenteeDuration(f)),
		"tax_delinquency_trend":   track(f.TaxDelinquentAmt != nil, taxTrend(f)),
		"life_event_probability":  track(true, lifeEvent(f)),
		"signal_velocity":         track(len(f.HistoricalScores) > 0 || f.RecentSignalCount > 0, signalVelocity(f)),
		"ownership_stress":        track(true, ownershipStress(f)),
		"market_exposure":         track(f.ComparableValueRat != nil, marketExposure(f)),
		"skip_trace_intelligence": track(true, skipTraceIntel(f)),
	}
	weights := w.Map()

	var score float64
	factors := make([]model.Factor, 0, len(components))
	for _, name := range componentOrder {
		c := components[name]
		score += c * weights[name]
		factors = append(factors, model.Factor{
			Name:         name,
			Contribution: math.Round(c*weights[name]*100) / 100,
		})
	}
	score = clamp(score, 0, 100)

	// Confidence starts from data completeness and is discounted when the
	// model is running mostly on defaults.
	confidence := clamp(30+70*float64(present)/float64(total), 0, 100)

	return Output{
		Score:             math.Round(score*100) / 100,
		DaysUntilDistress: daysUntilDistress(f, score),
		Confidence:        math.Round(confidence*100) / 100,
		Components:        factors,
	}, nil
}

// componentOrder fixes iteration order so output is deterministic.
var componentOrder = []string{
	"owner_age_inference",
	"equity_burn_rate",
	"absentee_duration",
	"tax_delinquency_trend",
	"life_event_probability",
	"signal_velocity",
	"ownership_stress",
	"market_exposure",
	"skip_trace_intelligence",
}

// BuildPredictionRecord packages an output plus the weight snapshot used,
// for append-only audit and replay.
func BuildPredictionRecord(propertyID string, out Output, w WeightSchema) model.PredictionRecord {
	return model.PredictionRecord{
		ID:                uuid.New().String(),
		PropertyID:        propertyID,
		Score:             out.Score,
		DaysUntilDistress: out.DaysUntilDistress,
		Confidence:        out.Confidence,
		Weights:           w.Map(),
		Components:        out.Components,
		CreatedAt:         time.Now().UTC(),
	}
}

func ownerAge(age *float64) float64 {
	if age == nil {
		return neutral
	}
	switch a := *age; {
	case a >= 75:
		return 90
	case a >= 65:
		return 72
	case a >= 55:
		return 55
	case a > 0:
		return 30
	default:
		return neutral
	}
}

// equityBurn annualizes the equity delta between the two readings. Faster
// burn means distress arrives sooner.
func equityBurn(f model.FeatureBundle) float64 {
	if f.EquityPercent == nil || f.PrevEquityPercent == nil {
		return neutral
	}
	days := 365.0
	if f.EquityReadingDays != nil && *f.EquityReadingDays > 0 {
		days = *f.EquityReadingDays
	}
	annualLoss := (*f.PrevEquityPercent - *f.EquityPercent) / days * 365
	switch {
	case annualLoss >= 20:
		return 95
	case annualLoss >= 10:
		return 78
	case annualLoss >= 5:
		return 60
	case annualLoss > 0:
		return 45
	default:
		return 20
	}
}

func absenteeDuration(f model.FeatureBundle) float64 {
	if !f.Absentee {
		return 15
	}
	if f.AbsenteeYears == nil {
		return 45
	}
	switch y := *f.AbsenteeYears; {
	case y >= 10:
		return 90
	case y >= 5:
		return 72
	case y >= 2:
		return 55
	default:
		return 45
	}
}

func taxTrend(f model.FeatureBundle) float64 {
	if f.TaxDelinquentAmt == nil {
		return neutral
	}
	amt := *f.TaxDelinquentAmt
	if amt <= 0 {
		return 10
	}
	growing := f.TaxDelinquentPrev != nil && amt > *f.TaxDelinquentPrev
	switch {
	case amt >= 10000 && growing:
		return 95
	case amt >= 10000:
		return 82
	case amt >= 2500 && growing:
		return 75
	case amt >= 2500:
		return 60
	case growing:
		return 55
	default:
		return 40
	}
}

func lifeEvent(f model.FeatureBundle) float64 {
	switch {
	case f.Probate:
		return 95
	case f.Inherited:
		return 78
	default:
		return 20
	}
}

// signalVelocity looks at recent signal volume and the slope of the score
// history: a rising trajectory means distress is accelerating.
func signalVelocity(f model.FeatureBundle) float64 {
	score := clamp(float64(f.RecentSignalCount)*15, 0, 60)
	if n := len(f.HistoricalScores); n >= 2 {
		delta := f.HistoricalScores[n-1] - f.HistoricalScores[0]
		score += clamp(delta, 0, 40)
	}
	return clamp(score, 0, 100)
}

func ownershipStress(f model.FeatureBundle) float64 {
	var score float64
	switch f.ForeclosureStage {
	case "auction_scheduled":
		score = 95
	case "notice":
		score = 75
	default:
		score = 15
	}
	if f.DefaultAmount != nil && *f.DefaultAmount > 0 {
		score = clamp(score+10, 0, 100)
	}
	if f.Vacant {
		score = clamp(score+10, 0, 100)
	}
	return score
}

func marketExposure(f model.FeatureBundle) float64 {
	if f.ComparableValueRat == nil {
		return neutral
	}
	// Below-comparable pricing means favorable exposure.
	ratio := *f.ComparableValueRat
	switch {
	case ratio <= 0.8:
		return 90
	case ratio <= 0.95:
		return 70
	case ratio <= 1.05:
		return 50
	case ratio <= 1.2:
		return 30
	default:
		return 15
	}
}

func skipTraceIntel(f model.FeatureBundle) float64 {
	switch {
	case f.PhoneOnFile && f.EmailOnFile:
		return 90
	case f.PhoneOnFile || f.EmailOnFile:
		return 62
	default:
		return 25
	}
}

// daysUntilDistress estimates time to a critical event. Foreclosure stage
// dominates; otherwise the estimate shrinks as the score rises.
func daysUntilDistress(f model.FeatureBundle, score float64) int {
	switch f.ForeclosureStage {
	case "auction_scheduled":
		return 30
	case "notice":
		return 90
	}
	base := 365 - int(score*2.5)
	if f.Probate {
		base -= 60
	}
	if base < 45 {
		base = 45
	}
	return base
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
