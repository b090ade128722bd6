// Package scoring implements the deterministic rule-based scorer and the
// blend of deterministic and predictive scores. Compute is pure: identical
// input always yields identical output including the factor breakdown.
package scoring

import (
	"fmt"
	"math"

	"github.com/sells-group/leadpipe/internal/model"
)

// Signal is one active distress signal as seen by the scorer.
type Signal struct {
	Type           model.EventType
	Severity       float64 // 0-10
	DaysSinceEvent float64
}

// Input bundles everything the deterministic scorer looks at.
type Input struct {
	Signals        []Signal
	Owner          model.OwnerProfile
	EquityPercent  float64 // 0-100; negative means unknown
	CompValueRatio float64 // estimated value / comparable value; <=0 means unknown
	ConversionRate float64 // historical conversion rate for this cohort, 0-1
}

// Result is the outcome of one deterministic scoring run.
type Result struct {
	MotivationScore float64
	DealScore       float64
	Composite       float64
	Label           string
	Factors         []model.Factor
}

// Label bands observed in the operator UI.
const (
	labelFireMin = 85
	labelHotMin  = 65
	labelWarmMin = 40
)

// Compute maps a signal/owner/equity bundle to a rule-based composite
// score in [0,100] with an itemized factor breakdown.
func Compute(in Input, cfg Config) Result {
	var factors []model.Factor

	// Per-signal contribution: severity scaled by recency decay. Older
	// signals never score higher than fresher identical signals.
	var signalSum float64
	distinct := map[model.EventType]bool{}
	for _, s := range in.Signals {
		contrib := clampFloat(s.Severity, 0, 10) * recencyDecay(s.DaysSinceEvent, cfg.DecayHalfLifeDays) * cfg.SignalScale
		signalSum += contrib
		distinct[s.Type] = true
		factors = append(factors, model.Factor{
			Name:         fmt.Sprintf("signal:%s", s.Type),
			Contribution: round2(contrib),
		})
	}

	// Stacking bonus: monotone non-decreasing in the count of distinct
	// active types, so adding a signal type never lowers the score.
	var stack float64
	if n := len(distinct); n > 1 {
		stack = math.Min(float64(n-1)*cfg.StackBonusPerType, cfg.StackBonusCap)
		factors = append(factors, model.Factor{Name: "stacking_bonus", Contribution: round2(stack)})
	}

	owner := ownerFactor(in.Owner, cfg)
	if owner > 0 {
		factors = append(factors, model.Factor{Name: "owner_factor", Contribution: round2(owner)})
	}

	motivation := clampFloat(signalSum+stack+owner, 0, 100)

	equity := equityFactor(in.EquityPercent, in.CompValueRatio, cfg)
	factors = append(factors, model.Factor{Name: "equity_factor", Contribution: round2(equity)})

	convAdj := clampFloat((in.ConversionRate-cfg.ConversionBaseline)*cfg.ConversionScale,
		-cfg.ConversionAdjCap, cfg.ConversionAdjCap)
	if convAdj != 0 {
		factors = append(factors, model.Factor{Name: "conversion_adjustment", Contribution: round2(convAdj)})
	}

	deal := clampFloat(equity+convAdj, 0, 100)

	composite := clampFloat(cfg.MotivationWeight*motivation+cfg.DealWeight*deal, 0, 100)

	return Result{
		MotivationScore: round2(motivation),
		DealScore:       round2(deal),
		Composite:       round2(composite),
		Label:           Label(composite),
		Factors:         factors,
	}
}

// Label buckets a composite score into the operator-facing temperature band.
func Label(composite float64) string {
	switch {
	case composite >= labelFireMin:
		return "fire"
	case composite >= labelHotMin:
		return "hot"
	case composite >= labelWarmMin:
		return "warm"
	default:
		return "cold"
	}
}

// recencyDecay halves a signal's weight every halfLife days. Monotone
// decreasing in age.
func recencyDecay(days, halfLife float64) float64 {
	if days <= 0 {
		return 1
	}
	if halfLife <= 0 {
		halfLife = 45
	}
	return math.Pow(0.5, days/halfLife)
}

// ownerFactor sums fixed per-flag weights for owner attributes correlated
// with seller motivation.
func ownerFactor(o model.OwnerProfile, cfg Config) float64 {
	var score float64
	if o.Absentee {
		score += cfg.AbsenteeWeight
	}
	if o.Corporate {
		score += cfg.CorporateWeight
	}
	if o.Inherited {
		score += cfg.InheritedWeight
	}
	if o.Elderly {
		score += cfg.ElderlyWeight
	}
	if o.OutOfState {
		score += cfg.OutOfStateWeight
	}
	return score
}

// equityFactor rewards high equity and favorable market exposure. A
// comparable-value ratio under 1.0 means the property is priced below
// comparables. Negative equityPct means unknown and scores neutral.
func equityFactor(equityPct, compRatio float64, cfg Config) float64 {
	var score float64
	switch {
	case equityPct < 0:
		score += cfg.UnknownEquityScore
	case equityPct > 0:
		score += clampFloat(equityPct, 0, 100) * cfg.EquityPointsPerPct
	}
	if compRatio > 0 {
		exposure := clampFloat((1.15-compRatio)*100, 0, cfg.MarketExposureCap)
		score += exposure
	}
	return score
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
