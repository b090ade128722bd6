package scoring

import "github.com/rotisserie/eris"

// Config holds the deterministic scoring constants. All of these are
// operator-tunable; the defaults below are the shipped calibration.
type Config struct {
	// DecayHalfLifeDays controls recency decay: a signal's contribution
	// halves every half-life.
	DecayHalfLifeDays float64 `yaml:"decay_half_life_days" mapstructure:"decay_half_life_days"`

	// SignalScale converts severity (0-10) into motivation points.
	SignalScale float64 `yaml:"signal_scale" mapstructure:"signal_scale"`

	// StackBonusPerType and StackBonusCap reward compound distress:
	// bonus = min((distinctTypes-1) * per, cap).
	StackBonusPerType float64 `yaml:"stack_bonus_per_type" mapstructure:"stack_bonus_per_type"`
	StackBonusCap     float64 `yaml:"stack_bonus_cap" mapstructure:"stack_bonus_cap"`

	// Owner-flag weights.
	AbsenteeWeight   float64 `yaml:"absentee_weight" mapstructure:"absentee_weight"`
	CorporateWeight  float64 `yaml:"corporate_weight" mapstructure:"corporate_weight"`
	InheritedWeight  float64 `yaml:"inherited_weight" mapstructure:"inherited_weight"`
	ElderlyWeight    float64 `yaml:"elderly_weight" mapstructure:"elderly_weight"`
	OutOfStateWeight float64 `yaml:"out_of_state_weight" mapstructure:"out_of_state_weight"`

	// Equity factor: points per equity percent, plus a capped market
	// exposure component from the comparable-value ratio. Unknown equity
	// scores UnknownEquityScore instead of zero.
	EquityPointsPerPct float64 `yaml:"equity_points_per_pct" mapstructure:"equity_points_per_pct"`
	UnknownEquityScore float64 `yaml:"unknown_equity_score" mapstructure:"unknown_equity_score"`
	MarketExposureCap  float64 `yaml:"market_exposure_cap" mapstructure:"market_exposure_cap"`

	// Historical conversion adjustment: (rate - baseline) * scale,
	// clamped to +-ConversionAdjCap.
	ConversionBaseline float64 `yaml:"conversion_baseline" mapstructure:"conversion_baseline"`
	ConversionScale    float64 `yaml:"conversion_scale" mapstructure:"conversion_scale"`
	ConversionAdjCap   float64 `yaml:"conversion_adj_cap" mapstructure:"conversion_adj_cap"`

	// Composite = MotivationWeight*motivation + DealWeight*deal.
	MotivationWeight float64 `yaml:"motivation_weight" mapstructure:"motivation_weight"`
	DealWeight       float64 `yaml:"deal_weight" mapstructure:"deal_weight"`

	// Blend of deterministic composite and predictive score.
	BlendDeterministic float64 `yaml:"blend_deterministic" mapstructure:"blend_deterministic"`
	BlendPredictive    float64 `yaml:"blend_predictive" mapstructure:"blend_predictive"`
}

// DefaultConfig returns the shipped scoring calibration. The label bands
// (fire/hot/warm) and the 70/30 blend ratio mirror the operator UI.
func DefaultConfig() Config {
	return Config{
		DecayHalfLifeDays:  45,
		SignalScale:        11.0,
		StackBonusPerType:  6,
		StackBonusCap:      24,
		AbsenteeWeight:     8,
		CorporateWeight:    5,
		InheritedWeight:    10,
		ElderlyWeight:      7,
		OutOfStateWeight:   6,
		EquityPointsPerPct: 0.8,
		UnknownEquityScore: 50,
		MarketExposureCap:  20,
		ConversionBaseline: 0.05,
		ConversionScale:    100,
		ConversionAdjCap:   15,
		MotivationWeight:   0.7,
		DealWeight:         0.3,
		BlendDeterministic: 0.70,
		BlendPredictive:    0.30,
	}
}

// Validate rejects calibrations that break scoring invariants.
func (c Config) Validate() error {
	if c.DecayHalfLifeDays <= 0 {
		return eris.New("scoring: decay half-life must be positive")
	}
	if c.StackBonusPerType < 0 || c.StackBonusCap < 0 {
		return eris.New("scoring: stacking bonus must be non-negative")
	}
	if c.MotivationWeight < 0 || c.DealWeight < 0 {
		return eris.New("scoring: composite weights must be non-negative")
	}
	if sum := c.MotivationWeight + c.DealWeight; sum < 0.995 || sum > 1.005 {
		return eris.Errorf("scoring: composite weights sum to %.3f, want 1.0", sum)
	}
	if c.BlendDeterministic < 0 || c.BlendPredictive < 0 {
		return eris.New("scoring: blend weights must be non-negative")
	}
	if sum := c.BlendDeterministic + c.BlendPredictive; sum < 0.995 || sum > 1.005 {
		return eris.Errorf("scoring: blend weights sum to %.3f, want 1.0", sum)
	}
	return nil
}
