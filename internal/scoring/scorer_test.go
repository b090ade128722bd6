package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe/internal/model"
)

func TestCompute_Deterministic(t *testing.T) {
	in := Input{
		Signals: []Signal{
			{Type: model.EventPreForeclosure, Severity: 9, DaysSinceEvent: 3},
			{Type: model.EventTaxLien, Severity: 6, DaysSinceEvent: 30},
		},
		Owner:          model.OwnerProfile{Absentee: true, Inherited: true},
		EquityPercent:  55,
		CompValueRatio: 0.92,
		ConversionRate: 0.08,
	}
	cfg := DefaultConfig()

	a := Compute(in, cfg)
	b := Compute(in, cfg)
	assert.Equal(t, a, b, "identical input must yield identical output including factors")
	assert.GreaterOrEqual(t, a.Composite, 0.0)
	assert.LessOrEqual(t, a.Composite, 100.0)
	assert.NotEmpty(t, a.Factors)
}

func TestCompute_StackingMonotone(t *testing.T) {
	cfg := DefaultConfig()
	base := Input{
		Signals: []Signal{
			{Type: model.EventProbate, Severity: 7, DaysSinceEvent: 10},
		},
	}
	prev := Compute(base, cfg).MotivationScore

	// Adding a distinct active signal type must never decrease motivation.
	additions := []model.EventType{model.EventVacant, model.EventTaxLien, model.EventDivorce, model.EventBankruptcy}
	for _, et := range additions {
		base.Signals = append(base.Signals, Signal{Type: et, Severity: 5, DaysSinceEvent: 10})
		cur := Compute(base, cfg).MotivationScore
		assert.GreaterOrEqual(t, cur, prev, "adding %s lowered motivation", et)
		prev = cur
	}
}

func TestCompute_DecayMonotone(t *testing.T) {
	cfg := DefaultConfig()
	prev := 1000.0
	for _, days := range []float64{0, 1, 7, 30, 90, 365} {
		in := Input{Signals: []Signal{{Type: model.EventVacant, Severity: 8, DaysSinceEvent: days}}}
		score := Compute(in, cfg).MotivationScore
		assert.LessOrEqual(t, score, prev, "older signal scored higher at %v days", days)
		prev = score
	}
}

func TestCompute_FresherNeverLower(t *testing.T) {
	cfg := DefaultConfig()
	fresh := Compute(Input{Signals: []Signal{{Type: model.EventTaxLien, Severity: 9, DaysSinceEvent: 1}}}, cfg)
	stale := Compute(Input{Signals: []Signal{{Type: model.EventTaxLien, Severity: 9, DaysSinceEvent: 180}}}, cfg)
	assert.Greater(t, fresh.MotivationScore, stale.MotivationScore)
}

func TestCompute_OwnerFactors(t *testing.T) {
	cfg := DefaultConfig()
	none := Compute(Input{Owner: model.OwnerProfile{}}, cfg)
	all := Compute(Input{Owner: model.OwnerProfile{
		Absentee: true, Corporate: true, Inherited: true, Elderly: true, OutOfState: true,
	}}, cfg)
	assert.Greater(t, all.MotivationScore, none.MotivationScore)

	expected := cfg.AbsenteeWeight + cfg.CorporateWeight + cfg.InheritedWeight +
		cfg.ElderlyWeight + cfg.OutOfStateWeight
	assert.InDelta(t, expected, all.MotivationScore, 0.01)
}

func TestCompute_Labels(t *testing.T) {
	tests := []struct {
		composite float64
		label     string
	}{
		{90, "fire"}, {85, "fire"}, {84.9, "hot"}, {65, "hot"},
		{64.9, "warm"}, {40, "warm"}, {39.9, "cold"}, {0, "cold"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.label, Label(tt.composite), "composite %v", tt.composite)
	}
}

func TestCompute_FactorsItemized(t *testing.T) {
	in := Input{
		Signals:       []Signal{{Type: model.EventProbate, Severity: 5, DaysSinceEvent: 0}},
		Owner:         model.OwnerProfile{Absentee: true},
		EquityPercent: 30,
	}
	res := Compute(in, DefaultConfig())

	names := map[string]bool{}
	for _, f := range res.Factors {
		names[f.Name] = true
	}
	assert.True(t, names["signal:probate"])
	assert.True(t, names["owner_factor"])
	assert.True(t, names["equity_factor"])
}

func TestBlend_Bounds(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct{ d, p float64 }{
		{80, 40}, {40, 80}, {0, 100}, {100, 0}, {55, 55}, {0, 0}, {100, 100},
	}
	for _, tt := range tests {
		got := Blend(tt.d, tt.p, cfg)
		lo, hi := tt.d, tt.p
		if lo > hi {
			lo, hi = hi, lo
		}
		assert.GreaterOrEqual(t, got, lo, "blend(%v,%v)", tt.d, tt.p)
		assert.LessOrEqual(t, got, hi, "blend(%v,%v)", tt.d, tt.p)
	}
}

func TestBlend_Ratio(t *testing.T) {
	got := Blend(100, 0, DefaultConfig())
	assert.InDelta(t, 70.0, got, 0.01, "default blend is 70/30 deterministic/predictive")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MotivationWeight = 0.5
	bad.DealWeight = 0.3
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.BlendDeterministic = 0.9
	bad.BlendPredictive = 0.3
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.DecayHalfLifeDays = 0
	assert.Error(t, bad.Validate())
}
