// Package predict implements the feature-weighted predictive scorer. It is
// governed by a named, operator-calibratable weight schema; calibrations
// whose weights do not sum to 1.0 are rejected before use.
package predict

import (
	"fmt"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadpipe/internal/model"
)

// weightSumTolerance is the accepted deviation from 1.0 for a schema.
const weightSumTolerance = 0.005

// WeightSchema names the nine feature weights of the predictive model.
type WeightSchema struct {
	Name string `yaml:"name" mapstructure:"name"`

	OwnerAgeInference  float64 `yaml:"owner_age_inference" mapstructure:"owner_age_inference"`
	EquityBurnRate     float64 `yaml:"equity_burn_rate" mapstructure:"equity_burn_rate"`
	AbsenteeDuration   float64 `yaml:"absentee_duration" mapstructure:"absentee_duration"`
	TaxDelinquencyTrnd float64 `yaml:"tax_delinquency_trend" mapstructure:"tax_delinquency_trend"`
	LifeEventProb      float64 `yaml:"life_event_probability" mapstructure:"life_event_probability"`
	SignalVelocity     float64 `yaml:"signal_velocity" mapstructure:"signal_velocity"`
	OwnershipStress    float64 `yaml:"ownership_stress" mapstructure:"ownership_stress"`
	MarketExposure     float64 `yaml:"market_exposure" mapstructure:"market_exposure"`
	SkipTraceIntel     float64 `yaml:"skip_trace_intelligence" mapstructure:"skip_trace_intelligence"`
}

// DefaultWeights returns the shipped calibration.
func DefaultWeights() WeightSchema {
	return WeightSchema{
		Name:               "default",
		OwnerAgeInference:  0.10,
		EquityBurnRate:     0.15,
		AbsenteeDuration:   0.10,
		TaxDelinquencyTrnd: 0.12,
		LifeEventProb:      0.13,
		SignalVelocity:     0.12,
		OwnershipStress:    0.13,
		MarketExposure:     0.08,
		SkipTraceIntel:     0.07,
	}
}

// Sum returns the total of all nine weights.
func (w WeightSchema) Sum() float64 {
	return w.OwnerAgeInference + w.EquityBurnRate + w.AbsenteeDuration +
		w.TaxDelinquencyTrnd + w.LifeEventProb + w.SignalVelocity +
		w.OwnershipStress + w.MarketExposure + w.SkipTraceIntel
}

// Validate rejects schemas with negative weights or a sum outside
// 1.0 +- 0.005. Calibration changes must pass before being applied.
func (w WeightSchema) Validate() error {
	for name, v := range w.Map() {
		if v < 0 {
			return model.NewValidationError(name, "weight is negative")
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightSumTolerance {
		return model.NewValidationError("weights",
			fmt.Sprintf("sum to %.4f, want 1.0 within %.3f", sum, weightSumTolerance))
	}
	return nil
}

// Map returns the weights keyed by their schema names, used for the
// append-only snapshot stored with every prediction.
func (w WeightSchema) Map() map[string]float64 {
	return map[string]float64{
		"owner_age_inference":     w.OwnerAgeInference,
		"equity_burn_rate":        w.EquityBurnRate,
		"absentee_duration":       w.AbsenteeDuration,
		"tax_delinquency_trend":   w.TaxDelinquencyTrnd,
		"life_event_probability":  w.LifeEventProb,
		"signal_velocity":         w.SignalVelocity,
		"ownership_stress":        w.OwnershipStress,
		"market_exposure":         w.MarketExposure,
		"skip_trace_intelligence": w.SkipTraceIntel,
	}
}

// LoadSchema reads a calibration file and validates it.
func LoadSchema(path string) (WeightSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WeightSchema{}, eris.Wrapf(err, "predict: read schema %s", path)
	}
	var w WeightSchema
	if err := yaml.Unmarshal(data, &w); err != nil {
		return WeightSchema{}, eris.Wrapf(err, "predict: parse schema %s", path)
	}
	if err := w.Validate(); err != nil {
		return WeightSchema{}, err
	}
	return w, nil
}
