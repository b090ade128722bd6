package scoring

// Blend combines the deterministic composite and the predictive score into
// the single number used for all promotion and prioritization decisions.
// With non-negative weights summing to 1 the result always lies within
// [min(d,p), max(d,p)].
func Blend(deterministic, predictive float64, cfg Config) float64 {
	wd, wp := cfg.BlendDeterministic, cfg.BlendPredictive
	if wd < 0 || wp < 0 || wd+wp == 0 {
		wd, wp = 0.70, 0.30
	}
	return round2((wd*deterministic + wp*predictive) / (wd + wp))
}
