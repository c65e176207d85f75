package quant

// RegimeParams holds the calibration constants for regime classification.
type RegimeParams struct {
	ChopThreshold     float64 `mapstructure:"chop_threshold"`     // |net gamma| below this is CHOP
	ElevatedThreshold float64 `mapstructure:"elevated_threshold"` // |net gamma| at or above this is ELEVATED vol risk
	ChopConfidence    float64 `mapstructure:"chop_confidence"`
	ChopPin           float64 `mapstructure:"chop_pin"`
	TrendConfidence   float64 `mapstructure:"trend_confidence"`
	TrendPin          float64 `mapstructure:"trend_pin"`
}

// ScenarioParams holds the bull probability cut-offs for scenario labels.
type ScenarioParams struct {
	BullishAbove float64 `mapstructure:"bullish_above"`
	BearishBelow float64 `mapstructure:"bearish_below"`
}

// TargetParams holds the blend weights for target projection.
type TargetParams struct {
	CenterWeight   float64 `mapstructure:"center_weight"`
	DominantWeight float64 `mapstructure:"dominant_weight"`
	DriftWeight    float64 `mapstructure:"drift_weight"`
}

// Params groups every tunable constant used by the engine.
type Params struct {
	Regime         RegimeParams   `mapstructure:"regime"`
	Scenario       ScenarioParams `mapstructure:"scenario"`
	Target         TargetParams   `mapstructure:"target"`
	LevelsPerSide  int            `mapstructure:"levels_per_side"`
	DefaultDays    int            `mapstructure:"default_days"`
	MaxConcurrency int            `mapstructure:"max_concurrency"`
}

// DefaultParams returns the stock calibration.
func DefaultParams() Params {
	return Params{
		Regime: RegimeParams{
			ChopThreshold:     1e7,
			ElevatedThreshold: 5e7,
			ChopConfidence:    0.55,
			ChopPin:           0.6,
			TrendConfidence:   0.7,
			TrendPin:          0.35,
		},
		Scenario: ScenarioParams{
			BullishAbove: 55,
			BearishBelow: 45,
		},
		Target: TargetParams{
			CenterWeight:   0.6,
			DominantWeight: 0.4,
			DriftWeight:    0.25,
		},
		LevelsPerSide:  2,
		DefaultDays:    7,
		MaxConcurrency: 8,
	}
}
