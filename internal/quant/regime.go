package quant

import "math"

// Regime classifications.
const (
	RegimeChop  = "CHOP"
	RegimeTrend = "TREND"
)

// Volatility risk levels.
const (
	VolRiskLow      = "LOW"
	VolRiskElevated = "ELEVATED"
)

// RegimeResult describes the expected price behavior for a net gamma level.
type RegimeResult struct {
	Classification string
	Confidence     float64
	PinProbability float64
	VolRisk        string
}

// ClassifyRegime buckets |netGamma| into chop or trend and low or elevated
// volatility risk.
func ClassifyRegime(netGamma float64, p RegimeParams) RegimeResult {
	mag := math.Abs(netGamma)

	r := RegimeResult{
		Classification: RegimeTrend,
		Confidence:     p.TrendConfidence,
		PinProbability: p.TrendPin,
		VolRisk:        VolRiskElevated,
	}
	if mag < p.ChopThreshold {
		r.Classification = RegimeChop
		r.Confidence = p.ChopConfidence
		r.PinProbability = p.ChopPin
	}
	if mag < p.ElevatedThreshold {
		r.VolRisk = VolRiskLow
	}
	return r
}
