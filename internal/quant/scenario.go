package quant

import "math"

// Scenario labels.
const (
	ScenarioBullish = "BULLISH"
	ScenarioBearish = "BEARISH"
	ScenarioNeutral = "NEUTRAL"
)

// ScenarioInputs are the signals combined into a scenario.
type ScenarioInputs struct {
	CallGamma  float64
	PutGamma   float64
	CallVolume float64
	PutVolume  float64
	Price      float64
	Pivot      float64
}

// ScenarioInfo is a directional call; BullProbability + BearProbability is 100.
type ScenarioInfo struct {
	Label           string
	BullProbability float64
	BearProbability float64
}

// ClassifyScenario averages the gamma, volume and price-vs-pivot scores.
func ClassifyScenario(in ScenarioInputs, p ScenarioParams) ScenarioInfo {
	gammaScore := balance(in.CallGamma, in.PutGamma)
	volumeScore := balance(in.CallVolume, in.PutVolume)

	var priceScore float64
	if in.Pivot != 0 {
		priceScore = clamp((in.Price-in.Pivot)/in.Pivot, -1, 1)
	}

	combined := (gammaScore + volumeScore + priceScore) / 3
	bull := clamp((combined+1)/2*100, MinProbability, MaxProbability)

	label := ScenarioNeutral
	switch {
	case bull > p.BullishAbove:
		label = ScenarioBullish
	case bull < p.BearishBelow:
		label = ScenarioBearish
	}

	return ScenarioInfo{
		Label:           label,
		BullProbability: bull,
		BearProbability: 100 - bull,
	}
}

// balance returns (a-b)/(|a|+|b|+ε), a score in [-1, 1].
func balance(a, b float64) float64 {
	return (a - b) / (math.Abs(a) + math.Abs(b) + epsilon)
}
