package quant

import "math"

const (
	daysPerYear = 365.0

	// MinProbability and MaxProbability bound every reported probability.
	MinProbability = 1.0
	MaxProbability = 99.0

	neutralProbability = 50.0
)

// TouchProbability estimates, as a percentage, the chance that price reaches
// level by expiration under a lognormal diffusion with annualized volatility
// iv. Non-positive inputs yield 50.
func TouchProbability(price, level, iv, days float64) float64 {
	if price <= 0 || level <= 0 || iv <= 0 || days <= 0 {
		return neutralProbability
	}

	sigma := iv * math.Sqrt(days/daysPerYear)
	if sigma == 0 {
		return neutralProbability
	}

	z := math.Log(level/price) / sigma

	var p float64
	if level >= price {
		p = 1 - normCDF(z)
	} else {
		p = normCDF(z)
	}

	return clamp(p*100, MinProbability, MaxProbability)
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
