package quant

import "math"

const epsilon = 1e-9

// ProjectTarget blends the |net gamma|-weighted center of mass with the
// dominant strike and, when price, iv and days are positive, shifts the
// result by a fraction of the expected move in the direction of netTotal.
// ok is false when no strike carries net gamma.
func ProjectTarget(aggs Aggregates, price, iv, days, netTotal float64, p TargetParams) (target float64, ok bool) {
	var weightedSum, totalWeight, dominantMag, dominant float64
	for _, s := range aggs {
		mag := math.Abs(s.NetGamma())
		weightedSum += s.Strike * mag
		totalWeight += mag
		if mag > dominantMag {
			dominantMag = mag
			dominant = s.Strike
		}
	}
	if totalWeight == 0 {
		return 0, false
	}

	center := weightedSum / totalWeight
	blended := p.CenterWeight*center + p.DominantWeight*dominant

	if price > 0 && iv > 0 && days > 0 {
		sigmaMove := price * iv * math.Sqrt(days/daysPerYear)
		drift := clamp(netTotal/(math.Abs(netTotal)+epsilon), -1, 1)
		blended += p.DriftWeight * sigmaMove * drift
	}

	return blended, true
}
