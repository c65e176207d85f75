package quant

import (
	"math"
	"sort"
)

// Wall is the max-open-interest strike on one side of the chain.
type Wall struct {
	Strike       float64
	OpenInterest int64
	DistancePct  float64 // |strike - price| / price
	Strength     float64 // wall OI / total same-side OI, in [0, 1]
}

// Walls holds the call and put walls; either may be nil.
type Walls struct {
	Call *Wall
	Put  *Wall
}

// DetectWalls picks the strike with the largest open interest per side.
// Ties keep the lower strike. A side with no open interest has no wall.
func DetectWalls(aggs Aggregates, price float64) Walls {
	var walls Walls
	var callTotal, putTotal int64

	for _, s := range aggs {
		callTotal += s.CallOI
		putTotal += s.PutOI
		if s.CallOI > 0 && (walls.Call == nil || s.CallOI > walls.Call.OpenInterest) {
			walls.Call = &Wall{Strike: s.Strike, OpenInterest: s.CallOI}
		}
		if s.PutOI > 0 && (walls.Put == nil || s.PutOI > walls.Put.OpenInterest) {
			walls.Put = &Wall{Strike: s.Strike, OpenInterest: s.PutOI}
		}
	}

	finish := func(w *Wall, total int64) {
		if w == nil {
			return
		}
		if price > 0 {
			w.DistancePct = math.Abs(w.Strike-price) / price
		}
		w.Strength = clamp(float64(w.OpenInterest)/float64(total), 0, 1)
	}
	finish(walls.Call, callTotal)
	finish(walls.Put, putTotal)

	return walls
}

// Pivot returns the gamma-neutral strike. The first sign change of net gamma
// in ascending strike order is linearly interpolated; without one, the
// strike with the smallest |net gamma| is returned. ok is false for an empty
// set.
func Pivot(aggs Aggregates) (pivot float64, ok bool) {
	if len(aggs) == 0 {
		return 0, false
	}

	for i := 1; i < len(aggs); i++ {
		prev, cur := aggs[i-1], aggs[i]
		prevNet, net := prev.NetGamma(), cur.NetGamma()
		if prevNet*net < 0 {
			span := cur.Strike - prev.Strike
			return prev.Strike + span*math.Abs(prevNet)/(math.Abs(prevNet)+math.Abs(net)), true
		}
	}

	flat := aggs[0]
	for _, s := range aggs[1:] {
		if math.Abs(s.NetGamma()) < math.Abs(flat.NetGamma()) {
			flat = s
		}
	}
	return flat.Strike, true
}

// LevelInfo is a reported level and its touch probability in percent.
type LevelInfo struct {
	Level       float64
	Probability float64
}

// PickLevels ranks strikes at or above price (resistance) and below price
// (support) by |net gamma|, keeps the top n of each and attaches the touch
// probability from price.
func PickLevels(aggs Aggregates, price, iv, days float64, n int) (resistance, support []LevelInfo) {
	var above, below Aggregates
	for _, s := range aggs {
		if s.Strike >= price {
			above = append(above, s)
		} else {
			below = append(below, s)
		}
	}

	pick := func(side Aggregates) []LevelInfo {
		ranked := make(Aggregates, len(side))
		copy(ranked, side)
		// Stable over the ascending input, so equal magnitudes keep the lower strike first.
		sort.SliceStable(ranked, func(i, j int) bool {
			return math.Abs(ranked[i].NetGamma()) > math.Abs(ranked[j].NetGamma())
		})
		if n < 0 {
			n = 0
		}
		if len(ranked) > n {
			ranked = ranked[:n]
		}
		levels := make([]LevelInfo, 0, len(ranked))
		for _, s := range ranked {
			levels = append(levels, LevelInfo{
				Level:       s.Strike,
				Probability: TouchProbability(price, s.Strike, iv, days),
			})
		}
		return levels
	}

	return pick(above), pick(below)
}
