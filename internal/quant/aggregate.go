// Package quant implements the options-chain analytics: strike aggregation,
// touch probabilities, max pain, gamma walls, regime, target projection and
// scenario classification. Every function is pure and safe for concurrent use.
package quant

import (
	"math"
	"sort"

	"github.com/dgnsrekt/gex-analytics/internal/data"
)

const (
	// ContractMultiplier is the number of shares per contract.
	ContractMultiplier = 100

	// strikeScale quantizes strikes to 0.001 before keying.
	strikeScale = 1000

	defaultSideDelta = 0.5
)

// StrikeAggregate is the per-strike fold of a contract list.
type StrikeAggregate struct {
	Strike     float64
	CallGamma  float64 // gamma exposure, gamma * OI * 100 * spot
	PutGamma   float64
	CallVolume int64
	PutVolume  int64
	CallOI     int64
	PutOI      int64
	IVWeight   float64 // sum of iv * OI
	IVOI       int64   // sum of OI contributing to IVWeight

	CallDelta    float64
	PutDelta     float64
	hasCallDelta bool
	hasPutDelta  bool
}

// NetGamma returns call minus put gamma exposure.
func (s StrikeAggregate) NetGamma() float64 {
	return s.CallGamma - s.PutGamma
}

// TotalOI returns combined call and put open interest.
func (s StrikeAggregate) TotalOI() int64 {
	return s.CallOI + s.PutOI
}

// DeltaWeight returns |call delta| + |put delta|, using 0.5 for a side with no delta.
func (s StrikeAggregate) DeltaWeight() float64 {
	call, put := defaultSideDelta, defaultSideDelta
	if s.hasCallDelta {
		call = math.Abs(s.CallDelta)
	}
	if s.hasPutDelta {
		put = math.Abs(s.PutDelta)
	}
	return call + put
}

// Aggregates is a strike-ascending slice with unique strikes.
type Aggregates []StrikeAggregate

// Totals summarizes a set of aggregates.
type Totals struct {
	CallGamma  float64
	PutGamma   float64
	CallOI     int64
	PutOI      int64
	CallVolume int64
	PutVolume  int64
}

// NetGamma returns call minus put gamma exposure.
func (t Totals) NetGamma() float64 {
	return t.CallGamma - t.PutGamma
}

// TotalOI returns combined open interest.
func (t Totals) TotalOI() int64 {
	return t.CallOI + t.PutOI
}

// Aggregate folds contracts into one record per strike. Contracts with a
// non-positive strike or an unknown option type are skipped.
func Aggregate(contracts []data.OptionContract, spot float64) Aggregates {
	byKey := make(map[int64]*StrikeAggregate)

	for _, c := range contracts {
		if c.Strike <= 0 {
			continue
		}
		side := c.Side()
		if side == data.SideUnknown {
			continue
		}

		key := strikeKey(c.Strike)
		agg, ok := byKey[key]
		if !ok {
			agg = &StrikeAggregate{Strike: float64(key) / strikeScale}
			byKey[key] = agg
		}

		gex := c.Greeks.Gamma * float64(c.OpenInterest) * ContractMultiplier * spot
		switch side {
		case data.SideCall:
			agg.CallGamma += gex
			agg.CallVolume += c.Volume
			agg.CallOI += c.OpenInterest
			if c.Greeks.Delta != 0 {
				agg.CallDelta = c.Greeks.Delta
				agg.hasCallDelta = true
			}
		case data.SidePut:
			agg.PutGamma += gex
			agg.PutVolume += c.Volume
			agg.PutOI += c.OpenInterest
			if c.Greeks.Delta != 0 {
				agg.PutDelta = c.Greeks.Delta
				agg.hasPutDelta = true
			}
		}

		if iv := c.IV(); c.OpenInterest > 0 && iv > 0 {
			agg.IVWeight += iv * float64(c.OpenInterest)
			agg.IVOI += c.OpenInterest
		}
	}

	out := make(Aggregates, 0, len(byKey))
	for _, agg := range byKey {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}

// Totals sums gamma, open interest and volume per side.
func (a Aggregates) Totals() Totals {
	var t Totals
	for _, s := range a {
		t.CallGamma += s.CallGamma
		t.PutGamma += s.PutGamma
		t.CallOI += s.CallOI
		t.PutOI += s.PutOI
		t.CallVolume += s.CallVolume
		t.PutVolume += s.PutVolume
	}
	return t
}

// WeightedIV returns the open-interest-weighted implied volatility, or 0
// when no contract carried both IV and open interest.
func (a Aggregates) WeightedIV() float64 {
	var weight float64
	var oi int64
	for _, s := range a {
		weight += s.IVWeight
		oi += s.IVOI
	}
	if oi == 0 {
		return 0
	}
	return weight / float64(oi)
}

func strikeKey(strike float64) int64 {
	return int64(math.Round(strike * strikeScale))
}
