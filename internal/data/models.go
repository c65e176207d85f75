package data

import (
	"strings"
	"time"
)

// Side is the option side of a contract.
type Side int

const (
	SideUnknown Side = iota
	SideCall
	SidePut
)

func (s Side) String() string {
	switch s {
	case SideCall:
		return "call"
	case SidePut:
		return "put"
	default:
		return "unknown"
	}
}

// percentIVCutoff separates fractional IVs from IVs quoted in percent.
const percentIVCutoff = 3.0

// Greeks holds the per-contract sensitivities reported by the provider.
type Greeks struct {
	Delta  float64  `json:"delta"`
	Gamma  float64  `json:"gamma"`
	Theta  float64  `json:"theta"`
	Vega   float64  `json:"vega"`
	MidIV  *float64 `json:"mid_iv,omitempty"`
	SmvVol *float64 `json:"smv_vol,omitempty"`
}

// OptionContract is a single contract from an options chain.
type OptionContract struct {
	Symbol            string   `json:"symbol,omitempty"`
	Strike            float64  `json:"strike"`
	OptionType        string   `json:"option_type"`
	OpenInterest      int64    `json:"open_interest"`
	Volume            int64    `json:"volume"`
	Greeks            Greeks   `json:"greeks"`
	ImpliedVolatility *float64 `json:"implied_volatility,omitempty"`
}

// Side parses OptionType.
func (c OptionContract) Side() Side {
	switch strings.ToLower(strings.TrimSpace(c.OptionType)) {
	case "call", "c":
		return SideCall
	case "put", "p":
		return SidePut
	default:
		return SideUnknown
	}
}

// IV returns the contract's implied volatility as a fraction, preferring
// implied_volatility, then greeks.mid_iv, then greeks.smv_vol. Values above
// 3 are treated as percentages. Returns 0 when none is present.
func (c OptionContract) IV() float64 {
	var iv float64
	switch {
	case c.ImpliedVolatility != nil && *c.ImpliedVolatility > 0:
		iv = *c.ImpliedVolatility
	case c.Greeks.MidIV != nil && *c.Greeks.MidIV > 0:
		iv = *c.Greeks.MidIV
	case c.Greeks.SmvVol != nil && *c.Greeks.SmvVol > 0:
		iv = *c.Greeks.SmvVol
	default:
		return 0
	}
	return NormalizeIV(iv)
}

// NormalizeIV converts an implied volatility quoted in percent (above 3)
// to a fraction. Fractions pass through unchanged.
func NormalizeIV(iv float64) float64 {
	if iv > percentIVCutoff {
		return iv / 100
	}
	return iv
}

// Quote is the underlying quote used for the spot price.
type Quote struct {
	Symbol    string  `json:"symbol,omitempty"`
	Last      float64 `json:"last"`
	Close     float64 `json:"close"`
	Bid       float64 `json:"bid"`
	PrevClose float64 `json:"prevclose"`
}

// Spot returns the first positive of last, close and bid.
func (q Quote) Spot() float64 {
	for _, v := range []float64{q.Last, q.Close, q.Bid} {
		if v > 0 {
			return v
		}
	}
	return 0
}

// Snapshot is one point-in-time capture of a ticker's options chain.
type Snapshot struct {
	Timestamp       int64                       `json:"timestamp"`
	Ticker          string                      `json:"ticker"`
	Quote           Quote                       `json:"quote"`
	Chains          map[string][]OptionContract `json:"chains"` // expiration (YYYY-MM-DD) -> contracts
	HistoricalGamma map[string]float64          `json:"historical_gamma,omitempty"`
}

// Time returns the capture time from the unix-seconds timestamp, or the
// zero time when none was recorded.
func (s Snapshot) Time() time.Time {
	if s.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(s.Timestamp, 0).UTC()
}
