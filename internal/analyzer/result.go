package analyzer

import (
	"github.com/shopspring/decimal"

	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

// LevelInfo is a support or resistance level with its touch probability.
type LevelInfo struct {
	Level       float64 `json:"level"`
	Probability float64 `json:"probability"`
}

type Levels struct {
	Resistance []LevelInfo `json:"resistance"`
	Support    []LevelInfo `json:"support"`
}

// GammaTimeline holds per-expiration series for charting.
type GammaTimeline struct {
	Expirations []string   `json:"expirations"`
	Total       []float64  `json:"total"`
	Call        []float64  `json:"call"`
	Put         []float64  `json:"put"`
	Historical  []float64  `json:"historical"`
	Target      []*float64 `json:"target"`
}

type ExpirationStats struct {
	Expiration       string      `json:"expiration"`
	Pivot            float64     `json:"pivot"`
	TotalOI          int64       `json:"total_oi"`
	CallOI           int64       `json:"call_oi"`
	PutOI            int64       `json:"put_oi"`
	PutCall          float64     `json:"put_call"`
	Resistance       []LevelInfo `json:"resistance"`
	Support          []LevelInfo `json:"support"`
	MaxPain          *float64    `json:"max_pain,omitempty"`
	DaysToExpiration int         `json:"days_to_expiration"`
	IV               float64     `json:"iv"`
}

type Scenario struct {
	Label    string  `json:"label"`
	BullProb float64 `json:"bull_prob"`
	BearProb float64 `json:"bear_prob"`
}

// Sentiment is the volume dominance of one expiration.
type Sentiment struct {
	Dominance  string `json:"dominance"` // CALLS, PUTS or NEUTRAL
	Label      string `json:"label"`
	CallVolume int64  `json:"call_volume"`
	PutVolume  int64  `json:"put_volume"`
}

type PriceHeader struct {
	Historical float64  `json:"historical"`
	Current    float64  `json:"current"`
	Projected  *float64 `json:"projected"`
	Momentum   float64  `json:"momentum"` // percent change, historical to current
}

type Regime struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	PinProbability float64 `json:"pin_probability"`
	VolRisk        string  `json:"vol_risk"`
}

type Wall struct {
	Strike       float64 `json:"strike"`
	OpenInterest int64   `json:"open_interest"`
	DistancePct  float64 `json:"distance_pct"`
	Strength     float64 `json:"strength"`
}

type Walls struct {
	Call *Wall `json:"call,omitempty"`
	Put  *Wall `json:"put,omitempty"`
}

// AnalysisResult is the full analytics payload for one ticker.
type AnalysisResult struct {
	Symbol                string               `json:"symbol"`
	Price                 float64              `json:"price"`
	AvailableExpirations  []string             `json:"available_expirations"`
	GammaTimeline         GammaTimeline        `json:"gamma_timeline"`
	ExpirationStats       []ExpirationStats    `json:"expiration_stats"`
	Scenario              *Scenario            `json:"scenario"`
	Pivot                 *float64             `json:"pivot"`
	Levels                Levels               `json:"levels"`
	SentimentByExpiration map[string]Sentiment `json:"sentiment_by_expiration"`
	PriceHeader           PriceHeader          `json:"price_header"`
	Regime                *Regime              `json:"regime"`
	Walls                 Walls                `json:"walls"`
}

func newEmptyResult(symbol string, price float64, expirations []string) *AnalysisResult {
	if expirations == nil {
		expirations = []string{}
	}
	return &AnalysisResult{
		Symbol:               symbol,
		Price:                roundPrice(price),
		AvailableExpirations: expirations,
		GammaTimeline: GammaTimeline{
			Expirations: []string{},
			Total:       []float64{},
			Call:        []float64{},
			Put:         []float64{},
			Historical:  []float64{},
			Target:      []*float64{},
		},
		ExpirationStats:       []ExpirationStats{},
		Levels:                Levels{Resistance: []LevelInfo{}, Support: []LevelInfo{}},
		SentimentByExpiration: map[string]Sentiment{},
	}
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func roundPrice(v float64) float64 { return roundTo(v, 2) }

func roundProb(v float64) float64 { return roundTo(v, 1) }

func roundedPtr(v float64) *float64 {
	r := roundPrice(v)
	return &r
}

func toLevels(levels []quant.LevelInfo) []LevelInfo {
	out := make([]LevelInfo, 0, len(levels))
	for _, l := range levels {
		out = append(out, LevelInfo{Level: roundPrice(l.Level), Probability: roundProb(l.Probability)})
	}
	return out
}

// toScenario rounds bull to one decimal and derives bear from it so the pair
// still sums to exactly 100.
func toScenario(s quant.ScenarioInfo) *Scenario {
	bull := decimal.NewFromFloat(s.BullProbability).Round(1)
	bear := decimal.NewFromInt(100).Sub(bull)
	return &Scenario{
		Label:    s.Label,
		BullProb: bull.InexactFloat64(),
		BearProb: bear.InexactFloat64(),
	}
}

func toRegime(r quant.RegimeResult) *Regime {
	return &Regime{
		Classification: r.Classification,
		Confidence:     r.Confidence,
		PinProbability: r.PinProbability,
		VolRisk:        r.VolRisk,
	}
}

func toWall(w *quant.Wall) *Wall {
	if w == nil {
		return nil
	}
	return &Wall{
		Strike:       roundPrice(w.Strike),
		OpenInterest: w.OpenInterest,
		DistancePct:  roundTo(w.DistancePct, 4),
		Strength:     roundTo(w.Strength, 4),
	}
}
