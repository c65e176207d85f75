package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

var fixedNow = time.Date(2025, 1, 10, 14, 30, 0, 0, time.UTC)

func iv(v float64) *float64 { return &v }

func leg(strike float64, side string, oi, vol int64, gamma float64) data.OptionContract {
	return data.OptionContract{
		Strike:            strike,
		OptionType:        side,
		OpenInterest:      oi,
		Volume:            vol,
		Greeks:            data.Greeks{Gamma: gamma},
		ImpliedVolatility: iv(0.25),
	}
}

// twoStrikeChain has net gamma -8 at 95 and +11 at 105 with spot 100.
func twoStrikeChain() []data.OptionContract {
	return []data.OptionContract{
		leg(95, "put", 1, 50, 0.001),
		leg(95, "call", 1, 0, 0.0002),
		leg(105, "call", 1, 100, 0.0012),
		leg(105, "put", 1, 0, 0.0001),
	}
}

func newTestAnalyzer(t *testing.T, src ChainSource) *Analyzer {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	a := New(src, quant.DefaultParams(), logger)
	a.SetClock(func() time.Time { return fixedNow })
	return a
}

func snapshotSource(chains map[string][]data.OptionContract) *data.SnapshotSource {
	return data.NewSnapshotSource(&data.Snapshot{
		Ticker: "SPY",
		Quote:  data.Quote{Last: 100, PrevClose: 98},
		Chains: chains,
	})
}

func TestAnalyzeTwoStrikeScenario(t *testing.T) {
	src := snapshotSource(map[string][]data.OptionContract{
		"2025-01-17": twoStrikeChain(),
	})

	res, err := newTestAnalyzer(t, src).Analyze(context.Background(), "SPY", "")
	require.NoError(t, err)

	require.NotNil(t, res.Pivot)
	assert.Greater(t, *res.Pivot, 95.0)
	assert.Less(t, *res.Pivot, 105.0)
	assert.InDelta(t, 99.21, *res.Pivot, 1e-9)

	require.NotNil(t, res.Scenario)
	assert.Equal(t, quant.ScenarioBullish, res.Scenario.Label)
	assert.InDelta(t, 57.7, res.Scenario.BullProb, 1e-9)
	assert.InDelta(t, 100.0, res.Scenario.BullProb+res.Scenario.BearProb, 1e-9)

	require.Len(t, res.Levels.Resistance, 1)
	require.Len(t, res.Levels.Support, 1)
	assert.Equal(t, 105.0, res.Levels.Resistance[0].Level)
	assert.Equal(t, 95.0, res.Levels.Support[0].Level)
	assert.InDelta(t, 7.9, res.Levels.Resistance[0].Probability, 1e-9)
	assert.InDelta(t, 6.9, res.Levels.Support[0].Probability, 1e-9)

	assert.Equal(t, 100.0, res.Price)
	assert.Equal(t, []string{"2025-01-17"}, res.AvailableExpirations)

	require.Len(t, res.ExpirationStats, 1)
	stats := res.ExpirationStats[0]
	assert.Equal(t, int64(4), stats.TotalOI)
	assert.Equal(t, 1.0, stats.PutCall)
	assert.Equal(t, 7, stats.DaysToExpiration)
	assert.Equal(t, 0.25, stats.IV)
	require.NotNil(t, stats.MaxPain)

	assert.Equal(t, Sentiment{Dominance: DominanceCalls, Label: quant.ScenarioBullish, CallVolume: 100, PutVolume: 50},
		res.SentimentByExpiration["2025-01-17"])

	assert.Equal(t, []string{"2025-01-17"}, res.GammaTimeline.Expirations)
	assert.InDelta(t, 3.0, res.GammaTimeline.Total[0], 1e-9)
	assert.InDelta(t, 14.0, res.GammaTimeline.Call[0], 1e-9)
	assert.InDelta(t, 11.0, res.GammaTimeline.Put[0], 1e-9)
	require.NotNil(t, res.GammaTimeline.Target[0])

	assert.Equal(t, 98.0, res.PriceHeader.Historical)
	assert.Equal(t, 100.0, res.PriceHeader.Current)
	assert.InDelta(t, 2.04, res.PriceHeader.Momentum, 1e-9)
	require.NotNil(t, res.PriceHeader.Projected)
	assert.InDelta(t, 103.34, *res.PriceHeader.Projected, 1e-9)

	require.NotNil(t, res.Regime)
	assert.Equal(t, quant.RegimeChop, res.Regime.Classification)
	require.NotNil(t, res.Walls.Call)
	assert.Equal(t, 95.0, res.Walls.Call.Strike)
}

func TestAnalyzeSkipsEmptyExpirations(t *testing.T) {
	src := snapshotSource(map[string][]data.OptionContract{
		"2025-01-17": twoStrikeChain(),
		"2025-01-24": {},
		"2025-01-31": {{Strike: 0, OptionType: "call", OpenInterest: 10}},
	})

	res, err := newTestAnalyzer(t, src).Analyze(context.Background(), "SPY", "")
	require.NoError(t, err)

	assert.Len(t, res.AvailableExpirations, 3)
	assert.Len(t, res.ExpirationStats, 1)
	assert.Equal(t, []string{"2025-01-17"}, res.GammaTimeline.Expirations)
	assert.Len(t, res.SentimentByExpiration, 1)
	assert.NotNil(t, res.Scenario)
}

func TestAnalyzeAllEmpty(t *testing.T) {
	src := snapshotSource(map[string][]data.OptionContract{
		"2025-01-17": {},
		"2025-01-24": nil,
	})

	res, err := newTestAnalyzer(t, src).Analyze(context.Background(), "SPY", "")
	require.NoError(t, err)

	assert.Nil(t, res.Scenario)
	assert.Nil(t, res.Pivot)
	assert.Nil(t, res.Regime)
	assert.Empty(t, res.Levels.Resistance)
	assert.Empty(t, res.Levels.Support)
	assert.Empty(t, res.ExpirationStats)
	assert.Empty(t, res.GammaTimeline.Expirations)
	assert.Nil(t, res.PriceHeader.Projected)

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["scenario"])
	assert.Nil(t, decoded["pivot"])
	assert.Equal(t, map[string]any{"resistance": []any{}, "support": []any{}}, decoded["levels"])
	assert.Equal(t, []any{}, decoded["gamma_timeline"].(map[string]any)["total"])
}

func TestAnalyzeExpirationFilter(t *testing.T) {
	src := snapshotSource(map[string][]data.OptionContract{
		"2025-01-17": twoStrikeChain(),
		"2025-01-24": twoStrikeChain(),
	})
	a := newTestAnalyzer(t, src)

	res, err := a.Analyze(context.Background(), "SPY", "2025-01-24")
	require.NoError(t, err)
	require.Len(t, res.ExpirationStats, 1)
	assert.Equal(t, "2025-01-24", res.ExpirationStats[0].Expiration)
	assert.Equal(t, 14, res.ExpirationStats[0].DaysToExpiration)
	assert.Len(t, res.AvailableExpirations, 2)

	res, err = a.Analyze(context.Background(), "SPY", "2030-01-01")
	require.NoError(t, err)
	assert.Empty(t, res.ExpirationStats)
	assert.Empty(t, res.GammaTimeline.Expirations)
	assert.Nil(t, res.Scenario)
	assert.Nil(t, res.Pivot)
	assert.Len(t, res.AvailableExpirations, 2)
}

func TestAnalyzeNoSpot(t *testing.T) {
	src := data.NewSnapshotSource(&data.Snapshot{
		Ticker: "SPY",
		Quote:  data.Quote{PrevClose: 99},
		Chains: map[string][]data.OptionContract{"2025-01-17": twoStrikeChain()},
	})

	_, err := newTestAnalyzer(t, src).Analyze(context.Background(), "SPY", "")
	assert.ErrorIs(t, err, ErrNoSpotPrice)
}

// flakySource fails every chain fetch for one expiration.
type flakySource struct {
	*data.SnapshotSource
	failing string
	calls   atomic.Int32
}

func (f *flakySource) Chain(ctx context.Context, ticker, expiration string) ([]data.OptionContract, error) {
	f.calls.Add(1)
	if expiration == f.failing {
		return nil, errors.New("upstream timeout")
	}
	return f.SnapshotSource.Chain(ctx, ticker, expiration)
}

func TestAnalyzeTreatsFetchErrorsAsEmpty(t *testing.T) {
	src := &flakySource{
		SnapshotSource: snapshotSource(map[string][]data.OptionContract{
			"2025-01-17": twoStrikeChain(),
			"2025-01-24": twoStrikeChain(),
		}),
		failing: "2025-01-17",
	}

	res, err := newTestAnalyzer(t, src).Analyze(context.Background(), "SPY", "")
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
	require.Len(t, res.ExpirationStats, 1)
	assert.Equal(t, "2025-01-24", res.ExpirationStats[0].Expiration)
}

func TestAnalyzeHistoricalGamma(t *testing.T) {
	src := data.NewSnapshotSource(&data.Snapshot{
		Ticker:          "SPY",
		Quote:           data.Quote{Last: 100},
		Chains:          map[string][]data.OptionContract{"2025-01-17": twoStrikeChain()},
		HistoricalGamma: map[string]float64{"2025-01-17": -12.345},
	})

	res, err := newTestAnalyzer(t, src).Analyze(context.Background(), "SPY", "")
	require.NoError(t, err)

	assert.Equal(t, []float64{-12.35}, res.GammaTimeline.Historical)
	assert.Equal(t, 100.0, res.PriceHeader.Historical)
	assert.Equal(t, 0.0, res.PriceHeader.Momentum)
}

func TestAnalyzeDominantExpirationDrivesLevels(t *testing.T) {
	heavy := twoStrikeChain()
	for i := range heavy {
		heavy[i].OpenInterest *= 10
		heavy[i].ImpliedVolatility = iv(0.5)
	}

	src := snapshotSource(map[string][]data.OptionContract{
		"2025-01-17": twoStrikeChain(),
		"2025-01-31": heavy,
	})

	res, err := newTestAnalyzer(t, src).Analyze(context.Background(), "SPY", "")
	require.NoError(t, err)

	require.Len(t, res.Levels.Resistance, 1)
	want := quant.TouchProbability(100, 105, 0.5, 21)
	assert.InDelta(t, want, res.Levels.Resistance[0].Probability, 0.05)
}

func TestDaysToExpiration(t *testing.T) {
	tests := []struct {
		exp  string
		want int
	}{
		{"2025-01-17", 7},
		{"2025-01-11", 1},
		{"2025-01-10", 1},
		{"2024-12-20", 1},
		{"not-a-date", 7},
		{"", 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysToExpiration(tt.exp, fixedNow, 7), tt.exp)
	}
}
