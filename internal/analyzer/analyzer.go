// Package analyzer drives the quant engine over a ticker's option chains and
// composes the analysis payload.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/metrics"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

var ErrNoSpotPrice = errors.New("quote has no usable spot price")

const expirationLayout = "2006-01-02"

// Volume dominance values.
const (
	DominanceCalls   = "CALLS"
	DominancePuts    = "PUTS"
	DominanceNeutral = "NEUTRAL"
)

// ChainSource supplies quotes and option chains.
type ChainSource interface {
	Quote(ctx context.Context, ticker string) (data.Quote, error)
	Expirations(ctx context.Context, ticker string) ([]string, error)
	Chain(ctx context.Context, ticker, expiration string) ([]data.OptionContract, error)
}

// HistoricalSource is implemented by sources that also know a prior net
// gamma per expiration.
type HistoricalSource interface {
	HistoricalGamma(ctx context.Context, ticker, expiration string) (float64, bool)
}

type Analyzer struct {
	source ChainSource
	params quant.Params
	logger *zap.Logger
	now    func() time.Time
}

func New(source ChainSource, params quant.Params, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		source: source,
		params: params,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the clock used for days to expiration.
func (a *Analyzer) SetClock(now func() time.Time) {
	a.now = now
}

// expirationRun is the per-expiration intermediate.
type expirationRun struct {
	expiration string
	contracts  []data.OptionContract
	aggs       quant.Aggregates
	totals     quant.Totals
	iv         float64
	days       int
	pivot      float64
	resistance []quant.LevelInfo
	support    []quant.LevelInfo
	target     float64
	hasTarget  bool
	maxPain    *float64
	historical float64
}

// Analyze runs the full analysis for ticker. A non-empty expiration restricts
// the per-expiration work to that expiration.
func (a *Analyzer) Analyze(ctx context.Context, ticker, expiration string) (res *AnalysisResult, err error) {
	start := time.Now()
	defer func() {
		empty := res != nil && res.Pivot == nil
		metrics.RecordAnalysis(time.Since(start), empty, err)
	}()

	quote, err := a.source.Quote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", ticker, err)
	}
	spot := quote.Spot()
	if spot <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSpotPrice, ticker)
	}

	expirations, err := a.source.Expirations(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching expirations for %s: %w", ticker, err)
	}

	selected := expirations
	if expiration != "" {
		selected = nil
		for _, exp := range expirations {
			if exp == expiration {
				selected = []string{exp}
				break
			}
		}
		if selected == nil {
			a.logger.Debug("expiration not listed, returning empty analysis",
				zap.String("ticker", ticker),
				zap.String("expiration", expiration),
			)
		}
	}

	runs := make([]*expirationRun, len(selected))
	historical, _ := a.source.(HistoricalSource)
	today := a.now()

	g, gctx := errgroup.WithContext(ctx)
	if a.params.MaxConcurrency > 0 {
		g.SetLimit(a.params.MaxConcurrency)
	}
	for i, exp := range selected {
		g.Go(func() error {
			contracts, err := a.source.Chain(gctx, ticker, exp)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				a.logger.Warn("chain fetch failed, treating as empty",
					zap.String("ticker", ticker),
					zap.String("expiration", exp),
					zap.Error(err),
				)
				metrics.RecordChainFetchError(ticker)
				return nil
			}

			run := a.analyzeExpiration(exp, contracts, spot, today)
			if run != nil && historical != nil {
				run.historical, _ = historical.HistoricalGamma(gctx, ticker, exp)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", ticker, err)
	}

	res = a.compose(ticker, spot, quote.PrevClose, expirations, runs)
	return res, nil
}

// analyzeExpiration returns nil when the chain has no usable contracts.
func (a *Analyzer) analyzeExpiration(exp string, contracts []data.OptionContract, spot float64, now time.Time) *expirationRun {
	aggs := quant.Aggregate(contracts, spot)
	if len(aggs) == 0 {
		return nil
	}

	run := &expirationRun{
		expiration: exp,
		contracts:  contracts,
		aggs:       aggs,
		totals:     aggs.Totals(),
		iv:         aggs.WeightedIV(),
		days:       DaysToExpiration(exp, now, a.params.DefaultDays),
	}
	days := float64(run.days)

	run.pivot, _ = quant.Pivot(aggs)
	run.resistance, run.support = quant.PickLevels(aggs, spot, run.iv, days, a.params.LevelsPerSide)
	run.target, run.hasTarget = quant.ProjectTarget(aggs, spot, run.iv, days, run.totals.NetGamma(), a.params.Target)

	if len(aggs) >= 2 {
		if mp, err := quant.MaxPain(aggs, quant.MetricOpenInterest, days); err == nil {
			run.maxPain = &mp
		}
	}

	a.logger.Debug("expiration analyzed",
		zap.String("expiration", exp),
		zap.Int("strikes", len(aggs)),
		zap.Int("days", run.days),
		zap.Float64("iv", run.iv),
		zap.Float64("pivot", run.pivot),
	)
	return run
}

func (a *Analyzer) compose(ticker string, spot, prevClose float64, expirations []string, runs []*expirationRun) *AnalysisResult {
	res := newEmptyResult(ticker, spot, expirations)

	historicalPrice := prevClose
	if historicalPrice <= 0 {
		historicalPrice = spot
	}
	res.PriceHeader = PriceHeader{
		Historical: roundPrice(historicalPrice),
		Current:    roundPrice(spot),
		Momentum:   roundPrice((spot - historicalPrice) / historicalPrice * 100),
	}

	var union []data.OptionContract
	var dominant *expirationRun
	tl := &res.GammaTimeline
	for _, run := range runs {
		if run == nil {
			continue
		}
		union = append(union, run.contracts...)
		if dominant == nil || run.totals.TotalOI() > dominant.totals.TotalOI() {
			dominant = run
		}

		tl.Expirations = append(tl.Expirations, run.expiration)
		tl.Total = append(tl.Total, roundPrice(run.totals.NetGamma()))
		tl.Call = append(tl.Call, roundPrice(run.totals.CallGamma))
		tl.Put = append(tl.Put, roundPrice(run.totals.PutGamma))
		tl.Historical = append(tl.Historical, roundPrice(run.historical))
		if run.hasTarget {
			tl.Target = append(tl.Target, roundedPtr(run.target))
		} else {
			tl.Target = append(tl.Target, nil)
		}

		stats := ExpirationStats{
			Expiration:       run.expiration,
			Pivot:            roundPrice(run.pivot),
			TotalOI:          run.totals.TotalOI(),
			CallOI:           run.totals.CallOI,
			PutOI:            run.totals.PutOI,
			Resistance:       toLevels(run.resistance),
			Support:          toLevels(run.support),
			DaysToExpiration: run.days,
			IV:               roundTo(run.iv, 4),
		}
		if run.totals.CallOI > 0 {
			stats.PutCall = roundPrice(float64(run.totals.PutOI) / float64(run.totals.CallOI))
		}
		if run.maxPain != nil {
			stats.MaxPain = roundedPtr(*run.maxPain)
		}
		res.ExpirationStats = append(res.ExpirationStats, stats)

		res.SentimentByExpiration[run.expiration] = sentiment(run.totals)
	}

	if dominant == nil {
		a.logger.Info("no contracts retrieved", zap.String("ticker", ticker))
		return res
	}

	metrics.RecordContracts(ticker, len(union))

	aggs := quant.Aggregate(union, spot)
	totals := aggs.Totals()
	net := totals.NetGamma()
	days := float64(dominant.days)

	pivot, _ := quant.Pivot(aggs)
	res.Pivot = roundedPtr(pivot)

	resistance, support := quant.PickLevels(aggs, spot, dominant.iv, days, a.params.LevelsPerSide)
	res.Levels = Levels{Resistance: toLevels(resistance), Support: toLevels(support)}

	if target, ok := quant.ProjectTarget(aggs, spot, dominant.iv, days, net, a.params.Target); ok {
		res.PriceHeader.Projected = roundedPtr(target)
	}

	res.Regime = toRegime(quant.ClassifyRegime(net, a.params.Regime))

	res.Scenario = toScenario(quant.ClassifyScenario(quant.ScenarioInputs{
		CallGamma:  totals.CallGamma,
		PutGamma:   totals.PutGamma,
		CallVolume: float64(totals.CallVolume),
		PutVolume:  float64(totals.PutVolume),
		Price:      spot,
		Pivot:      pivot,
	}, a.params.Scenario))

	walls := quant.DetectWalls(aggs, spot)
	res.Walls = Walls{Call: toWall(walls.Call), Put: toWall(walls.Put)}

	a.logger.Info("analysis complete",
		zap.String("ticker", ticker),
		zap.Int("expirations", len(res.ExpirationStats)),
		zap.Int("contracts", len(union)),
		zap.Float64("net_gamma", net),
		zap.String("scenario", res.Scenario.Label),
	)
	return res
}

func sentiment(t quant.Totals) Sentiment {
	s := Sentiment{
		Dominance:  DominanceNeutral,
		Label:      quant.ScenarioNeutral,
		CallVolume: t.CallVolume,
		PutVolume:  t.PutVolume,
	}
	switch {
	case t.CallVolume > t.PutVolume:
		s.Dominance, s.Label = DominanceCalls, quant.ScenarioBullish
	case t.CallVolume < t.PutVolume:
		s.Dominance, s.Label = DominancePuts, quant.ScenarioBearish
	}
	return s
}

// DaysToExpiration returns the whole calendar days from now until the
// expiration date, at least 1. Unparseable dates yield def.
func DaysToExpiration(expiration string, now time.Time, def int) int {
	exp, err := time.Parse(expirationLayout, expiration)
	if err != nil {
		return def
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	days := int(math.Round(exp.Sub(today).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
