package ws

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/analyzer"
	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/market"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

// Pauser reports whether broadcasts should be skipped, e.g. while the
// snapshot store is being reloaded.
type Pauser interface {
	IsReloading() bool
}

// StreamerConfig wires the data sources for a Streamer. Loader and Cache
// drive replay; Live, when set, is polled on NYSE business days instead.
type StreamerConfig struct {
	Loader   data.SnapshotLoader
	Cache    *data.IndexCache
	Live     analyzer.ChainSource
	Session  *market.Session
	Params   quant.Params
	Interval time.Duration
	Pauser   Pauser
}

// Streamer runs the analyzer for every subscribed ticker on an interval
// and broadcasts the result.
type Streamer struct {
	hub      *Hub
	cfg      StreamerConfig
	encoder  *Encoder
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// encodedAnalysis holds both wire forms of one result.
type encodedAnalysis struct {
	proto []byte
	json  []byte
}

// NewStreamer creates a new Streamer.
func NewStreamer(hub *Hub, cfg StreamerConfig, logger *zap.Logger) (*Streamer, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	if cfg.Session == nil {
		cfg.Session = market.NewYorkSession()
	}

	return &Streamer{
		hub:      hub,
		cfg:      cfg,
		encoder:  enc,
		interval: cfg.Interval,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Run starts the streaming loop. Call in a goroutine.
// Returns when context is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	defer s.encoder.Close()

	// Align first tick to top of second for predictable timing
	nextSecond := time.Now().Truncate(time.Second).Add(time.Second)
	select {
	case <-ctx.Done():
		s.logger.Info("streamer cancelled during alignment")
		return
	case <-time.After(time.Until(nextSecond)):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("streamer started",
		zap.Duration("interval", s.interval),
		zap.Bool("live", s.cfg.Live != nil),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streamer stopping")
			return

		case <-ticker.C:
			s.broadcastNext(ctx)
		}
	}
}

// liveNow reports whether this tick should poll the live source.
func (s *Streamer) liveNow() bool {
	return s.cfg.Live != nil && s.cfg.Session.IsMarketDay(s.now())
}

// broadcastNext sends one analysis to every active group.
func (s *Streamer) broadcastNext(ctx context.Context) {
	if s.cfg.Pauser != nil && s.cfg.Pauser.IsReloading() {
		s.logger.Debug("skipping broadcast during reload")
		return
	}

	groups := s.hub.GetActiveGroups()
	if len(groups) == 0 {
		return
	}

	live := s.liveNow()
	for _, group := range groups {
		if ctx.Err() != nil {
			return
		}
		if live {
			s.broadcastLive(ctx, group)
		} else {
			s.broadcastReplay(ctx, group)
		}
	}
}

// broadcastLive analyzes the provider's current chain once for the group.
func (s *Streamer) broadcastLive(ctx context.Context, ticker string) {
	res, err := analyzer.New(s.cfg.Live, s.cfg.Params, s.logger).Analyze(ctx, ticker, "")
	if err != nil {
		s.logger.Warn("live analysis failed",
			zap.String("ticker", ticker),
			zap.Error(err),
		)
		return
	}

	enc, err := s.encode(res)
	if err != nil {
		s.logger.Debug("failed to encode analysis", zap.String("ticker", ticker), zap.Error(err))
		return
	}
	s.hub.BroadcastData(ticker, enc.proto, enc.json)
}

// broadcastReplay advances each key's replay position for the ticker. Keys
// sharing a position share one analysis.
func (s *Streamer) broadcastReplay(ctx context.Context, ticker string) {
	if s.cfg.Loader == nil || s.cfg.Cache == nil {
		return
	}

	length, err := s.cfg.Loader.GetLength(ticker)
	if err != nil {
		s.logger.Debug("failed to get data length",
			zap.String("ticker", ticker),
			zap.Error(err),
		)
		return
	}

	clientsByKey := s.hub.GetClientsByKey(ticker)
	byIndex := make(map[int]*encodedAnalysis)

	for key, clients := range clientsByKey {
		idx, exhausted := s.cfg.Cache.GetAndAdvance(data.CacheKey(ticker, key), length)
		if exhausted {
			s.logger.Debug("data exhausted for key",
				zap.String("ticker", ticker),
				zap.String("key", maskKey(key)),
			)
			continue
		}

		enc, ok := byIndex[idx]
		if !ok {
			enc, err = s.analyzeIndex(ctx, ticker, idx)
			if err != nil {
				s.logger.Debug("failed to analyze snapshot",
					zap.String("ticker", ticker),
					zap.Int("index", idx),
					zap.Error(err),
				)
				continue
			}
			byIndex[idx] = enc
		}

		s.hub.BroadcastToClients(clients, ticker, enc.proto, enc.json)

		s.logger.Debug("broadcast analysis",
			zap.String("ticker", ticker),
			zap.String("key", maskKey(key)),
			zap.Int("index", idx),
			zap.Int("clientCount", len(clients)),
		)
	}
}

func (s *Streamer) analyzeIndex(ctx context.Context, ticker string, idx int) (*encodedAnalysis, error) {
	snap, err := s.cfg.Loader.GetAtIndex(ctx, ticker, idx)
	if err != nil {
		return nil, err
	}
	res, err := analyzer.AnalyzeSnapshot(ctx, snap, "", s.cfg.Params, s.logger)
	if err != nil {
		return nil, err
	}
	return s.encode(res)
}

func (s *Streamer) encode(res *analyzer.AnalysisResult) (*encodedAnalysis, error) {
	jsonPayload, protoPayload, err := s.encoder.EncodeAnalysis(res)
	if err != nil {
		return nil, err
	}
	return &encodedAnalysis{proto: protoPayload, json: jsonPayload}, nil
}
