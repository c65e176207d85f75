package analyzer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

// ForSnapshot returns an Analyzer over a stored snapshot. Days to
// expiration are counted from the capture time when one was recorded.
func ForSnapshot(snap *data.Snapshot, params quant.Params, logger *zap.Logger) *Analyzer {
	a := New(data.NewSnapshotSource(snap), params, logger)
	if captured := snap.Time(); !captured.IsZero() {
		a.SetClock(func() time.Time { return captured })
	}
	return a
}

// AnalyzeSnapshot runs the full analysis over snap for its own ticker.
func AnalyzeSnapshot(ctx context.Context, snap *data.Snapshot, expiration string, params quant.Params, logger *zap.Logger) (*AnalysisResult, error) {
	return ForSnapshot(snap, params, logger).Analyze(ctx, snap.Ticker, expiration)
}
