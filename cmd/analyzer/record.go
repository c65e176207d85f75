package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/capture"
	"github.com/dgnsrekt/gex-analytics/internal/config"
	"github.com/dgnsrekt/gex-analytics/internal/market"
	"github.com/dgnsrekt/gex-analytics/internal/notify"
)

func recordCmd() *cobra.Command {
	var (
		interval time.Duration
		workers  int
		once     bool
		anyTime  bool
	)

	cmd := &cobra.Command{
		Use:   "record [TICKERS...]",
		Short: "Record provider chains into the snapshot store",
		Long: `Capture each ticker's full options chain from the provider on an
interval while the NYSE is open, appending to
{data.directory}/{date}/{ticker}/chain.jsonl.

A summary is published through ntfy (NTFY_* env vars) when the session
closes, and after any round with failures.

Examples:
  # Configured tickers, every 5 minutes during market hours
  gex-analytics record

  # One capture of two tickers, regardless of market hours
  gex-analytics record SPY QQQ --once --any-time`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := cfg.RequireProvider(); err != nil {
				return err
			}
			tickers, err := recordTickers(args, cfg.Tickers)
			if err != nil {
				return err
			}

			notifyCfg := notify.LoadConfig()
			if err := notifyCfg.Validate(); err != nil {
				return err
			}

			r := &recorder{
				manager:  capture.NewManager(newProviderClient(cfg), cfg.Data.Directory, workers, logger),
				notifier: notify.New(notifyCfg, logger),
				session:  market.NewYorkSession(),
				tickers:  tickers,
				anyTime:  anyTime,
				now:      time.Now,
				logger:   logger,
			}

			if once {
				_, err := r.round(ctx)
				return err
			}
			return r.run(ctx, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "time between captures")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "concurrent tickers")
	cmd.Flags().BoolVar(&once, "once", false, "capture one round and exit")
	cmd.Flags().BoolVar(&anyTime, "any-time", false, "capture outside market hours")

	return cmd
}

func recordTickers(args, configured []string) ([]string, error) {
	tickers := configured
	if len(args) > 0 {
		tickers = make([]string, len(args))
		for i, a := range args {
			tickers[i] = strings.ToUpper(a)
		}
	}
	if len(tickers) == 0 {
		tickers = config.DefaultTickers
	}

	var invalid []string
	for _, t := range tickers {
		if !config.ValidTicker(t) {
			invalid = append(invalid, t)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid tickers: %s", strings.Join(invalid, ", "))
	}
	return tickers, nil
}

// recorder runs capture rounds and keeps a running summary per trading day.
type recorder struct {
	manager  *capture.Manager
	notifier notify.Notifier
	session  *market.Session
	tickers  []string
	anyTime  bool
	now      func() time.Time
	logger   *zap.Logger

	day     string
	started time.Time
	summary capture.BatchResult
}

func (r *recorder) run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("recorder started",
		zap.Strings("tickers", r.tickers),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if r.shouldCapture() {
			if _, err := r.round(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("capture round failed", zap.Error(err))
			}
		} else {
			r.closeDay(ctx)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("context cancelled, shutting down")
			r.closeDay(context.Background())
			return nil
		case <-ticker.C:
		}
	}
}

func (r *recorder) shouldCapture() bool {
	if r.anyTime {
		return true
	}
	return r.session.IsOpen(r.now())
}

// round captures every ticker once into today's date folder.
func (r *recorder) round(ctx context.Context) (*capture.BatchResult, error) {
	date := r.now().In(r.session.Location()).Format("2006-01-02")
	if r.day != date {
		r.closeDay(ctx)
		r.day = date
		r.started = r.now()
	}

	start := r.now()
	result, err := r.manager.Execute(ctx, capture.NewTasks(r.tickers, date))
	if err != nil {
		return nil, err
	}

	r.summary.Total += result.Total
	r.summary.Success += result.Success
	r.summary.NotFound += result.NotFound
	r.summary.Failed += result.Failed
	r.summary.Contracts += result.Contracts
	r.summary.Errors = append(r.summary.Errors, result.Errors...)

	if result.Failed > 0 {
		if nerr := r.notifier.SendCapture(ctx, result, date, r.now().Sub(start), nil); nerr != nil {
			r.logger.Warn("failed to send notification", zap.Error(nerr))
		}
	}
	return result, nil
}

// closeDay publishes the accumulated summary once per day.
func (r *recorder) closeDay(ctx context.Context) {
	if r.day == "" || r.summary.Total == 0 {
		return
	}

	if err := r.notifier.SendCapture(ctx, &r.summary, r.day, r.now().Sub(r.started), nil); err != nil {
		r.logger.Warn("failed to send notification", zap.Error(err))
	}

	r.logger.Info("capture day closed",
		zap.String("date", r.day),
		zap.Int("captured", r.summary.Success),
		zap.Int("failed", r.summary.Failed),
	)
	r.summary = capture.BatchResult{}
}
