package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/analyzer"
	"github.com/dgnsrekt/gex-analytics/internal/config"
	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/provider"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
	"github.com/dgnsrekt/gex-analytics/internal/server"
)

func analyzeCmd() *cobra.Command {
	var (
		expiration string
		live       bool
		date       string
		index      int
	)

	cmd := &cobra.Command{
		Use:   "analyze TICKER",
		Short: "Analyze a ticker's options chain",
		Long: `Run the chain analyzer for a ticker and print the result as JSON.

By default the analysis runs against a recorded snapshot from the data
directory. With --live the chain is fetched from the provider.

Examples:
  # Latest recorded date, first snapshot
  gex-analytics analyze SPY

  # Specific date and snapshot index, one expiration
  gex-analytics analyze SPY --date 2025-01-10 --index 12 --expiration 2025-01-17

  # Live provider data (requires GEXA_PROVIDER_TOKEN)
  gex-analytics analyze SPX --live`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ticker := strings.ToUpper(args[0])

			if !config.ValidTicker(ticker) {
				return fmt.Errorf("invalid ticker: %s", args[0])
			}
			if expiration != "" && !config.IsValidDate(expiration) {
				return fmt.Errorf("invalid expiration %q (expected YYYY-MM-DD)", expiration)
			}

			var (
				res *analyzer.AnalysisResult
				err error
			)
			if live {
				if err := cfg.RequireProvider(); err != nil {
					return err
				}
				a := analyzer.New(newProviderClient(cfg), cfg.Engine, logger)
				res, err = a.Analyze(ctx, ticker, expiration)
			} else {
				snap, serr := loadSnapshot(ctx, cfg.Data, date, ticker, index)
				if serr != nil {
					return serr
				}
				res, err = analyzer.AnalyzeSnapshot(ctx, snap, expiration, cfg.Engine, logger)
			}
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&expiration, "expiration", "e", "", "restrict to one expiration (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&live, "live", false, "fetch the chain from the provider")
	cmd.Flags().StringVarP(&date, "date", "d", "", "recorded date to replay (default: data.date from config)")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "snapshot index within the date")

	return cmd
}

func probabilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probability PRICE LEVEL IV DAYS",
		Short: "Probability (0-100) that price touches level within days",
		Long: `Compute the touch probability for a level.

IV is annualized, as a fraction (0.2) or a percentage (20).

Example:
  gex-analytics probability 100 110 0.2 30`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := parseFloats(args)
			if err != nil {
				return err
			}
			p := quant.TouchProbability(vals[0], vals[1], data.NormalizeIV(vals[2]), vals[3])
			_, err = fmt.Fprintln(cmd.OutOrStdout(), decimal.NewFromFloat(p).StringFixed(1))
			return err
		},
	}
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

// loadSnapshot reads one recorded snapshot. An empty date falls back to the
// configured one; "latest" picks the newest date folder.
func loadSnapshot(ctx context.Context, dc config.DataConfig, date, ticker string, index int) (*data.Snapshot, error) {
	if date == "" {
		date = dc.Date
	}
	if date == "" || date == "latest" {
		detected, err := config.DetectLatestDate(dc.Directory)
		if err != nil {
			return nil, err
		}
		date = detected
	}
	if !config.IsValidDate(date) {
		return nil, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}

	loader, err := server.CreateLoader(dc.Mode, dc.Directory, date, logger)
	if err != nil {
		return nil, err
	}
	defer loader.Close()

	snap, err := loader.GetAtIndex(ctx, ticker, index)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s[%d] on %s: %w", ticker, index, date, err)
	}
	logger.Debug("loaded snapshot",
		zap.String("ticker", ticker),
		zap.String("date", date),
		zap.Int("index", index),
	)
	return snap, nil
}

func newProviderClient(c *config.Config) *provider.HTTPClient {
	return provider.NewClient(
		c.Provider.BaseURL,
		c.Provider.Token,
		c.Provider.RatePerSecond,
		c.Provider.Timeout(),
		c.Provider.RetryBackoff(),
		c.Provider.RetryCount,
		logger,
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
