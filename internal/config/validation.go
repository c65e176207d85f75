package config

import (
	"fmt"
	"strings"
)

// InvalidField is a setting that failed validation.
type InvalidField struct {
	Field  string
	Reason string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	InvalidTickers []string
	InvalidFields  []InvalidField
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidTickers) > 0 || len(e.InvalidFields) > 0
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	e.InvalidFields = append(e.InvalidFields, InvalidField{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.InvalidTickers) > 0 {
		sb.WriteString("\nInvalid tickers:\n")
		for _, t := range e.InvalidTickers {
			sb.WriteString(fmt.Sprintf("  - %s\n", t))
		}
		sb.WriteString("\nTickers must be upper-case symbols, e.g. SPY, SPX, BRK.B\n")
	}

	if len(e.InvalidFields) > 0 {
		sb.WriteString("\nInvalid settings:\n")
		for _, f := range e.InvalidFields {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", f.Field, f.Reason))
		}
	}

	return sb.String()
}

// Validate checks engine calibration, data settings and tickers, reporting
// every problem at once.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	for _, ticker := range c.Tickers {
		if !ValidTicker(ticker) {
			errs.InvalidTickers = append(errs.InvalidTickers, ticker)
		}
	}

	validateEngine(errs, c)

	if c.Data.Mode != DataModeMemory && c.Data.Mode != DataModeStream {
		errs.add("data.mode", "must be 'memory' or 'stream', got %q", c.Data.Mode)
	}
	if c.Provider.RetryCount < 0 {
		errs.add("provider.retry_count", "must be >= 0")
	}
	if c.Provider.RatePerSecond < 1 {
		errs.add("provider.rate_per_second", "must be >= 1")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateEngine(errs *ValidationErrors, c *Config) {
	e := c.Engine

	if e.Regime.ChopThreshold <= 0 {
		errs.add("engine.regime.chop_threshold", "must be > 0")
	}
	if e.Regime.ElevatedThreshold < e.Regime.ChopThreshold {
		errs.add("engine.regime.elevated_threshold", "must be >= chop_threshold (%g)", e.Regime.ChopThreshold)
	}
	unit := []struct {
		field string
		v     float64
	}{
		{"engine.regime.chop_confidence", e.Regime.ChopConfidence},
		{"engine.regime.chop_pin", e.Regime.ChopPin},
		{"engine.regime.trend_confidence", e.Regime.TrendConfidence},
		{"engine.regime.trend_pin", e.Regime.TrendPin},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 {
			errs.add(u.field, "must be within [0, 1], got %g", u.v)
		}
	}

	if e.Scenario.BearishBelow > e.Scenario.BullishAbove {
		errs.add("engine.scenario.bearish_below", "must be <= bullish_above (%g)", e.Scenario.BullishAbove)
	}
	if e.Scenario.BullishAbove < 0 || e.Scenario.BullishAbove > 100 {
		errs.add("engine.scenario.bullish_above", "must be within [0, 100]")
	}

	if e.Target.CenterWeight < 0 || e.Target.DominantWeight < 0 || e.Target.DriftWeight < 0 {
		errs.add("engine.target", "weights must be >= 0")
	}

	if e.LevelsPerSide < 1 {
		errs.add("engine.levels_per_side", "must be >= 1")
	}
	if e.DefaultDays < 1 {
		errs.add("engine.default_days", "must be >= 1")
	}
	if e.MaxConcurrency < 1 {
		errs.add("engine.max_concurrency", "must be >= 1")
	}
}
