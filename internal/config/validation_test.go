package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

func validConfig() *Config {
	return &Config{
		Engine:   quant.DefaultParams(),
		Provider: ProviderConfig{RetryCount: 3, RatePerSecond: 2},
		Data:     DataConfig{Mode: DataModeMemory},
		Tickers:  []string{"SPX", "SPY", "BRK.B"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected no error for valid config, got: %v", err)
	}
}

func TestValidate_InvalidTicker(t *testing.T) {
	cfg := validConfig()
	cfg.Tickers = []string{"SPX", "invalid_ticker", "QQQ"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid ticker")
	}
	if !strings.Contains(err.Error(), "invalid_ticker") {
		t.Errorf("error should mention invalid ticker, got: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Regime.ChopPin = 1.5
	cfg.Engine.LevelsPerSide = 0
	cfg.Data.Mode = "disk"

	err := cfg.Validate()
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}

	want := []string{"engine.regime.chop_pin", "engine.levels_per_side", "data.mode"}
	if len(verrs.InvalidFields) != len(want) {
		t.Fatalf("got %d invalid fields, want %d: %v", len(verrs.InvalidFields), len(want), verrs.InvalidFields)
	}
	for i, f := range verrs.InvalidFields {
		if f.Field != want[i] {
			t.Errorf("field %d = %s, want %s", i, f.Field, want[i])
		}
	}
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Regime.ElevatedThreshold = cfg.Engine.Regime.ChopThreshold / 2

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "elevated_threshold") {
		t.Errorf("expected elevated_threshold error, got: %v", err)
	}
}

func TestValidTicker(t *testing.T) {
	tests := []struct {
		ticker string
		want   bool
	}{
		{"SPY", true},
		{"BRK.B", true},
		{"X", true},
		{"spy", false},
		{"", false},
		{"1ABC", false},
		{"TOOLONGTICKER", false},
	}
	for _, tt := range tests {
		if got := ValidTicker(tt.ticker); got != tt.want {
			t.Errorf("ValidTicker(%q) = %v, want %v", tt.ticker, got, tt.want)
		}
	}
}
