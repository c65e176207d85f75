package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

type Config struct {
	Engine   quant.Params   `mapstructure:"engine"`
	Provider ProviderConfig `mapstructure:"provider"`
	Data     DataConfig     `mapstructure:"data"`
	Tickers  []string       `mapstructure:"tickers"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ProviderConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Token         string `mapstructure:"token"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelay    int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

func (p ProviderConfig) RetryBackoff() time.Duration {
	return time.Duration(p.RetryDelay) * time.Second
}

type DataConfig struct {
	Directory string `mapstructure:"directory"`
	Date      string `mapstructure:"date"` // YYYY-MM-DD or "latest"
	Mode      string `mapstructure:"mode"` // "memory" or "stream"
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	d := quant.DefaultParams()

	v.SetDefault("engine.regime.chop_threshold", d.Regime.ChopThreshold)
	v.SetDefault("engine.regime.elevated_threshold", d.Regime.ElevatedThreshold)
	v.SetDefault("engine.regime.chop_confidence", d.Regime.ChopConfidence)
	v.SetDefault("engine.regime.chop_pin", d.Regime.ChopPin)
	v.SetDefault("engine.regime.trend_confidence", d.Regime.TrendConfidence)
	v.SetDefault("engine.regime.trend_pin", d.Regime.TrendPin)
	v.SetDefault("engine.scenario.bullish_above", d.Scenario.BullishAbove)
	v.SetDefault("engine.scenario.bearish_below", d.Scenario.BearishBelow)
	v.SetDefault("engine.target.center_weight", d.Target.CenterWeight)
	v.SetDefault("engine.target.dominant_weight", d.Target.DominantWeight)
	v.SetDefault("engine.target.drift_weight", d.Target.DriftWeight)
	v.SetDefault("engine.levels_per_side", d.LevelsPerSide)
	v.SetDefault("engine.default_days", d.DefaultDays)
	v.SetDefault("engine.max_concurrency", d.MaxConcurrency)

	v.SetDefault("provider.base_url", "https://api.tradier.com")
	v.SetDefault("provider.timeout_sec", 30)
	v.SetDefault("provider.retry_count", 3)
	v.SetDefault("provider.retry_delay_sec", 2)
	v.SetDefault("provider.rate_per_second", 2)

	v.SetDefault("data.directory", "data")
	v.SetDefault("data.date", "latest")
	v.SetDefault("data.mode", "memory")

	v.SetDefault("tickers", DefaultTickers)

	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
}

// Load reads configuration from configPath (or ./configs/default.yaml when
// empty) layered over defaults and GEXA_* environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable support
	v.SetEnvPrefix("GEXA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("provider.token", "GEXA_PROVIDER_TOKEN", "TRADIER_TOKEN")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// RequireProvider checks the settings needed to talk to the live provider.
func (c *Config) RequireProvider() error {
	if c.Provider.Token == "" {
		return fmt.Errorf("provider token is required (set GEXA_PROVIDER_TOKEN env var)")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base_url is required")
	}
	return nil
}
