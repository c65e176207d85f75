package notify

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
)

var validPriorities = []string{"min", "low", "default", "high", "urgent"}

// Config holds ntfy settings, read from NTFY_* environment variables.
type Config struct {
	Enabled  bool
	Server   string
	Topic    string
	Priority string
	Tags     string // comma-separated emoji tags
	Token    string // optional, for private topics
}

func LoadConfig() *Config {
	enabled, _ := strconv.ParseBool(os.Getenv("NTFY_ENABLED"))
	return &Config{
		Enabled:  enabled,
		Server:   envOr("NTFY_SERVER", "https://ntfy.sh"),
		Topic:    os.Getenv("NTFY_TOPIC"),
		Priority: envOr("NTFY_PRIORITY", "default"),
		Tags:     envOr("NTFY_TAGS", "chart_with_upwards_trend"),
		Token:    os.Getenv("NTFY_TOKEN"),
	}
}

// Validate checks configuration is valid when enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Topic == "" {
		return errors.New("NTFY_TOPIC is required when NTFY_ENABLED=true")
	}
	if !slices.Contains(validPriorities, c.Priority) {
		return fmt.Errorf("invalid NTFY_PRIORITY: %s (valid: min, low, default, high, urgent)", c.Priority)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
