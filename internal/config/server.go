package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/dgnsrekt/gex-analytics/internal/data"
)

// ServerConfig is the environment-driven configuration of the HTTP server.
// Engine and provider settings come from the file named by EngineConfig.
type ServerConfig struct {
	Port      string
	DataDir   string
	DataDate  string
	DataMode  string // "memory" or "stream"
	CacheMode string // "exhaust" or "rotation"
	// WebSocket configuration
	WSEnabled        bool
	WSStreamInterval time.Duration
	// EngineConfig is passed to Load; empty uses ./configs/default.yaml
	EngineConfig string
	// LiveEnabled serves live provider analysis in addition to replay
	LiveEnabled bool
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func LoadServerConfig() (*ServerConfig, error) {
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	dataDate := getEnvOrDefault("DATA_DATE", "")

	// Auto-detect latest date if DATA_DATE is empty or "latest"
	if dataDate == "" || dataDate == "latest" {
		detected, err := DetectLatestDate(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to detect latest date in %s: %w", dataDir, err)
		}
		dataDate = detected
	}

	wsInterval, err := time.ParseDuration(getEnvOrDefault("WS_STREAM_INTERVAL", "5s"))
	if err != nil || wsInterval <= 0 {
		wsInterval = 5 * time.Second
	}

	cfg := &ServerConfig{
		Port:             getEnvOrDefault("PORT", "8080"),
		DataDir:          dataDir,
		DataDate:         dataDate,
		DataMode:         getEnvOrDefault("DATA_MODE", DataModeMemory),
		CacheMode:        getEnvOrDefault("CACHE_MODE", string(data.CacheModeExhaust)),
		WSEnabled:        getEnvOrDefault("WS_ENABLED", "true") == "true",
		WSStreamInterval: wsInterval,
		EngineConfig:     getEnvOrDefault("ENGINE_CONFIG", ""),
		LiveEnabled:      getEnvOrDefault("LIVE_ENABLED", "false") == "true",
	}

	if cfg.DataMode != DataModeMemory && cfg.DataMode != DataModeStream {
		return nil, fmt.Errorf("invalid DATA_MODE: %s (must be 'memory' or 'stream')", cfg.DataMode)
	}
	if cfg.CacheMode != string(data.CacheModeExhaust) && cfg.CacheMode != string(data.CacheModeRotation) {
		return nil, fmt.Errorf("invalid CACHE_MODE: %s (must be 'exhaust' or 'rotation')", cfg.CacheMode)
	}

	return cfg, nil
}

// IsValidDate checks if date matches YYYY-MM-DD.
func IsValidDate(date string) bool {
	return datePattern.MatchString(date)
}

// DetectLatestDate scans the data directory for date folders and returns the most recent one
func DetectLatestDate(dataDir string) (string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("reading data directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if IsValidDate(name) {
			// Skip empty date folders
			subEntries, err := os.ReadDir(filepath.Join(dataDir, name))
			if err == nil && len(subEntries) > 0 {
				dates = append(dates, name)
			}
		}
	}

	if len(dates) == 0 {
		return "", fmt.Errorf("no date folders found in %s", dataDir)
	}

	// YYYY-MM-DD sorts lexicographically
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	return dates[0], nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
