package config

import "regexp"

// DefaultTickers is used when no tickers are configured.
var DefaultTickers = []string{
	"SPX", "NDX", "RUT", "SPY", "QQQ", "IWM",
	"AAPL", "TSLA", "NVDA", "META", "AMZN", "GOOGL",
}

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)

// ValidTicker reports whether s looks like an equity or index symbol.
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

// Data modes for the snapshot loader.
const (
	DataModeMemory = "memory"
	DataModeStream = "stream"
)
