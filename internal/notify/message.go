package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/gex-analytics/internal/capture"
)

// maxListedErrors caps the per-ticker errors included in a failure message.
const maxListedErrors = 3

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(result *capture.BatchResult, duration time.Duration) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Tickers: %d\n", result.Total)
	fmt.Fprintf(&sb, "Captured: %d\n", result.Success)
	fmt.Fprintf(&sb, "Not Found: %d\n", result.NotFound)
	fmt.Fprintf(&sb, "Contracts: %d\n", result.Contracts)
	fmt.Fprintf(&sb, "Duration: %s", duration.Round(time.Second))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(result *capture.BatchResult, duration time.Duration, err error) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Tickers: %d\n", result.Total)
	fmt.Fprintf(&sb, "Captured: %d\n", result.Success)
	fmt.Fprintf(&sb, "Failed: %d\n", result.Failed)
	fmt.Fprintf(&sb, "Duration: %s", duration.Round(time.Second))

	if err != nil {
		fmt.Fprintf(&sb, "\n\nError: %v", err)
	}

	if len(result.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		limit := min(len(result.Errors), maxListedErrors)
		for _, e := range result.Errors[:limit] {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
		if len(result.Errors) > maxListedErrors {
			fmt.Fprintf(&sb, "... and %d more errors", len(result.Errors)-maxListedErrors)
		}
	}

	return sb.String()
}
