// Package notify posts capture run summaries to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/capture"
)

// Notifier reports the outcome of a capture run. A nil runErr with no
// failed tickers is a success.
type Notifier interface {
	SendCapture(ctx context.Context, result *capture.BatchResult, date string, duration time.Duration, runErr error) error
}

// message is one ntfy publish.
type message struct {
	title    string
	body     string
	tags     string
	priority string
}

// Client publishes to ntfy over HTTP.
type Client struct {
	httpClient *http.Client
	config     *Config
	logger     *zap.Logger
}

func NewClient(cfg *Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     cfg,
		logger:     logger,
	}
}

func (c *Client) SendCapture(ctx context.Context, result *capture.BatchResult, date string, duration time.Duration, runErr error) error {
	if runErr == nil && result.Failed == 0 {
		return c.publish(ctx, message{
			title:    fmt.Sprintf("Capture Complete: %s", date),
			body:     FormatSuccessMessage(result, duration),
			tags:     c.config.Tags + ",white_check_mark",
			priority: c.config.Priority,
		})
	}
	return c.publish(ctx, message{
		title:    fmt.Sprintf("Capture Failed: %s", date),
		body:     FormatFailureMessage(result, duration, runErr),
		tags:     c.config.Tags + ",x",
		priority: "high",
	})
}

func (c *Client) publish(ctx context.Context, msg message) error {
	url := strings.TrimSuffix(c.config.Server, "/") + "/" + c.config.Topic

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Title", msg.title)
	req.Header.Set("Priority", msg.priority)
	req.Header.Set("Tags", msg.tags)
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification", zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent", zap.String("title", msg.title))
	return nil
}

// NoopNotifier is used when notifications are disabled.
type NoopNotifier struct{}

func (NoopNotifier) SendCapture(context.Context, *capture.BatchResult, string, time.Duration, error) error {
	return nil
}

// New creates the appropriate notifier based on config.
func New(cfg *Config, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
