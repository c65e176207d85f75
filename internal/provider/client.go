// Package provider is an HTTP client for a Tradier-style markets API that
// supplies quotes, expirations and option chains with greeks.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/metrics"
)

const (
	quotesPath      = "/v1/markets/quotes"
	expirationsPath = "/v1/markets/options/expirations"
	chainsPath      = "/v1/markets/options/chains"
)

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClient(baseURL, token string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:    100,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
	}

	if ratePerSec <= 0 {
		ratePerSec = 1
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Response envelopes. The API returns a bare object instead of a one-element
// array, and null instead of an empty list.
type quotesResponse struct {
	Quotes struct {
		Quote json.RawMessage `json:"quote"`
	} `json:"quotes"`
}

type expirationsResponse struct {
	Expirations *struct {
		Date json.RawMessage `json:"date"`
	} `json:"expirations"`
}

type chainsResponse struct {
	Options *struct {
		Option json.RawMessage `json:"option"`
	} `json:"options"`
}

// Quote returns the underlying quote for ticker.
func (c *HTTPClient) Quote(ctx context.Context, ticker string) (data.Quote, error) {
	body, err := c.get(ctx, "quotes", quotesPath, url.Values{"symbols": {ticker}})
	if err != nil {
		return data.Quote{}, err
	}

	var resp quotesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return data.Quote{}, fmt.Errorf("decoding quotes: %w", err)
	}

	quotes, err := oneOrMany[data.Quote](resp.Quotes.Quote)
	if err != nil {
		return data.Quote{}, fmt.Errorf("decoding quote: %w", err)
	}
	if len(quotes) == 0 {
		return data.Quote{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	return quotes[0], nil
}

// Expirations returns the listed expirations for ticker in ascending order.
func (c *HTTPClient) Expirations(ctx context.Context, ticker string) ([]string, error) {
	body, err := c.get(ctx, "expirations", expirationsPath, url.Values{"symbol": {ticker}})
	if err != nil {
		return nil, err
	}

	var resp expirationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding expirations: %w", err)
	}
	if resp.Expirations == nil {
		return []string{}, nil
	}

	dates, err := oneOrMany[string](resp.Expirations.Date)
	if err != nil {
		return nil, fmt.Errorf("decoding expiration dates: %w", err)
	}
	sort.Strings(dates)
	return dates, nil
}

// Chain returns the contracts for one expiration, greeks included.
func (c *HTTPClient) Chain(ctx context.Context, ticker, expiration string) ([]data.OptionContract, error) {
	params := url.Values{
		"symbol":     {ticker},
		"expiration": {expiration},
		"greeks":     {"true"},
	}
	body, err := c.get(ctx, "chains", chainsPath, params)
	if err != nil {
		return nil, err
	}

	var resp chainsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding chain: %w", err)
	}
	if resp.Options == nil {
		return []data.OptionContract{}, nil
	}

	contracts, err := oneOrMany[data.OptionContract](resp.Options.Option)
	if err != nil {
		return nil, fmt.Errorf("decoding contracts: %w", err)
	}
	return contracts, nil
}

// get performs a rate-limited GET with exponential backoff on 429 and 5xx.
func (c *HTTPClient) get(ctx context.Context, endpoint, path string, params url.Values) (body []byte, err error) {
	defer func() {
		metrics.RecordProviderRequest(endpoint, err, errors.Is(err, ErrRateLimited))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	c.logger.Debug("requesting", zap.String("url", reqURL))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing for error messages
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, ErrAuthFailed
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(payload))
		}

		return payload, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// oneOrMany decodes either a JSON array of T or a single T. null and empty
// input decode to an empty slice.
func oneOrMany[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var many []T
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
