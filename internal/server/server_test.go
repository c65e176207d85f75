package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/config"
	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

func testSnapshot(ticker string, last float64) data.Snapshot {
	return data.Snapshot{
		Timestamp: time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC).Unix(),
		Ticker:    ticker,
		Quote:     data.Quote{Last: last, PrevClose: last - 1},
		Chains: map[string][]data.OptionContract{
			"2025-01-17": {
				{Strike: 95, OptionType: "put", OpenInterest: 1000, Greeks: data.Greeks{Gamma: 0.02}},
				{Strike: 105, OptionType: "call", OpenInterest: 1000, Greeks: data.Greeks{Gamma: 0.02}},
			},
		},
	}
}

func writeSnapshots(t *testing.T, dir, date string, snaps ...data.Snapshot) {
	t.Helper()
	for _, s := range snaps {
		path := filepath.Join(dir, date, s.Ticker)
		if err := os.MkdirAll(path, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		b, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		f, err := os.OpenFile(filepath.Join(path, data.SnapshotFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		f.Write(append(b, '\n'))
		f.Close()
	}
}

// liveSource is a ChainSource stub for live=true requests.
type liveSource struct{}

func (liveSource) Quote(ctx context.Context, ticker string) (data.Quote, error) {
	return data.Quote{Symbol: ticker, Last: 200}, nil
}

func (liveSource) Expirations(ctx context.Context, ticker string) ([]string, error) {
	return []string{"2025-01-17"}, nil
}

func (liveSource) Chain(ctx context.Context, ticker, expiration string) ([]data.OptionContract, error) {
	return testSnapshot(ticker, 200).Chains[expiration], nil
}

type testEnv struct {
	server  *Server
	handler http.Handler
	cache   *data.IndexCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	dir := t.TempDir()
	writeSnapshots(t, dir, "2025-01-10", testSnapshot("SPY", 100), testSnapshot("SPY", 101), testSnapshot("SPX", 5900))
	writeSnapshots(t, dir, "2025-01-13", testSnapshot("QQQ", 500))

	cfg := &config.ServerConfig{
		DataDir:   dir,
		DataDate:  "2025-01-10",
		DataMode:  config.DataModeMemory,
		CacheMode: string(data.CacheModeExhaust),
	}

	initial, err := CreateLoader(cfg.DataMode, cfg.DataDir, cfg.DataDate, logger)
	if err != nil {
		t.Fatalf("CreateLoader: %v", err)
	}
	loader := data.NewReloadableLoader(initial)
	cache := data.NewIndexCache(data.CacheModeExhaust)

	srv := NewServer(loader, cache, cfg, quant.DefaultParams(), logger)
	srv.SetReloadManager(NewReloadManager(loader, cache, cfg, logger))

	handler, err := NewRouter(srv, nil, nil, logger)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &testEnv{server: srv, handler: handler, cache: cache}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: decode: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.do(t, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ok" || body["data_date"] != "2025-01-10" || body["cache_mode"] != "exhaust" {
		t.Errorf("unexpected health: %v", body)
	}
	if body["live_enabled"] != false {
		t.Errorf("live_enabled = %v, want false", body["live_enabled"])
	}
}

func TestTickers(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, http.MethodGet, "/v1/tickers", "")

	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}
	tickers := body["tickers"].([]any)
	spx := tickers[0].(map[string]any)
	spy := tickers[1].(map[string]any)
	if spx["symbol"] != "SPX" || spx["type"] != "index" {
		t.Errorf("unexpected SPX entry: %v", spx)
	}
	if spy["symbol"] != "SPY" || spy["type"] != "stock" || spy["snapshots"] != float64(2) {
		t.Errorf("unexpected SPY entry: %v", spy)
	}
}

func TestAnalysisReplayAdvancesPerKey(t *testing.T) {
	env := newTestEnv(t)

	_, first := env.do(t, http.MethodGet, "/v1/analysis/spy?key=alice", "")
	if first["symbol"] != "SPY" || first["price"] != float64(100) {
		t.Fatalf("unexpected first analysis: symbol=%v price=%v", first["symbol"], first["price"])
	}
	if _, ok := first["levels"].(map[string]any); !ok {
		t.Errorf("levels missing: %v", first)
	}

	_, second := env.do(t, http.MethodGet, "/v1/analysis/SPY?key=alice", "")
	if second["price"] != float64(101) {
		t.Errorf("second price = %v, want 101", second["price"])
	}

	rec, body := env.do(t, http.MethodGet, "/v1/analysis/SPY?key=alice", "")
	if rec.Code != http.StatusNotFound || body["error"] != "No more data available" {
		t.Errorf("expected exhausted 404, got %d %v", rec.Code, body)
	}

	_, other := env.do(t, http.MethodGet, "/v1/analysis/SPY?key=bob", "")
	if other["price"] != float64(100) {
		t.Errorf("bob should start at the first snapshot, got price %v", other["price"])
	}
}

func TestAnalysisErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown ticker", "/v1/analysis/TSLA", http.StatusNotFound},
		{"unlisted expiration is empty", "/v1/analysis/SPX?expiration=2030-01-01", http.StatusOK},
		{"malformed expiration", "/v1/analysis/SPY?expiration=Jan17", http.StatusBadRequest},
		{"malformed ticker", "/v1/analysis/_SPY", http.StatusBadRequest},
		{"bad live flag", "/v1/analysis/SPY?live=maybe", http.StatusBadRequest},
		{"live disabled", "/v1/analysis/SPY?live=true", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := env.do(t, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestAnalysisExpirationFilter(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/v1/analysis/SPY?expiration=2025-01-17", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	stats := body["expiration_stats"].([]any)
	if len(stats) != 1 {
		t.Fatalf("expiration_stats = %v", stats)
	}
	if days := stats[0].(map[string]any)["days_to_expiration"]; days != float64(7) {
		t.Errorf("days_to_expiration = %v, want 7 from the capture time", days)
	}
}

func TestAnalysisLive(t *testing.T) {
	env := newTestEnv(t)
	env.server.SetLiveSource(liveSource{})

	rec, body := env.do(t, http.MethodGet, "/v1/analysis/AAPL?live=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if body["symbol"] != "AAPL" || body["price"] != float64(200) {
		t.Errorf("unexpected live analysis: symbol=%v price=%v", body["symbol"], body["price"])
	}
	if idx := env.cache.GetIndex(data.CacheKey("AAPL", defaultKey)); idx != 0 {
		t.Errorf("live request moved replay position to %d", idx)
	}
}

func TestProbability(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  float64
	}{
		{"price=100&level=100&iv=0.2&days=30", 50},
		{"price=100&level=110&iv=0.2&days=30", 4.8},
		{"price=100&level=110&iv=20&days=30", 4.8},
		{"price=100&level=110&iv=0&days=30", 50},
	}
	for _, tt := range tests {
		rec, body := env.do(t, http.MethodGet, "/v1/probability?"+tt.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.query, rec.Code)
		}
		if body["probability"] != tt.want {
			t.Errorf("%s: probability = %v, want %v", tt.query, body["probability"], tt.want)
		}
	}

	if rec, _ := env.do(t, http.MethodGet, "/v1/probability?price=100&level=110", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing params: status = %d, want 400", rec.Code)
	}
	if rec, _ := env.do(t, http.MethodGet, "/v1/probability?price=0&level=110&iv=0.2&days=1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("zero price: status = %d, want 400", rec.Code)
	}
}

func TestResetCache(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/v1/analysis/SPY?key=alice", "")
	env.do(t, http.MethodGet, "/v1/analysis/SPX?key=alice", "")
	env.do(t, http.MethodGet, "/v1/analysis/SPY?key=bob", "")

	_, body := env.do(t, http.MethodPost, "/v1/cache/reset?key=alice", "")
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
	if idx := env.cache.GetIndex(data.CacheKey("SPY", "bob")); idx != 1 {
		t.Errorf("bob position = %d, want 1", idx)
	}

	_, body = env.do(t, http.MethodPost, "/v1/cache/reset", "")
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestReload(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/v1/analysis/SPY", "")

	rec, body := env.do(t, http.MethodPost, "/v1/admin/reload", `{"date":"2025-01-13"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if body["previous_date"] != "2025-01-10" || body["new_date"] != "2025-01-13" || body["tickers_loaded"] != float64(1) {
		t.Errorf("unexpected reload result: %v", body)
	}

	_, tickers := env.do(t, http.MethodGet, "/v1/tickers", "")
	if tickers["count"] != float64(1) {
		t.Errorf("tickers after reload = %v", tickers)
	}
	if idx := env.cache.GetIndex(data.CacheKey("SPY", defaultKey)); idx != 0 {
		t.Errorf("cache not reset, SPY position %d", idx)
	}
	_, health := env.do(t, http.MethodGet, "/health", "")
	if health["data_date"] != "2025-01-13" {
		t.Errorf("health data_date = %v", health["data_date"])
	}

	if rec, _ := env.do(t, http.MethodPost, "/v1/admin/reload", `{"date":"2025-02-01"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown date: status = %d, want 400", rec.Code)
	}
	if rec, _ := env.do(t, http.MethodPost, "/v1/admin/reload", `{"date":"01/13/2025"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed date: status = %d, want 400", rec.Code)
	}
}

func TestStaticRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/openapi.yaml", "/docs", "/metrics"} {
		rec, _ := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}

	if rec, _ := env.do(t, http.MethodGet, "/v1/unknown", ""); rec.Code == http.StatusOK {
		t.Error("expected unknown route to fail")
	}
}

func TestMaskQueryKey(t *testing.T) {
	if got := maskQueryKey("key=secret123"); got != "key=secr****" {
		t.Errorf("maskQueryKey = %s", got)
	}
	if got := maskQueryKey(""); got != "" {
		t.Errorf("maskQueryKey(\"\") = %s", got)
	}
}
