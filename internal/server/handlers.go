package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/analyzer"
	"github.com/dgnsrekt/gex-analytics/internal/config"
	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/provider"
	"github.com/dgnsrekt/gex-analytics/internal/quant"
)

// defaultKey is the replay consumer for requests without a key.
const defaultKey = "api"

// indexTickers are reported with type "index" by /v1/tickers.
var indexTickers = map[string]bool{"SPX": true, "NDX": true, "RUT": true, "VIX": true, "XSP": true}

type Server struct {
	loader data.SnapshotLoader
	cache  *data.IndexCache
	config *config.ServerConfig
	params quant.Params
	live   analyzer.ChainSource
	reload *ReloadManager
	logger *zap.Logger
}

func NewServer(loader data.SnapshotLoader, cache *data.IndexCache, cfg *config.ServerConfig, params quant.Params, logger *zap.Logger) *Server {
	return &Server{
		loader: loader,
		cache:  cache,
		config: cfg,
		params: params,
		logger: logger,
	}
}

// SetLiveSource enables live=true analysis against src.
func (s *Server) SetLiveSource(src analyzer.ChainSource) {
	s.live = src
}

// SetReloadManager enables /v1/admin/reload.
func (s *Server) SetReloadManager(rm *ReloadManager) {
	s.reload = rm
}

// Compile-time interface verification
var _ ServerInterface = (*Server)(nil)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type healthResponse struct {
	Status      string    `json:"status"`
	DataDate    string    `json:"data_date"`
	DataMode    string    `json:"data_mode"`
	CacheMode   string    `json:"cache_mode"`
	LiveEnabled bool      `json:"live_enabled"`
	LoadedAt    time.Time `json:"loaded_at,omitzero"`
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		DataDate:    s.config.DataDate,
		DataMode:    s.config.DataMode,
		CacheMode:   string(s.cache.Mode()),
		LiveEnabled: s.live != nil,
	}
	if s.reload != nil {
		resp.DataDate = s.reload.CurrentDate()
		resp.LoadedAt = s.reload.LoadedAt()
	}
	writeJSON(w, http.StatusOK, resp)
}

type tickerInfo struct {
	Symbol    string `json:"symbol"`
	Type      string `json:"type"`
	Snapshots int    `json:"snapshots"`
}

type tickersResponse struct {
	Tickers []tickerInfo `json:"tickers"`
	Count   int          `json:"count"`
}

func (s *Server) GetTickers(w http.ResponseWriter, r *http.Request) {
	loaded := s.loader.GetLoadedTickers()

	tickers := make([]tickerInfo, 0, len(loaded))
	for _, ticker := range loaded {
		tickerType := "stock"
		if indexTickers[ticker] {
			tickerType = "index"
		}
		n, _ := s.loader.GetLength(ticker)
		tickers = append(tickers, tickerInfo{Symbol: ticker, Type: tickerType, Snapshots: n})
	}

	writeJSON(w, http.StatusOK, tickersResponse{Tickers: tickers, Count: len(tickers)})
}

func (s *Server) GetAnalysis(w http.ResponseWriter, r *http.Request, ticker string, params GetAnalysisParams) {
	ctx := r.Context()
	ticker = strings.ToUpper(ticker)

	var expiration string
	if params.Expiration != nil {
		expiration = *params.Expiration
	}

	if params.Live != nil && *params.Live {
		if s.live == nil {
			writeError(w, http.StatusServiceUnavailable, "live analysis is not enabled")
			return
		}
		res, err := analyzer.New(s.live, s.params, s.logger).Analyze(ctx, ticker, expiration)
		s.writeAnalysis(w, ticker, res, err)
		return
	}

	key := defaultKey
	if params.Key != nil && *params.Key != "" {
		key = *params.Key
	}

	length, err := s.loader.GetLength(ticker)
	if err != nil {
		writeError(w, http.StatusNotFound, "no snapshots for "+ticker)
		return
	}

	cacheKey := data.CacheKey(ticker, key)
	idx, exhausted := s.cache.GetAndAdvance(cacheKey, length)
	if exhausted {
		s.logger.Debug("data exhausted",
			zap.String("cacheKey", cacheKey),
			zap.Int("index", idx),
			zap.Int("length", length),
		)
		writeError(w, http.StatusNotFound, "No more data available")
		return
	}

	snap, err := s.loader.GetAtIndex(ctx, ticker, idx)
	if err != nil {
		s.writeAnalysis(w, ticker, nil, err)
		return
	}

	s.logger.Debug("analyzing snapshot",
		zap.String("cacheKey", cacheKey),
		zap.Int("index", idx),
		zap.Int64("timestamp", snap.Timestamp),
	)

	res, err := analyzer.AnalyzeSnapshot(ctx, snap, expiration, s.params, s.logger)
	s.writeAnalysis(w, ticker, res, err)
}

func (s *Server) writeAnalysis(w http.ResponseWriter, ticker string, res *analyzer.AnalysisResult, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, data.ErrNotFound),
		errors.Is(err, data.ErrIndexOutOfBounds),
		errors.Is(err, provider.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, analyzer.ErrNoSpotPrice):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, provider.ErrRateLimited), errors.Is(err, provider.ErrAuthFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("analysis failed", zap.String("ticker", ticker), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
	}
}

type probabilityResponse struct {
	Price       float64 `json:"price"`
	Level       float64 `json:"level"`
	IV          float64 `json:"iv"`
	Days        float64 `json:"days"`
	Probability float64 `json:"probability"`
}

func (s *Server) GetProbability(w http.ResponseWriter, r *http.Request, params GetProbabilityParams) {
	p := quant.TouchProbability(params.Price, params.Level, data.NormalizeIV(params.IV), params.Days)
	writeJSON(w, http.StatusOK, probabilityResponse{
		Price:       params.Price,
		Level:       params.Level,
		IV:          params.IV,
		Days:        params.Days,
		Probability: decimal.NewFromFloat(p).Round(1).InexactFloat64(),
	})
}

type resetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (s *Server) ResetCache(w http.ResponseWriter, r *http.Request, params ResetCacheParams) {
	key := ""
	if params.Key != nil {
		key = *params.Key
	}

	count := s.cache.Reset(key)

	message := "All cache positions reset to index 0"
	if key != "" {
		message = "Cache positions reset for key: " + key
	}

	s.logger.Info("cache reset",
		zap.String("key", key),
		zap.Int("count", count),
	)

	writeJSON(w, http.StatusOK, resetResponse{Status: "success", Message: message, Count: count})
}

type reloadRequest struct {
	Date string `json:"date"`
}

func (s *Server) ReloadData(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		writeError(w, http.StatusServiceUnavailable, "reload is not enabled")
		return
	}

	var req reloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result, err := s.reload.Reload(r.Context(), req.Date)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, ErrReloadInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrDateNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("reload failed", zap.String("date", req.Date), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
