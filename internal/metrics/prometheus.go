package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine metrics
	AnalysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gexa_analysis_runs_total",
			Help: "Total number of chain analyses",
		},
		[]string{"status"}, // status: success|error|empty
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gexa_analysis_duration_seconds",
			Help:    "Chain analysis duration in seconds, including chain fetches",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)

	ContractsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gexa_contracts_processed_total",
			Help: "Total number of option contracts aggregated",
		},
		[]string{"ticker"},
	)

	ChainFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gexa_chain_fetch_errors_total",
			Help: "Chain fetches that failed and were treated as empty",
		},
		[]string{"ticker"},
	)

	// Provider metrics
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gexa_provider_requests_total",
			Help: "Total number of market data provider requests",
		},
		[]string{"endpoint", "status"}, // status: success|error|rate_limited
	)

	// WebSocket metrics
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gexa_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)

	WebSocketBroadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gexa_websocket_broadcasts_total",
			Help: "Analysis frames broadcast to WebSocket groups",
		},
		[]string{"ticker"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(AnalysisRuns)
		prometheus.MustRegister(AnalysisDuration)
		prometheus.MustRegister(ContractsProcessed)
		prometheus.MustRegister(ChainFetchErrors)

		prometheus.MustRegister(ProviderRequests)

		prometheus.MustRegister(WebSocketClients)
		prometheus.MustRegister(WebSocketBroadcasts)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAnalysis records one analysis outcome. empty marks a run that found no contracts.
func RecordAnalysis(duration time.Duration, empty bool, err error) {
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case empty:
		status = "empty"
	}

	AnalysisRuns.WithLabelValues(status).Inc()
	AnalysisDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordContracts(ticker string, n int) {
	ContractsProcessed.WithLabelValues(ticker).Add(float64(n))
}

func RecordChainFetchError(ticker string) {
	ChainFetchErrors.WithLabelValues(ticker).Inc()
}

func RecordProviderRequest(endpoint string, err error, rateLimited bool) {
	status := "success"
	switch {
	case rateLimited:
		status = "rate_limited"
	case err != nil:
		status = "error"
	}
	ProviderRequests.WithLabelValues(endpoint, status).Inc()
}

func RecordBroadcast(ticker string) {
	WebSocketBroadcasts.WithLabelValues(ticker).Inc()
}
