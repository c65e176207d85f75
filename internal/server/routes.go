package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// GetAnalysisParams defines parameters for GetAnalysis.
type GetAnalysisParams struct {
	Expiration *string
	Key        *string
	Live       *bool
}

// GetProbabilityParams defines parameters for GetProbability.
type GetProbabilityParams struct {
	Price float64
	Level float64
	IV    float64
	Days  float64
}

// ResetCacheParams defines parameters for ResetCache.
type ResetCacheParams struct {
	Key *string
}

// ServerInterface is the set of operations in api/openapi.yaml.
type ServerInterface interface {
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /v1/tickers)
	GetTickers(w http.ResponseWriter, r *http.Request)
	// (GET /v1/analysis/{ticker})
	GetAnalysis(w http.ResponseWriter, r *http.Request, ticker string, params GetAnalysisParams)
	// (GET /v1/probability)
	GetProbability(w http.ResponseWriter, r *http.Request, params GetProbabilityParams)
	// (POST /v1/cache/reset)
	ResetCache(w http.ResponseWriter, r *http.Request, params ResetCacheParams)
	// (POST /v1/admin/reload)
	ReloadData(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper binds path and query parameters before calling
// the handler.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func invalidParam(w http.ResponseWriter, name string, err error) {
	writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid format for parameter %s: %v", name, err))
}

func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetHealth(w, r)
}

func (siw *ServerInterfaceWrapper) GetTickers(w http.ResponseWriter, r *http.Request) {
	siw.Handler.GetTickers(w, r)
}

func (siw *ServerInterfaceWrapper) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	var ticker string
	err := runtime.BindStyledParameterWithOptions("simple", "ticker", chi.URLParam(r, "ticker"), &ticker,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		invalidParam(w, "ticker", err)
		return
	}

	var params GetAnalysisParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "expiration", query, &params.Expiration); err != nil {
		invalidParam(w, "expiration", err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "key", query, &params.Key); err != nil {
		invalidParam(w, "key", err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "live", query, &params.Live); err != nil {
		invalidParam(w, "live", err)
		return
	}

	siw.Handler.GetAnalysis(w, r, ticker, params)
}

func (siw *ServerInterfaceWrapper) GetProbability(w http.ResponseWriter, r *http.Request) {
	var params GetProbabilityParams
	query := r.URL.Query()

	bindings := []struct {
		name string
		dest *float64
	}{
		{"price", &params.Price},
		{"level", &params.Level},
		{"iv", &params.IV},
		{"days", &params.Days},
	}
	for _, b := range bindings {
		if err := runtime.BindQueryParameter("form", true, true, b.name, query, b.dest); err != nil {
			invalidParam(w, b.name, err)
			return
		}
	}

	siw.Handler.GetProbability(w, r, params)
}

func (siw *ServerInterfaceWrapper) ResetCache(w http.ResponseWriter, r *http.Request) {
	var params ResetCacheParams
	if err := runtime.BindQueryParameter("form", true, false, "key", r.URL.Query(), &params.Key); err != nil {
		invalidParam(w, "key", err)
		return
	}
	siw.Handler.ResetCache(w, r, params)
}

func (siw *ServerInterfaceWrapper) ReloadData(w http.ResponseWriter, r *http.Request) {
	siw.Handler.ReloadData(w, r)
}

// HandlerFromMux registers every operation on r.
func HandlerFromMux(si ServerInterface, r chi.Router) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	r.Get("/health", wrapper.GetHealth)
	r.Get("/v1/tickers", wrapper.GetTickers)
	r.Get("/v1/analysis/{ticker}", wrapper.GetAnalysis)
	r.Get("/v1/probability", wrapper.GetProbability)
	r.Post("/v1/cache/reset", wrapper.ResetCache)
	r.Post("/v1/admin/reload", wrapper.ReloadData)
}
