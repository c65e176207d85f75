package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// NegotiateResponse tells a client where to open its analysis stream.
type NegotiateResponse struct {
	WebsocketURL string   `json:"websocket_url"`
	Protocols    []string `json:"protocols"`
}

// NegotiateHandler handles the /v1/negotiate endpoint.
type NegotiateHandler struct {
	path   string
	logger *zap.Logger
}

// NewNegotiateHandler creates a NegotiateHandler advertising the
// WebSocket route at path.
func NewNegotiateHandler(path string, logger *zap.Logger) *NegotiateHandler {
	return &NegotiateHandler{path: path, logger: logger}
}

// HandleNegotiate returns the stream URL. A key may be given as
// "Authorization: Basic <key>" or the key query parameter; it is carried
// into the URL so replay positions follow the caller.
func (h *NegotiateHandler) HandleNegotiate(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Basic ") {
		key = strings.TrimPrefix(auth, "Basic ")
	}

	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s%s", scheme, r.Host, h.path)
	if key != "" {
		wsURL += "?key=" + url.QueryEscape(key)
	}

	response := NegotiateResponse{
		WebsocketURL: wsURL,
		Protocols:    []string{SubprotocolJSON, SubprotocolProtobuf},
	}

	h.logger.Debug("negotiate successful", zap.String("key", maskKey(key)))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode negotiate response", zap.Error(err))
	}
}
