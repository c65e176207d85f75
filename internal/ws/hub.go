package ws

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/metrics"
)

// Hub manages WebSocket connections and group subscriptions. A group is a
// ticker symbol.
type Hub struct {
	name       string
	clients    map[*Client]bool
	groups     map[string]map[*Client]bool // group -> clients
	register   chan *Client
	unregister chan *Client
	validGroup func(string) bool
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new Hub. validGroup decides which groups clients may
// join; nil accepts every non-empty group.
func NewHub(name string, validGroup func(string) bool, logger *zap.Logger) *Hub {
	if validGroup == nil {
		validGroup = func(g string) bool { return g != "" }
	}
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		groups:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		validGroup: validGroup,
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", zap.String("hub", h.name))
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(count))
			h.logger.Debug("client registered",
				zap.String("hub", h.name),
				zap.String("connID", client.connID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for group := range client.groups {
					if clients, ok := h.groups[group]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.groups, group)
						}
					}
				}
				client.closeSend()
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(count))
			h.logger.Debug("client unregistered",
				zap.String("hub", h.name),
				zap.String("connID", client.connID),
			)
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}
	h.groups = make(map[string]map[*Client]bool)
	metrics.WebSocketClients.Set(0)
}

// drop schedules a client disconnect without blocking after shutdown.
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// JoinGroup adds a client to a group. Returns false for invalid groups.
func (h *Hub) JoinGroup(client *Client, group string) bool {
	if !h.validGroup(group) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
	client.groups[group] = true

	h.logger.Debug("client joined group",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
		zap.String("group", group),
	)
	return true
}

// LeaveGroup removes a client from a group.
func (h *Hub) LeaveGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.groups[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)

	h.logger.Debug("client left group",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
		zap.String("group", group),
	)
}

// GetActiveGroups returns all groups with at least one subscriber, sorted.
func (h *Hub) GetActiveGroups() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var groups []string
	for group, clients := range h.groups {
		if len(clients) > 0 {
			groups = append(groups, group)
		}
	}
	sort.Strings(groups)
	return groups
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetClientsByKey groups a group's subscribers by their key, so replay
// positions can be tracked per key.
func (h *Hub) GetClientsByKey(group string) map[string][]*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.groups[group]
	if !ok {
		return nil
	}
	byKey := make(map[string][]*Client)
	for client := range clients {
		byKey[client.key] = append(byKey[client.key], client)
	}
	return byKey
}

// BroadcastData sends one analysis to every subscriber of group, each in
// its negotiated format.
func (h *Hub) BroadcastData(group string, protoPayload, jsonPayload []byte) {
	h.mu.RLock()
	clients, ok := h.groups[group]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// Copy clients to avoid holding lock during send
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	h.BroadcastToClients(clientList, group, protoPayload, jsonPayload)
}

// BroadcastToClients sends one analysis to the given clients.
func (h *Hub) BroadcastToClients(clients []*Client, group string, protoPayload, jsonPayload []byte) {
	var protoMsg, jsonMsg []byte
	for _, client := range clients {
		var msg []byte
		if client.protocol == ProtocolJSON {
			if jsonMsg == nil {
				jsonMsg = buildDataMessageJSON(group, jsonPayload)
			}
			msg = jsonMsg
		} else {
			if protoMsg == nil {
				protoMsg = buildDataMessage(protoPayload)
			}
			msg = protoMsg
		}
		client.trySend(msg)
	}
	metrics.RecordBroadcast(group)
}
