package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"go.uber.org/zap"
)

// Event represents a Server-Sent Event
type Event struct {
	ID        string `json:"id"`
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client.
// A non-nil OrderID restricts the stream to that order's events.
type Client struct {
	ID      string
	Address string
	OrderID *uint64
	Events  chan Event
}

func (c *Client) wants(e *entity.LedgerEvent) bool {
	if c.OrderID == nil {
		return true
	}
	return e.OrderID != nil && *e.OrderID == *c.OrderID
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("address", client.Address),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub and closes its channel
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Events)
		delete(h.clients, id)
	}
}

// Publish fans a committed ledger event out to the interested clients.
// Slow clients drop events instead of blocking the ledger.
func (h *Hub) Publish(_ context.Context, e *entity.LedgerEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Name, err)
	}
	event := Event{
		ID:        strconv.FormatUint(e.Seq, 10),
		EventType: e.Name,
		Data:      string(data),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.wants(e) {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event",
				zap.String("client_id", client.ID),
				zap.Uint64("seq", e.Seq))
		}
	}
	return nil
}
