package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/registry"
)

// broadcastMinGap throttles score pushes; clients never see updates closer
// than this.
const broadcastMinGap = 2 * time.Second

// Hub fans live score updates out to websocket subscribers. Each client
// carries its own sport filter; an empty filter with allSports set receives
// everything.
type Hub struct {
	registry *registry.Registry
	metrics  *infra.Metrics
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}

	lastBroadcast time.Time
}

func NewHub(reg *registry.Registry, metrics *infra.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		registry: reg,
		metrics:  metrics,
		logger:   logger.With("component", "ws_hub"),
		clients:  make(map[*Client]struct{}),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.WSConnections.Inc()
	h.logger.Debug("ws client connected", "clients", n)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if present {
		h.metrics.WSConnections.Dec()
		h.logger.Debug("ws client disconnected", "clients", n)
	}
}

// scoreUpdate is the outbound frame for live events.
type scoreUpdate struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Events    []domain.RawEvent `json:"events"`
}

// Run pushes the live snapshot to subscribers on every tick until ctx is
// done. The registry's own refresh cadence bounds data freshness; the hub
// only re-broadcasts what is already cached.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval < broadcastMinGap {
		interval = broadcastMinGap
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.BroadcastLive()
		}
	}
}

// BroadcastLive sends the current live snapshot to every subscriber whose
// filter matches at least one event. Calls closer together than the minimum
// gap are dropped.
func (h *Hub) BroadcastLive() {
	h.mu.Lock()
	if time.Since(h.lastBroadcast) < broadcastMinGap {
		h.mu.Unlock()
		return
	}
	h.lastBroadcast = time.Now()
	subscribers := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		subscribers = append(subscribers, c)
	}
	h.mu.Unlock()

	if len(subscribers) == 0 {
		return
	}

	events, at := h.registry.LiveSnapshot()
	for _, c := range subscribers {
		matched := c.filter(events)
		if len(matched) == 0 {
			continue
		}
		frame, err := json.Marshal(scoreUpdate{Type: "score_update", Timestamp: at, Events: matched})
		if err != nil {
			continue
		}
		c.send(frame)
	}
}
