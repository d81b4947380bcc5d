package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wurlus/platform/internal/domain"
)

const (
	pingInterval    = 30 * time.Second
	pongWait        = 10 * time.Second
	writeWait       = 5 * time.Second
	inactiveWait    = 15 * time.Second
	maxSessionIdle  = 10 * time.Minute
	outboundBacklog = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// auth is wallet-signature based elsewhere; the score feed is public
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket session. Subscriptions arrive as JSON frames; the
// hub pushes score updates through the buffered outbound channel, dropping
// frames for slow readers rather than blocking the broadcast.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	mu        sync.RWMutex
	sports    map[int]bool
	allSports bool

	outbound chan []byte
	done     chan struct{}
	once     sync.Once
}

// inboundFrame is everything a client may send: subscription changes and
// application-level pings.
type inboundFrame struct {
	Type      string          `json:"type"`
	Sports    []int           `json:"sports,omitempty"`
	AllSports bool            `json:"allSports,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// Serve upgrades the request and runs the session until either side closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &Client{
		hub:      h,
		conn:     conn,
		sports:   make(map[int]bool),
		outbound: make(chan []byte, outboundBacklog),
		done:     make(chan struct{}),
	}
	h.add(c)

	go c.writeLoop()
	c.readLoop()
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
		c.hub.remove(c)
	})
}

func (c *Client) send(frame []byte) {
	select {
	case c.outbound <- frame:
	default:
		// slow consumer; skip this update
	}
}

// filter returns the subset of events the client subscribed to.
func (c *Client) filter(events []domain.RawEvent) []domain.RawEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.allSports {
		return events
	}
	if len(c.sports) == 0 {
		return nil
	}
	out := make([]domain.RawEvent, 0, len(events))
	for _, e := range events {
		if c.sports[e.SportID] {
			out = append(out, e)
		}
	}
	return out
}

func (c *Client) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(4096)
	c.resetReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.resetReadDeadline()
		return nil
	})

	sessionDeadline := time.Now().Add(maxSessionIdle)
	for {
		if time.Now().After(sessionDeadline) {
			return
		}
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.resetReadDeadline()

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "subscribe":
			c.mu.Lock()
			c.allSports = frame.AllSports
			c.sports = make(map[int]bool, len(frame.Sports))
			for _, id := range frame.Sports {
				c.sports[id] = true
			}
			c.mu.Unlock()
			sessionDeadline = time.Now().Add(maxSessionIdle)
		case "ping":
			pong := map[string]any{
				"type":      "pong",
				"timestamp": time.Now().UTC(),
			}
			if len(frame.Timestamp) > 0 {
				pong["echo"] = frame.Timestamp
			}
			reply, _ := json.Marshal(pong)
			c.send(reply)
			sessionDeadline = time.Now().Add(maxSessionIdle)
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// resetReadDeadline keeps the connection alive as long as frames or pongs
// keep arriving inside the inactivity window.
func (c *Client) resetReadDeadline() {
	wait := inactiveWait
	if pingInterval+pongWait > wait {
		wait = pingInterval + pongWait
	}
	c.conn.SetReadDeadline(time.Now().Add(wait))
}
