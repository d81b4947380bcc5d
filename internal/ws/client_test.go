package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/provider"
	"github.com/wurlus/platform/internal/registry"
)

type noopProvider struct{}

func (noopProvider) Live(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	return nil, nil
}

func (noopProvider) Upcoming(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	return nil, nil
}

func (noopProvider) Odds(ctx context.Context, eventID string) ([]domain.EventOdds, error) {
	return nil, nil
}

func (noopProvider) Results(ctx context.Context, sportID int, days int) ([]domain.RawEvent, error) {
	return nil, nil
}

func newTestHub() (*Hub, *registry.Registry) {
	logger := slog.Default()
	reg := registry.New(noopProvider{},
		provider.NewFreeSports(&infra.Config{}, logger),
		infra.NewMetrics(prometheus.NewRegistry()), logger)
	return NewHub(reg, infra.NewMetrics(prometheus.NewRegistry()), logger), reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func TestServe_PongEchoesClientTimestamp(t *testing.T) {
	hub, _ := newTestHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.Serve))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"ping","timestamp":1724567890123}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]any
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
	assert.Equal(t, float64(1724567890123), pong["echo"])
	assert.NotEmpty(t, pong["timestamp"])
}

func TestServe_SubscribedClientReceivesScoreUpdates(t *testing.T) {
	hub, reg := newTestHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.Serve))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "sports": []int{1}}))
	time.Sleep(200 * time.Millisecond)

	reg.SaveLive([]domain.RawEvent{
		{ID: "fb-1", SportID: 1, HomeTeam: "Arsenal", AwayTeam: "Chelsea"},
		{ID: "nba-2", SportID: 2},
	})
	hub.BroadcastLive()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var update struct {
		Type   string            `json:"type"`
		Events []domain.RawEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(payload, &update))
	assert.Equal(t, "score_update", update.Type)
	require.Len(t, update.Events, 1, "only the subscribed sport is pushed")
	assert.Equal(t, "fb-1", update.Events[0].ID)
}

func TestFilter(t *testing.T) {
	events := []domain.RawEvent{{ID: "fb-1", SportID: 1}, {ID: "nba-2", SportID: 2}}

	c := &Client{sports: map[int]bool{1: true}}
	out := c.filter(events)
	require.Len(t, out, 1)
	assert.Equal(t, "fb-1", out[0].ID)

	all := &Client{allSports: true}
	assert.Len(t, all.filter(events), 2)

	none := &Client{sports: map[int]bool{}}
	assert.Empty(t, none.filter(events))
}
