package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wurlus/platform/internal/provider"
	"github.com/wurlus/platform/internal/registry"
)

// Sports the platform carries. Football is the premium live feed; the rest
// arrive through the free daily batch.
var supportedSports = []map[string]interface{}{
	{"id": provider.SportFootball, "name": "Football", "live": true},
	{"id": 2, "name": "Basketball", "live": false},
	{"id": 3, "name": "Ice Hockey", "live": false},
	{"id": 4, "name": "Baseball", "live": false},
	{"id": 5, "name": "American Football", "live": false},
}

// EventsHandler serves the public sports catalogue.
type EventsHandler struct {
	registry *registry.Registry
	premium  provider.SportsProvider
}

func NewEventsHandler(reg *registry.Registry, premium provider.SportsProvider) *EventsHandler {
	return &EventsHandler{registry: reg, premium: premium}
}

// ListSports handles GET /api/sports.
func (h *EventsHandler) ListSports(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]interface{}{"sports": supportedSports})
}

// ListEvents handles GET /api/events?type=live|upcoming&sports=1,2. Older
// clients send sportId and isLive instead; both spellings work.
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sports := parseSportsParam(q.Get("sports"))
	if sports == nil {
		sports = parseSportsParam(q.Get("sportId"))
	}

	live := q.Get("type") == "live" || q.Get("isLive") == "true"
	var events interface{}
	if live {
		events = h.registry.GetLive(r.Context(), sports)
	} else {
		events = h.registry.GetUpcoming(r.Context(), sports)
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// EventOdds handles GET /api/events/{eventID}/odds.
func (h *EventsHandler) EventOdds(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	odds := h.registry.CachedOdds(eventID)
	if odds == nil {
		fetched, err := h.premium.Odds(r.Context(), eventID)
		if err == nil {
			odds = fetched
		}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"eventId": eventID, "odds": odds})
}

// Results handles GET /api/events/results?period=today|week|month.
func (h *EventsHandler) Results(w http.ResponseWriter, r *http.Request) {
	days := 2
	switch r.URL.Query().Get("period") {
	case "today":
		days = 1
	case "week":
		days = 7
	case "month":
		days = 30
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && v > 0 && v <= 30 {
		days = v
	}
	results, err := h.premium.Results(r.Context(), provider.SportFootball, days)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func parseSportsParam(raw string) map[int]bool {
	if raw == "" {
		return nil
	}
	sports := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			sports[id] = true
		}
	}
	if len(sports) == 0 {
		return nil
	}
	return sports
}
