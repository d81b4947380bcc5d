package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
)

// Sports the free tier covers, keyed by our sport ids.
var freeSports = map[int]string{
	2: "Basketball",
	3: "Ice Hockey",
	4: "Baseball",
	5: "American Football",
}

// FreeSports serves multi-sport schedules from a free daily-batch upstream.
// Reads come from an in-memory cache refreshed once per day by Refresh; the
// request path never touches the network.
type FreeSports struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu        sync.RWMutex
	events    map[int][]domain.RawEvent
	fetchedAt time.Time
}

func NewFreeSports(cfg *infra.Config, logger *slog.Logger) *FreeSports {
	return &FreeSports{
		baseURL: cfg.FreeSportsURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "free_sports"),
		events:  make(map[int][]domain.RawEvent),
	}
}

type freeEventsEnvelope struct {
	Events []struct {
		ID        string `json:"idEvent"`
		HomeTeam  string `json:"strHomeTeam"`
		AwayTeam  string `json:"strAwayTeam"`
		League    string `json:"strLeague"`
		Date      string `json:"dateEvent"`
		Time      string `json:"strTime"`
		HomeScore string `json:"intHomeScore"`
		AwayScore string `json:"intAwayScore"`
	} `json:"events"`
}

// Refresh pulls today's and tomorrow's schedule for every covered sport.
// Called by the scheduler once per day and once at startup.
func (p *FreeSports) Refresh(ctx context.Context) {
	fresh := make(map[int][]domain.RawEvent)
	now := time.Now().UTC()
	for sportID, name := range freeSports {
		var events []domain.RawEvent
		for day := 0; day < 2; day++ {
			date := now.AddDate(0, 0, day).Format("2006-01-02")
			batch, err := p.fetchDay(ctx, name, sportID, date)
			if err != nil {
				p.logger.Warn("free sports fetch failed", "sport", name, "date", date, "error", err)
				continue
			}
			events = append(events, batch...)
		}
		if len(events) > 0 {
			fresh[sportID] = events
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// keep yesterday's batch for sports that failed today
	for sportID, events := range fresh {
		p.events[sportID] = events
	}
	p.fetchedAt = now
}

func (p *FreeSports) fetchDay(ctx context.Context, sportName string, sportID int, date string) ([]domain.RawEvent, error) {
	url := fmt.Sprintf("%s/eventsday.php?d=%s&s=%s", p.baseURL, date, sportName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var envelope freeEventsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}

	events := make([]domain.RawEvent, 0, len(envelope.Events))
	for _, raw := range envelope.Events {
		e := domain.RawEvent{
			ID:       "fs-" + raw.ID,
			SportID:  sportID,
			Sport:    sportName,
			League:   raw.League,
			HomeTeam: raw.HomeTeam,
			AwayTeam: raw.AwayTeam,
			Source:   domain.SourceFree,
		}
		if t, err := time.Parse("2006-01-02 15:04:05", raw.Date+" "+raw.Time); err == nil {
			e.StartTime = t.UTC()
		}
		events = append(events, e)
	}
	return events, nil
}

// Live returns nothing: the free tier has no in-play data.
func (p *FreeSports) Live(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	return nil, nil
}

func (p *FreeSports) Upcoming(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.events[sportID], nil
}

// Odds returns nothing: the free tier carries no prices.
func (p *FreeSports) Odds(ctx context.Context, eventID string) ([]domain.EventOdds, error) {
	return nil, nil
}

// Results returns nothing: settlement uses the premium provider only.
func (p *FreeSports) Results(ctx context.Context, sportID int, days int) ([]domain.RawEvent, error) {
	return nil, nil
}

// CacheAge reports how old the daily batch is.
func (p *FreeSports) CacheAge(now time.Time) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.fetchedAt.IsZero() {
		return -1
	}
	return now.Sub(p.fetchedAt)
}
