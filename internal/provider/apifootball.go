package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
)

// Per-call budgets. Live lookups sit on the bet-validation path and get the
// tighter budget.
const (
	liveTimeout     = 8 * time.Second
	upcomingTimeout = 12 * time.Second
)

// statuses the upstream reports for in-play fixtures
var liveStatuses = map[string]bool{
	"1H": true, "HT": true, "2H": true, "ET": true, "BT": true, "P": true, "LIVE": true,
}

// APIFootball is the premium football provider. Football is its only sport;
// requests for other sport ids return empty.
type APIFootball struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewAPIFootball(cfg *infra.Config, logger *slog.Logger) *APIFootball {
	return &APIFootball{
		baseURL: cfg.FootballAPIURL,
		apiKey:  cfg.FootballAPIKey,
		client:  &http.Client{Timeout: upcomingTimeout},
		logger:  logger.With("component", "api_football"),
	}
}

type fixtureEnvelope struct {
	Response []fixture `json:"response"`
}

type fixture struct {
	Fixture struct {
		ID     int64  `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		Name string `json:"name"`
	} `json:"league"`
	Teams struct {
		Home struct {
			Name string `json:"name"`
		} `json:"home"`
		Away struct {
			Name string `json:"name"`
		} `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

func (f fixture) toEvent() domain.RawEvent {
	e := domain.RawEvent{
		ID:       "fb-" + strconv.FormatInt(f.Fixture.ID, 10),
		SportID:  SportFootball,
		Sport:    "football",
		League:   f.League.Name,
		HomeTeam: f.Teams.Home.Name,
		AwayTeam: f.Teams.Away.Name,
		Status:   f.Fixture.Status.Short,
	}
	if t, err := time.Parse(time.RFC3339, f.Fixture.Date); err == nil {
		e.StartTime = t.UTC()
	}
	if f.Fixture.Status.Elapsed != nil {
		e.Minute = *f.Fixture.Status.Elapsed
		e.HasMinute = true
	}
	if f.Goals.Home != nil && f.Goals.Away != nil {
		e.HomeScore = *f.Goals.Home
		e.AwayScore = *f.Goals.Away
		e.HasScore = true
	}
	return e
}

func (p *APIFootball) get(ctx context.Context, timeout time.Duration, path string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-apisports-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("api-football %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api-football %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *APIFootball) Live(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	if sportID != SportFootball {
		return nil, nil
	}
	var envelope fixtureEnvelope
	query := url.Values{"live": {"all"}}
	if err := p.get(ctx, liveTimeout, "/fixtures", query, &envelope); err != nil {
		return nil, err
	}
	events := make([]domain.RawEvent, 0, len(envelope.Response))
	for _, f := range envelope.Response {
		if !liveStatuses[f.Fixture.Status.Short] {
			continue
		}
		e := f.toEvent()
		e.Source = domain.SourceLive
		events = append(events, e)
	}
	return events, nil
}

func (p *APIFootball) Upcoming(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	if sportID != SportFootball {
		return nil, nil
	}
	var events []domain.RawEvent
	now := time.Now().UTC()
	for day := 0; day < 3; day++ {
		var envelope fixtureEnvelope
		query := url.Values{
			"date":   {now.AddDate(0, 0, day).Format("2006-01-02")},
			"status": {"NS"},
		}
		if err := p.get(ctx, upcomingTimeout, "/fixtures", query, &envelope); err != nil {
			// partial data beats none for a listing endpoint
			p.logger.Warn("upcoming fixtures page failed", "day", day, "error", err)
			continue
		}
		for _, f := range envelope.Response {
			e := f.toEvent()
			e.Source = domain.SourceUpcoming
			events = append(events, e)
		}
	}
	return events, nil
}

type oddsEnvelope struct {
	Response []struct {
		Bookmakers []struct {
			Bets []struct {
				ID     int    `json:"id"`
				Name   string `json:"name"`
				Values []struct {
					Value string `json:"value"`
					Odd   string `json:"odd"`
				} `json:"values"`
			} `json:"bets"`
		} `json:"bookmakers"`
	} `json:"response"`
}

func (p *APIFootball) Odds(ctx context.Context, eventID string) ([]domain.EventOdds, error) {
	fixtureID, ok := numericID(eventID)
	if !ok {
		return nil, nil
	}
	var envelope oddsEnvelope
	query := url.Values{"fixture": {fixtureID}}
	if err := p.get(ctx, upcomingTimeout, "/odds", query, &envelope); err != nil {
		return nil, err
	}

	var odds []domain.EventOdds
	for _, r := range envelope.Response {
		for _, bm := range r.Bookmakers {
			for _, bet := range bm.Bets {
				marketID := marketIDFor(bet.Name)
				for _, v := range bet.Values {
					price, err := strconv.ParseFloat(v.Odd, 64)
					if err != nil || price <= 1.0 {
						continue
					}
					odds = append(odds, domain.EventOdds{
						MarketID:  marketID,
						OutcomeID: outcomeIDFor(marketID, v.Value),
						Label:     v.Value,
						Price:     price,
					})
				}
			}
			// first bookmaker with data wins
			if len(odds) > 0 {
				return odds, nil
			}
		}
	}
	return odds, nil
}

func (p *APIFootball) Results(ctx context.Context, sportID int, days int) ([]domain.RawEvent, error) {
	if sportID != SportFootball {
		return nil, nil
	}
	var events []domain.RawEvent
	now := time.Now().UTC()
	for day := 0; day < days; day++ {
		var envelope fixtureEnvelope
		query := url.Values{
			"date":   {now.AddDate(0, 0, -day).Format("2006-01-02")},
			"status": {"FT-AET-PEN"},
		}
		if err := p.get(ctx, upcomingTimeout, "/fixtures", query, &envelope); err != nil {
			p.logger.Warn("results page failed", "day", day, "error", err)
			continue
		}
		for _, f := range envelope.Response {
			events = append(events, f.toEvent())
		}
	}
	return events, nil
}

// numericID strips the fb- prefix off a football event id.
func numericID(eventID string) (string, bool) {
	const prefix = "fb-"
	if len(eventID) <= len(prefix) || eventID[:len(prefix)] != prefix {
		return "", false
	}
	raw := eventID[len(prefix):]
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		return "", false
	}
	return raw, true
}

func marketIDFor(betName string) string {
	switch betName {
	case "Match Winner":
		return "match_winner"
	case "Goals Over/Under":
		return "over_under"
	case "Both Teams Score":
		return "both_teams_score"
	case "Double Chance":
		return "double_chance"
	case "Asian Handicap", "Handicap Result":
		return "handicap"
	case "First Half Winner":
		return "first_half_winner"
	default:
		return "other"
	}
}

func outcomeIDFor(marketID, value string) string {
	if marketID == "match_winner" || marketID == "first_half_winner" {
		switch value {
		case "Home", "1":
			return "home"
		case "Away", "2":
			return "away"
		case "Draw", "X":
			return "draw"
		}
	}
	return value
}
