package provider

import (
	"context"

	"github.com/wurlus/platform/internal/domain"
)

// SportsProvider is the upstream sports-data surface the registry consumes.
// Implementations own their per-call timeouts; the registry never retries.
type SportsProvider interface {
	// Live returns in-play events for a sport, with minute and score data
	// when the upstream reports them.
	Live(ctx context.Context, sportID int) ([]domain.RawEvent, error)
	// Upcoming returns scheduled events for a sport.
	Upcoming(ctx context.Context, sportID int) ([]domain.RawEvent, error)
	// Odds returns per-market prices for one event, empty when unavailable.
	Odds(ctx context.Context, eventID string) ([]domain.EventOdds, error)
	// Results returns finished events with final scores, newest first.
	Results(ctx context.Context, sportID int, days int) ([]domain.RawEvent, error)
}

// Football sport id used by the premium provider.
const SportFootball = 1
