package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/provider"
)

// Snapshot staleness bound for the upcoming view. Bets are gated by the
// tighter per-source thresholds in the admission pipeline, not here.
const upcomingSnapshotMaxAge = 10 * time.Minute

type snapshot struct {
	events    []domain.RawEvent
	timestamp time.Time
}

// Registry merges the premium and free-tier providers into a low-latency
// event lookup. Snapshots are swapped whole so readers always see a
// consistent (events, timestamp) pair.
type Registry struct {
	premium provider.SportsProvider
	free    *provider.FreeSports
	logger  *slog.Logger
	metrics *infra.Metrics

	live     atomic.Pointer[snapshot]
	upcoming atomic.Pointer[snapshot]
	group    singleflight.Group

	oddsMu sync.RWMutex
	odds   map[string][]domain.EventOdds
}

func New(premium provider.SportsProvider, free *provider.FreeSports, metrics *infra.Metrics, logger *slog.Logger) *Registry {
	r := &Registry{
		premium: premium,
		free:    free,
		logger:  logger.With("component", "registry"),
		metrics: metrics,
		odds:    make(map[string][]domain.EventOdds),
	}
	r.live.Store(&snapshot{})
	r.upcoming.Store(&snapshot{})
	return r
}

// merge concatenates batches, keeps the first occurrence of each event id,
// and sorts by start time ascending with missing times last.
func merge(batches ...[]domain.RawEvent) []domain.RawEvent {
	seen := make(map[string]bool)
	var out []domain.RawEvent
	for _, batch := range batches {
		for _, e := range batch {
			if e.ID == "" || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].StartTime, out[j].StartTime
		if ti.IsZero() {
			return false
		}
		if tj.IsZero() {
			return true
		}
		return ti.Before(tj)
	})
	return out
}

// SaveLive replaces the live snapshot.
func (r *Registry) SaveLive(events []domain.RawEvent) {
	r.live.Store(&snapshot{events: events, timestamp: time.Now().UTC()})
}

// SaveUpcoming replaces the upcoming snapshot.
func (r *Registry) SaveUpcoming(events []domain.RawEvent) {
	r.upcoming.Store(&snapshot{events: events, timestamp: time.Now().UTC()})
}

// LiveSnapshot returns the current live events and their snapshot time.
func (r *Registry) LiveSnapshot() ([]domain.RawEvent, time.Time) {
	s := r.live.Load()
	return s.events, s.timestamp
}

// UpcomingSnapshot returns the current upcoming events and their snapshot time.
func (r *Registry) UpcomingSnapshot() ([]domain.RawEvent, time.Time) {
	s := r.upcoming.Load()
	return s.events, s.timestamp
}

func filterSports(events []domain.RawEvent, sports map[int]bool) []domain.RawEvent {
	if len(sports) == 0 {
		return events
	}
	out := make([]domain.RawEvent, 0, len(events))
	for _, e := range events {
		if sports[e.SportID] {
			out = append(out, e)
		}
	}
	return out
}

// GetLive returns in-play events for the requested sports, fetching from the
// premium provider with a shared in-flight request per sport. Upstream
// failure falls back to the last snapshot.
func (r *Registry) GetLive(ctx context.Context, sports map[int]bool) []domain.RawEvent {
	var batches [][]domain.RawEvent
	failed := false
	for sportID := range sportsOrAll(sports) {
		key := fmt.Sprintf("live:%d", sportID)
		v, err, _ := r.group.Do(key, func() (any, error) {
			return r.premium.Live(ctx, sportID)
		})
		if err != nil {
			r.logger.Warn("live fetch failed", "sport", sportID, "error", err)
			failed = true
			continue
		}
		batches = append(batches, v.([]domain.RawEvent))
	}

	if failed && len(batches) == 0 {
		r.metrics.RegistryFallbacks.Inc()
		events, _ := r.LiveSnapshot()
		return filterSports(events, sports)
	}

	events := merge(batches...)
	r.SaveLive(events)
	return filterSports(events, sports)
}

// GetUpcoming returns scheduled events. The snapshot is served while fresh
// and non-empty; otherwise a refresh is attempted with the snapshot as the
// fallback, so historical data is never replaced by an empty answer.
// Started events are filtered from the view.
func (r *Registry) GetUpcoming(ctx context.Context, sports map[int]bool) []domain.RawEvent {
	now := time.Now().UTC()
	s := r.upcoming.Load()
	if len(s.events) > 0 && now.Sub(s.timestamp) < upcomingSnapshotMaxAge {
		return notStarted(filterSports(s.events, sports), now)
	}

	var batches [][]domain.RawEvent
	failed := false
	for sportID := range sportsOrAll(sports) {
		key := fmt.Sprintf("upcoming:%d", sportID)
		v, err, _ := r.group.Do(key, func() (any, error) {
			premium, err := r.premium.Upcoming(ctx, sportID)
			if err != nil {
				return nil, err
			}
			free, _ := r.free.Upcoming(ctx, sportID)
			return append(premium, free...), nil
		})
		if err != nil {
			r.logger.Warn("upcoming fetch failed", "sport", sportID, "error", err)
			failed = true
			continue
		}
		batches = append(batches, v.([]domain.RawEvent))
	}

	if failed && len(batches) == 0 {
		r.metrics.RegistryFallbacks.Inc()
		return notStarted(filterSports(s.events, sports), now)
	}

	events := merge(batches...)
	r.applyCachedOdds(events)
	if len(sports) > 0 {
		// a filtered refresh must not evict the other sports from the
		// snapshot; lookups for those events still resolve through it
		var kept []domain.RawEvent
		for _, e := range s.events {
			if !sports[e.SportID] {
				kept = append(kept, e)
			}
		}
		events = merge(events, kept)
	}
	r.SaveUpcoming(events)
	return notStarted(filterSports(events, sports), now)
}

func notStarted(events []domain.RawEvent, now time.Time) []domain.RawEvent {
	out := make([]domain.RawEvent, 0, len(events))
	for _, e := range events {
		if !e.StartTime.IsZero() && now.After(e.StartTime) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func sportsOrAll(sports map[int]bool) map[int]bool {
	if len(sports) > 0 {
		return sports
	}
	all := map[int]bool{provider.SportFootball: true}
	for sportID := range freeSportIDs {
		all[sportID] = true
	}
	return all
}

// free-tier sport ids served alongside football
var freeSportIDs = map[int]bool{2: true, 3: true, 4: true, 5: true}

// Lookup answers whether an event is known and how fresh the knowledge is.
// It reads snapshots and the free daily cache only; it never blocks on the
// network.
func (r *Registry) Lookup(eventID string) domain.EventLookup {
	now := time.Now().UTC()

	if s := r.live.Load(); true {
		for _, e := range s.events {
			if e.ID == eventID {
				return lookupFrom(e, domain.SourceLive, now.Sub(s.timestamp), now)
			}
		}
	}
	if s := r.upcoming.Load(); true {
		for _, e := range s.events {
			if e.ID == eventID {
				source := domain.SourceUpcoming
				if e.Source == domain.SourceFree {
					source = domain.SourceFree
				}
				return lookupFrom(e, source, now.Sub(s.timestamp), now)
			}
		}
	}
	for sportID := range freeSportIDs {
		events, _ := r.free.Upcoming(context.Background(), sportID)
		for _, e := range events {
			if e.ID == eventID {
				age := r.free.CacheAge(now)
				if age < 0 {
					age = 0
				}
				return lookupFrom(e, domain.SourceFree, age, now)
			}
		}
	}
	return domain.EventLookup{Found: false, Source: domain.SourceNone}
}

func lookupFrom(e domain.RawEvent, source domain.EventSource, age time.Duration, now time.Time) domain.EventLookup {
	return domain.EventLookup{
		Found:        true,
		Source:       source,
		StartTime:    e.StartTime,
		Minute:       e.Minute,
		HasMinute:    e.HasMinute,
		HomeScore:    e.HomeScore,
		AwayScore:    e.AwayScore,
		HasScore:     e.HasScore,
		HomeTeam:     e.HomeTeam,
		AwayTeam:     e.AwayTeam,
		ShouldBeLive: source != domain.SourceLive && !e.StartTime.IsZero() && now.After(e.StartTime),
		CacheAge:     age,
	}
}

func (r *Registry) applyCachedOdds(events []domain.RawEvent) {
	r.oddsMu.RLock()
	defer r.oddsMu.RUnlock()
	for i := range events {
		if cached, ok := r.odds[events[i].ID]; ok {
			events[i].Odds = cached
		}
	}
}

// CachedOdds returns the warmed odds for an event, nil if none.
func (r *Registry) CachedOdds(eventID string) []domain.EventOdds {
	r.oddsMu.RLock()
	defer r.oddsMu.RUnlock()
	return r.odds[eventID]
}

func (r *Registry) storeOdds(eventID string, odds []domain.EventOdds) {
	r.oddsMu.Lock()
	defer r.oddsMu.Unlock()
	r.odds[eventID] = odds
}
