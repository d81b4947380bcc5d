package domain

import "time"

// EventSource tags where a registry hit came from. The admission pipeline
// branches on this, so it is a closed set.
type EventSource string

const (
	SourceLive     EventSource = "live"
	SourceUpcoming EventSource = "upcoming"
	SourceFree     EventSource = "free"
	SourceNone     EventSource = "none"
)

// RawEvent is the provider-neutral shape of an upstream sporting event.
// Score and minute are only meaningful for live football; other sports
// arrive via the free-tier daily batch without them.
type RawEvent struct {
	ID        string      `json:"id"`
	SportID   int         `json:"sportId"`
	Sport     string      `json:"sport"`
	League    string      `json:"league,omitempty"`
	HomeTeam  string      `json:"homeTeam"`
	AwayTeam  string      `json:"awayTeam"`
	StartTime time.Time   `json:"startTime"`
	Status    string      `json:"status,omitempty"`
	Minute    int         `json:"minute,omitempty"`
	HasMinute bool        `json:"-"`
	HomeScore int         `json:"homeScore"`
	AwayScore int         `json:"awayScore"`
	HasScore  bool        `json:"-"`
	Source    EventSource `json:"-"`
	Odds      []EventOdds `json:"odds,omitempty"`
}

// EventOdds is an opaque per-outcome price for one market of an event.
type EventOdds struct {
	MarketID  string  `json:"marketId"`
	OutcomeID string  `json:"outcomeId"`
	Label     string  `json:"label"`
	Price     float64 `json:"price"`
}

// EventLookup is the registry's answer for a single event id. CacheAge is
// how stale the backing cache entry is; freshness thresholds live in the
// admission pipeline, not here.
type EventLookup struct {
	Found        bool
	Source       EventSource
	StartTime    time.Time
	Minute       int
	HasMinute    bool
	HomeScore    int
	AwayScore    int
	HasScore     bool
	HomeTeam     string
	AwayTeam     string
	ShouldBeLive bool
	CacheAge     time.Duration
}
