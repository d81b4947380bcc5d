package registry

import (
	"context"
	"time"
)

// Odds prefetch pacing. The upstream rate-limits aggressively, so the warmer
// spaces requests and caps each pass.
const (
	prefetchGap      = 1500 * time.Millisecond
	prefetchMaxPerGo = 40
)

// PrefetchOdds warms the odds cache for premium upcoming events so the
// listing path can serve prices without blocking. Run periodically by the
// scheduler.
func (r *Registry) PrefetchOdds(ctx context.Context) {
	events, _ := r.UpcomingSnapshot()
	fetched := 0
	for _, e := range events {
		if fetched >= prefetchMaxPerGo {
			return
		}
		if r.CachedOdds(e.ID) != nil {
			continue
		}
		odds, err := r.premium.Odds(ctx, e.ID)
		if err != nil {
			r.logger.Warn("odds prefetch failed", "event", e.ID, "error", err)
			continue
		}
		if odds == nil {
			continue
		}
		r.storeOdds(e.ID, odds)
		fetched++

		select {
		case <-ctx.Done():
			return
		case <-time.After(prefetchGap):
		}
	}
}
