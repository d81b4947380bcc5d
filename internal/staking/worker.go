package staking

import (
	"context"
	"log/slog"
	"time"

	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

// Accruer advances the cached reward of every active stake. The cached value
// only matters for display and audit; payouts always recompute live, so a
// missed cycle costs nothing.
type Accruer struct {
	db      repository.DBTX
	stakes  repository.StakeRepository
	metrics *infra.Metrics
	logger  *slog.Logger

	now func() time.Time
}

func NewAccruer(db repository.DBTX, stakes repository.StakeRepository, metrics *infra.Metrics, logger *slog.Logger) *Accruer {
	return &Accruer{
		db:      db,
		stakes:  stakes,
		metrics: metrics,
		logger:  logger.With("component", "stake_accruer"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Cycle writes the live reward for stakes whose cache fell behind.
func (a *Accruer) Cycle(ctx context.Context) {
	stakes, err := a.stakes.ListActive(ctx, a.db)
	if err != nil {
		a.logger.Error("active stakes read failed", "error", err)
		return
	}

	now := a.now()
	advanced := 0
	for _, stake := range stakes {
		live := stake.LiveReward(now)
		if live <= stake.Accumulated {
			continue
		}
		changed, err := a.stakes.AdvanceAccumulated(ctx, a.db, stake.ID, live)
		if err != nil {
			a.logger.Error("accrual write failed", "stake", stake.ID, "error", err)
			continue
		}
		if changed {
			a.metrics.StakesAccrued.Inc()
			advanced++
		}
	}
	if advanced > 0 {
		a.logger.Debug("stake rewards accrued", "stakes", advanced)
	}
}
