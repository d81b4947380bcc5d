package social

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/guard"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

// interPayoutGap paces fan-out transactions when a market has many winners.
const interPayoutGap = 3 * time.Second

// Resolver closes expired social predictions: picks the winning side, fans
// out SBETS payouts, and records a tri-state final status reflecting payout
// success. Shared between the periodic worker and the manual endpoint via
// the per-prediction guard.
type Resolver struct {
	db          repository.DBTX
	predictions repository.PredictionRepository
	executor    chain.PayoutExecutor
	guards      *guard.KeySet[int64]
	metrics     *infra.Metrics
	logger      *slog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func NewResolver(
	db repository.DBTX,
	predictions repository.PredictionRepository,
	executor chain.PayoutExecutor,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		db:          db,
		predictions: predictions,
		executor:    executor,
		guards:      guard.NewKeySet[int64](),
		metrics:     metrics,
		logger:      logger.With("component", "prediction_resolver"),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Cycle resolves every active prediction whose end date has passed.
func (r *Resolver) Cycle(ctx context.Context) {
	expired, err := r.predictions.ListExpiredActive(ctx, r.db, time.Now().UTC())
	if err != nil {
		r.logger.Error("expired predictions read failed", "error", err)
		return
	}
	for _, p := range expired {
		if err := r.Resolve(ctx, p.ID); err != nil {
			r.logger.Error("prediction resolve failed", "prediction", p.ID, "error", err)
		}
	}
}

// Resolve closes one prediction. A second concurrent call observing the
// guard returns immediately; a repeat call after completion finds the row no
// longer active and does nothing.
func (r *Resolver) Resolve(ctx context.Context, id int64) error {
	if !r.guards.Acquire(id) {
		return nil
	}
	defer r.guards.Release(id)

	p, err := r.predictions.FindByID(ctx, r.db, id)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.ErrNotFound("prediction", fmt.Sprintf("%d", id))
	}
	if p.Status != domain.PredictionActive {
		return nil
	}

	bets, err := r.predictions.ListBets(ctx, r.db, id)
	if err != nil {
		return err
	}

	var yesTotal, noTotal int64
	for _, b := range bets {
		if b.Side == domain.SideYes {
			yesTotal += b.Amount
		} else {
			noTotal += b.Amount
		}
	}
	total := yesTotal + noTotal

	// yes wins ties
	winner := domain.SideYes
	winnersTotal := yesTotal
	if noTotal > yesTotal {
		winner = domain.SideNo
		winnersTotal = noTotal
	}

	now := time.Now().UTC()
	if total == 0 || winnersTotal == 0 {
		changed, err := r.predictions.Resolve(ctx, r.db, id, domain.PredictionExpired, nil, now)
		if err != nil {
			return err
		}
		if changed {
			r.metrics.PredictionsClosed.WithLabelValues(string(domain.PredictionExpired)).Inc()
		}
		return nil
	}

	// claim the resolution before any payout so a concurrent resolver
	// cannot double-fan-out
	interim := resolvedStatus(winner, payoutAllOK)
	changed, err := r.predictions.Resolve(ctx, r.db, id, interim, &winner, now)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	outcome := r.fanOut(ctx, bets, winner, winnersTotal, total)
	final := resolvedStatus(winner, outcome)
	if final != interim {
		if err := r.predictions.SetStatus(ctx, r.db, id, final); err != nil {
			r.logger.Error("final status write failed", "prediction", id, "error", err)
		}
	}
	r.metrics.PredictionsClosed.WithLabelValues(string(final)).Inc()
	r.logger.Info("prediction resolved",
		"prediction", id, "winner", winner, "pool", total, "status", final)
	return nil
}

type payoutOutcome int

const (
	payoutAllOK payoutOutcome = iota
	payoutPartial
	payoutAllFailed
)

// fanOut pays each winner share = (amount/winnersTotal)*totalPool, spaced by
// the inter-payout gap.
func (r *Resolver) fanOut(ctx context.Context, bets []domain.SocialPredictionBet, winner domain.PredictionSide, winnersTotal, total int64) payoutOutcome {
	sent, failed := 0, 0
	for _, b := range bets {
		if b.Side != winner {
			continue
		}
		share := math.Floor(float64(b.Amount) / float64(winnersTotal) * float64(total))
		if share <= 0 {
			continue
		}
		if sent+failed > 0 {
			r.sleep(ctx, interPayoutGap)
		}
		_, err := r.executor.Send(ctx, b.Wallet, share, domain.CurrencySBETS)
		if err != nil {
			r.metrics.PayoutFailures.Inc()
			r.logger.Error("winner payout failed", "wallet", b.Wallet, "share", share, "error", err)
			failed++
			continue
		}
		r.metrics.PayoutsSent.WithLabelValues(string(domain.CurrencySBETS)).Inc()
		sent++
	}
	switch {
	case failed == 0:
		return payoutAllOK
	case sent == 0:
		return payoutAllFailed
	default:
		return payoutPartial
	}
}

func resolvedStatus(winner domain.PredictionSide, outcome payoutOutcome) domain.PredictionStatus {
	if winner == domain.SideYes {
		switch outcome {
		case payoutPartial:
			return domain.PredictionResolvedYesPartial
		case payoutAllFailed:
			return domain.PredictionResolvedYesFailed
		default:
			return domain.PredictionResolvedYes
		}
	}
	switch outcome {
	case payoutPartial:
		return domain.PredictionResolvedNoPartial
	case payoutAllFailed:
		return domain.PredictionResolvedNoFailed
	default:
		return domain.PredictionResolvedNo
	}
}
