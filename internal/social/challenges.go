package social

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/guard"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

// Settler closes peer challenges: auto-refunds expired ones and settles by
// the creator-chosen winner side. Shares the per-challenge guard between the
// periodic worker and the manual endpoint.
type Settler struct {
	db         repository.DBTX
	challenges repository.ChallengeRepository
	executor   chain.PayoutExecutor
	guards     *guard.KeySet[int64]
	metrics    *infra.Metrics
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func NewSettler(
	db repository.DBTX,
	challenges repository.ChallengeRepository,
	executor chain.PayoutExecutor,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *Settler {
	return &Settler{
		db:         db,
		challenges: challenges,
		executor:   executor,
		guards:     guard.NewKeySet[int64](),
		metrics:    metrics,
		logger:     logger.With("component", "challenge_settler"),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Cycle refunds every open challenge past its expiry.
func (s *Settler) Cycle(ctx context.Context) {
	expired, err := s.challenges.ListExpiredOpen(ctx, s.db, time.Now().UTC())
	if err != nil {
		s.logger.Error("expired challenges read failed", "error", err)
		return
	}
	for _, c := range expired {
		if err := s.Refund(ctx, c.ID); err != nil {
			s.logger.Error("challenge refund failed", "challenge", c.ID, "error", err)
		}
	}
}

// Refund returns the stake to the creator and every participant of an
// expired challenge.
func (s *Settler) Refund(ctx context.Context, id int64) error {
	if !s.guards.Acquire(id) {
		return nil
	}
	defer s.guards.Release(id)

	c, err := s.challenges.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if c == nil {
		return domain.ErrNotFound("challenge", fmt.Sprintf("%d", id))
	}
	if c.Status != domain.ChallengeOpen {
		return nil
	}

	changed, err := s.challenges.Close(ctx, s.db, id, domain.ChallengeExpiredRefunded, "")
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	participants, err := s.challenges.ListParticipants(ctx, s.db, id)
	if err != nil {
		return err
	}

	wallets := make([]string, 0, len(participants)+1)
	wallets = append(wallets, c.Creator)
	for _, p := range participants {
		wallets = append(wallets, p.Wallet)
	}

	sent, failed := s.payEach(ctx, wallets, float64(c.StakeAmount))
	final := refundStatus(sent, failed)
	if final != domain.ChallengeExpiredRefunded {
		if err := s.challenges.SetStatus(ctx, s.db, id, final); err != nil {
			s.logger.Error("final status write failed", "challenge", id, "error", err)
		}
	}
	s.metrics.ChallengesClosed.WithLabelValues(string(final)).Inc()
	s.logger.Info("challenge refunded", "challenge", id, "refunds", sent, "failures", failed)
	return nil
}

// Settle is the manual path: only the creator may settle, choosing the
// winning side. Winners split the whole pot evenly.
func (s *Settler) Settle(ctx context.Context, id int64, caller, winnerSide string) error {
	if !s.guards.Acquire(id) {
		return domain.ErrConflict(fmt.Sprintf("challenge %d is being settled", id))
	}
	defer s.guards.Release(id)

	c, err := s.challenges.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if c == nil {
		return domain.ErrNotFound("challenge", fmt.Sprintf("%d", id))
	}
	if domain.NormalizeWallet(caller) != domain.NormalizeWallet(c.Creator) {
		return domain.ErrForbidden("NOT_CREATOR", "only the creator may settle a challenge")
	}
	if c.Status != domain.ChallengeOpen {
		return domain.ErrConflict(fmt.Sprintf("challenge %d already closed", id))
	}

	changed, err := s.challenges.Close(ctx, s.db, id, domain.ChallengeSettled, winnerSide)
	if err != nil {
		return err
	}
	if !changed {
		return domain.ErrConflict(fmt.Sprintf("challenge %d already closed", id))
	}

	participants, err := s.challenges.ListParticipants(ctx, s.db, id)
	if err != nil {
		return err
	}

	var winners []string
	for _, p := range participants {
		if p.Side == winnerSide {
			winners = append(winners, p.Wallet)
		}
	}
	// the creator always backs their own challenge side
	if winnerSide == "creator" || len(winners) == 0 {
		winners = append(winners, c.Creator)
	}

	pot := float64(c.StakeAmount) * float64(len(participants)+1)
	share := pot / float64(len(winners))

	sent, failed := s.payEach(ctx, winners, share)
	final := settleStatus(sent, failed)
	if final != domain.ChallengeSettled {
		if err := s.challenges.SetStatus(ctx, s.db, id, final); err != nil {
			s.logger.Error("final status write failed", "challenge", id, "error", err)
		}
	}
	s.metrics.ChallengesClosed.WithLabelValues(string(final)).Inc()
	return nil
}

func (s *Settler) payEach(ctx context.Context, wallets []string, amount float64) (sent, failed int) {
	for i, wallet := range wallets {
		if i > 0 {
			s.sleep(ctx, interPayoutGap)
		}
		_, err := s.executor.Send(ctx, wallet, amount, domain.CurrencySBETS)
		if err != nil {
			s.metrics.PayoutFailures.Inc()
			s.logger.Error("challenge payout failed", "wallet", wallet, "amount", amount, "error", err)
			failed++
			continue
		}
		s.metrics.PayoutsSent.WithLabelValues(string(domain.CurrencySBETS)).Inc()
		sent++
	}
	return sent, failed
}

func refundStatus(sent, failed int) domain.ChallengeStatus {
	switch {
	case failed == 0:
		return domain.ChallengeExpiredRefunded
	case sent == 0:
		return domain.ChallengeExpiredRefundFailed
	default:
		return domain.ChallengeExpiredPartialRefund
	}
}

func settleStatus(sent, failed int) domain.ChallengeStatus {
	switch {
	case failed == 0:
		return domain.ChallengeSettled
	case sent == 0:
		return domain.ChallengeSettledFailed
	default:
		return domain.ChallengeSettledPartial
	}
}
