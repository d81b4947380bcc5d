package staking

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

// treasuryPayoutGap separates the treasury withdrawal from the transfer that
// follows it; both ride the same signing key.
const treasuryPayoutGap = 2 * time.Second

// Service handles the SBETS staking lifecycle: lock, accrue, unstake, claim.
// Unstake payouts are two on-chain steps (treasury withdrawal, then transfer);
// when either fails the amount is credited to the platform balance instead so
// funds are never silently lost.
type Service struct {
	db      repository.DBTX
	stakes  repository.StakeRepository
	users   repository.UserRepository
	gateway chain.Gateway
	guards  *guard.KeySet[string]
	metrics *infra.Metrics
	logger  *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewService(
	db repository.DBTX,
	stakes repository.StakeRepository,
	users repository.UserRepository,
	gateway chain.Gateway,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:      db,
		stakes:  stakes,
		users:   users,
		gateway: gateway,
		guards:  guard.NewKeySet[string](),
		metrics: metrics,
		logger:  logger.With("component", "staking"),
		now:     func() time.Time { return time.Now().UTC() },
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Stake records a new locked position backed by the deposit tx hash.
func (s *Service) Stake(ctx context.Context, wallet string, amount int64, txHash string) (*domain.Stake, error) {
	if amount < domain.StakingMinAmount {
		return nil, domain.ErrValidation("STAKE_TOO_SMALL",
			fmt.Sprintf("minimum stake is %d SBETS", domain.StakingMinAmount))
	}
	if txHash == "" {
		return nil, domain.ErrValidation("MISSING_TX_HASH", "staking requires the deposit transaction hash")
	}

	now := s.now()
	stake := &domain.Stake{
		Wallet:      domain.NormalizeWallet(wallet),
		Amount:      amount,
		StakedAt:    now,
		LockedUntil: now.AddDate(0, 0, domain.StakingLockDays),
		Active:      true,
		TxHash:      txHash,
	}
	if err := s.stakes.Insert(ctx, s.db, stake); err != nil {
		return nil, err
	}

	s.logger.Info("stake created", "wallet", stake.Wallet, "amount", amount, "stake", stake.ID)
	return stake, nil
}

// ListForWallet returns the wallet's stakes with rewards recomputed live.
func (s *Service) ListForWallet(ctx context.Context, wallet string) ([]domain.Stake, error) {
	stakes, err := s.stakes.ListByWallet(ctx, s.db, domain.NormalizeWallet(wallet))
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range stakes {
		if !stakes[i].Active {
			continue
		}
		if live := stakes[i].LiveReward(now); live > stakes[i].Accumulated {
			stakes[i].Accumulated = live
		}
	}
	return stakes, nil
}

// Unstake deactivates a stake past its lock window and pays out principal
// plus accrued reward.
func (s *Service) Unstake(ctx context.Context, wallet string, stakeID int64) (*domain.Stake, error) {
	wallet = domain.NormalizeWallet(wallet)
	key := fmt.Sprintf("%s:%d", wallet, stakeID)
	if !s.guards.Acquire(key) {
		return nil, domain.ErrConflict("unstake already in progress")
	}
	defer s.guards.Release(key)

	stake, err := s.stakes.FindByID(ctx, s.db, stakeID)
	if err != nil {
		return nil, err
	}
	if stake == nil || stake.Wallet != wallet {
		return nil, domain.ErrNotFound("stake", fmt.Sprintf("%d", stakeID))
	}
	if !stake.Active {
		return nil, domain.ErrConflict("stake already withdrawn")
	}

	now := s.now()
	if stake.Locked(now) {
		return nil, domain.ErrValidation("STAKE_LOCKED",
			fmt.Sprintf("stake is locked until %s", stake.LockedUntil.Format(time.RFC3339)))
	}

	reward := stake.LiveReward(now)
	if stake.Accumulated > reward {
		reward = stake.Accumulated
	}

	changed, err := s.stakes.Deactivate(ctx, s.db, stakeID, now, reward)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, domain.ErrConflict("stake already withdrawn")
	}

	total := stake.Amount + reward
	s.payOut(ctx, wallet, float64(total), "unstake")

	stake.Active = false
	stake.Accumulated = reward
	stake.UnstakingAt = &now
	s.logger.Info("unstaked", "wallet", wallet, "stake", stakeID, "principal", stake.Amount, "reward", reward)
	return stake, nil
}

// ClaimRewards pays out the accrued reward of every active stake of the
// wallet and restarts their accrual clocks.
func (s *Service) ClaimRewards(ctx context.Context, wallet string) (int64, error) {
	wallet = domain.NormalizeWallet(wallet)
	key := "claim:" + wallet
	if !s.guards.Acquire(key) {
		return 0, domain.ErrConflict("claim already in progress")
	}
	defer s.guards.Release(key)

	stakes, err := s.stakes.ListByWallet(ctx, s.db, wallet)
	if err != nil {
		return 0, err
	}

	now := s.now()
	var total int64
	for _, stake := range stakes {
		if !stake.Active {
			continue
		}
		reward := stake.LiveReward(now)
		if stake.Accumulated > reward {
			reward = stake.Accumulated
		}
		if reward <= 0 {
			continue
		}
		changed, err := s.stakes.ResetAccrual(ctx, s.db, stake.ID, now)
		if err != nil {
			return 0, err
		}
		if !changed {
			continue
		}
		total += reward
	}

	if total == 0 {
		return 0, domain.ErrValidation("NOTHING_TO_CLAIM", "no rewards accrued yet")
	}

	s.payOut(ctx, wallet, float64(total), "reward claim")
	s.logger.Info("rewards claimed", "wallet", wallet, "amount", total)
	return total, nil
}

// payOut runs the two-step treasury payout; on any failure the amount lands
// on the platform balance for later withdrawal.
func (s *Service) payOut(ctx context.Context, wallet string, amount float64, kind string) {
	if _, err := s.gateway.WithdrawFromTreasury(ctx, amount, domain.CurrencySBETS); err != nil {
		s.logger.Error("treasury withdrawal failed, crediting platform balance",
			"wallet", wallet, "amount", amount, "kind", kind, "error", err)
		s.creditFallback(ctx, wallet, amount)
		return
	}

	s.sleep(ctx, treasuryPayoutGap)

	if _, err := s.gateway.Send(ctx, wallet, amount, domain.CurrencySBETS); err != nil {
		s.metrics.PayoutFailures.Inc()
		s.logger.Error("staking transfer failed, crediting platform balance",
			"wallet", wallet, "amount", amount, "kind", kind, "error", err)
		s.creditFallback(ctx, wallet, amount)
		return
	}
	s.metrics.PayoutsSent.WithLabelValues(string(domain.CurrencySBETS)).Inc()
}

func (s *Service) creditFallback(ctx context.Context, wallet string, amount float64) {
	if err := s.users.CreditBalance(ctx, s.db, wallet, domain.CurrencySBETS, amount); err != nil {
		s.logger.Error("fallback credit failed", "wallet", wallet, "amount", amount, "error", err)
	}
}
