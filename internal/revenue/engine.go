package revenue

import (
	"context"
	"log/slog"
	"time"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/guard"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

// interClaimPayoutGap paces the SUI and SBETS legs of a single claim.
const interClaimPayoutGap = 2 * time.Second

// Engine computes weekly revenue shares and executes holder claims. Claims
// target the last completed Monday-to-Monday UTC week; the running week keeps
// accruing until it closes.
type Engine struct {
	db       repository.DBTX
	bets     repository.BetRepository
	claims   repository.RevenueClaimRepository
	holders  *HolderSource
	executor chain.PayoutExecutor
	cutoff   time.Time
	guards   *guard.KeySet[string]
	metrics  *infra.Metrics
	logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewEngine(
	db repository.DBTX,
	bets repository.BetRepository,
	claims repository.RevenueClaimRepository,
	holders *HolderSource,
	executor chain.PayoutExecutor,
	cutoff time.Time,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		db:       db,
		bets:     bets,
		claims:   claims,
		holders:  holders,
		executor: executor,
		cutoff:   cutoff,
		guards:   guard.NewKeySet[string](),
		metrics:  metrics,
		logger:   logger.With("component", "revenue_engine"),
		now:      func() time.Time { return time.Now().UTC() },
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// ClaimWeek returns the start of the last completed week, the window claims
// pay out for.
func (e *Engine) ClaimWeek() time.Time {
	return domain.WeekStart(e.now()).AddDate(0, 0, -7)
}

// Totals sums platform revenue per currency over [weekStart, weekStart+7d).
func (e *Engine) Totals(ctx context.Context, weekStart time.Time) (domain.RevenueTotals, error) {
	bets, err := e.bets.ListSettledBetween(ctx, e.db, weekStart, domain.WeekEnd(weekStart), e.cutoff)
	if err != nil {
		return domain.RevenueTotals{}, err
	}

	var totals domain.RevenueTotals
	for _, b := range bets {
		contribution := domain.BetRevenue(b.Status, b.Stake, b.PotentialPayout)
		switch b.Currency {
		case domain.CurrencySUI:
			totals.SUI += contribution
		case domain.CurrencySBETS:
			totals.SBETS += contribution
		}
	}
	return totals, nil
}

// Stats describes one revenue week: gross totals and the 30/40/30 split.
type Stats struct {
	WeekStart    time.Time            `json:"weekStart"`
	WeekEnd      time.Time            `json:"weekEnd"`
	Totals       domain.RevenueTotals `json:"totals"`
	HoldersPool  domain.RevenueTotals `json:"holdersPool"`
	TreasuryPool domain.RevenueTotals `json:"treasuryPool"`
	ProfitPool   domain.RevenueTotals `json:"profitPool"`
}

// WeekStats returns the revenue breakdown for the week containing at.
func (e *Engine) WeekStats(ctx context.Context, at time.Time) (*Stats, error) {
	weekStart := domain.WeekStart(at)
	totals, err := e.Totals(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	return &Stats{
		WeekStart:   weekStart,
		WeekEnd:     domain.WeekEnd(weekStart),
		Totals:      totals,
		HoldersPool: totals.HoldersPool(),
		TreasuryPool: domain.RevenueTotals{
			SUI:   totals.SUI * domain.RevenueShareTreasury,
			SBETS: totals.SBETS * domain.RevenueShareTreasury,
		},
		ProfitPool: domain.RevenueTotals{
			SUI:   totals.SUI * domain.RevenueShareProfit,
			SBETS: totals.SBETS * domain.RevenueShareProfit,
		},
	}, nil
}

// Claimable describes what a wallet can claim for the last completed week.
type Claimable struct {
	WeekStart      time.Time `json:"weekStart"`
	HolderBalance  float64   `json:"holderBalance"`
	SharePct       float64   `json:"sharePercentage"`
	AmountSUI      float64   `json:"amountSui"`
	AmountSBETS    float64   `json:"amountSbets"`
	AlreadyClaimed bool      `json:"alreadyClaimed"`
}

// ClaimableFor computes the wallet's share of last week's holders pool.
func (e *Engine) ClaimableFor(ctx context.Context, wallet string) (*Claimable, error) {
	weekStart := e.ClaimWeek()

	existing, err := e.claims.Find(ctx, e.db, wallet, weekStart)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Claimable{
			WeekStart:      weekStart,
			HolderBalance:  existing.Balance,
			SharePct:       existing.SharePct,
			AmountSUI:      existing.AmountSUI,
			AmountSBETS:    existing.AmountSBETS,
			AlreadyClaimed: true,
		}, nil
	}

	balance, supply, err := e.holders.Balance(ctx, wallet)
	if err != nil {
		return nil, err
	}

	totals, err := e.Totals(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	pool := totals.HoldersPool()

	ratio := shareRatio(balance, supply)
	return &Claimable{
		WeekStart:     weekStart,
		HolderBalance: balance,
		SharePct:      ratio * 100,
		AmountSUI:     pool.SUI * ratio,
		AmountSBETS:   pool.SBETS * ratio,
	}, nil
}

// Claim pays a wallet its share of last week's holders pool. Idempotent on
// (wallet, week): a repeat claim pays nothing and returns ALREADY_CLAIMED
// together with the stored record so callers can surface the existing tx
// hashes. The SUI and SBETS legs are independent; a leg that fails leaves its
// tx hash empty for operator follow-up.
func (e *Engine) Claim(ctx context.Context, wallet string) (*domain.RevenueClaim, error) {
	wallet = domain.NormalizeWallet(wallet)
	if !e.guards.Acquire(wallet) {
		return nil, domain.ErrConflict("claim already in progress for this wallet")
	}
	defer e.guards.Release(wallet)

	claimable, err := e.ClaimableFor(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if claimable.AlreadyClaimed {
		existing, ferr := e.claims.Find(ctx, e.db, wallet, claimable.WeekStart)
		if ferr != nil {
			return nil, ferr
		}
		return existing, domain.ErrValidation("ALREADY_CLAIMED", "revenue already claimed for this week")
	}
	if claimable.HolderBalance <= 0 {
		return nil, domain.ErrValidation("NOT_A_HOLDER", "wallet holds no SBETS")
	}
	if claimable.AmountSUI < domain.MinClaimSUI && claimable.AmountSBETS < domain.MinClaimSBETS {
		return nil, domain.ErrValidation("CLAIM_TOO_SMALL", "claimable amount is below the minimum")
	}

	claim := &domain.RevenueClaim{
		Wallet:      wallet,
		WeekStart:   claimable.WeekStart,
		Balance:     claimable.HolderBalance,
		SharePct:    claimable.SharePct,
		AmountSUI:   claimable.AmountSUI,
		AmountSBETS: claimable.AmountSBETS,
		ClaimedAt:   e.now(),
	}
	// the unique index is the real idempotence barrier; a lost race here
	// surfaces as a 409 before any payout leaves
	if err := e.claims.Insert(ctx, e.db, claim); err != nil {
		return nil, err
	}

	paid := 0
	if claim.AmountSUI >= domain.MinClaimSUI {
		tx, err := e.executor.Send(ctx, wallet, claim.AmountSUI, domain.CurrencySUI)
		if err != nil {
			e.metrics.PayoutFailures.Inc()
			e.logger.Error("revenue SUI payout failed", "wallet", wallet, "amount", claim.AmountSUI, "error", err)
		} else {
			claim.TxHashSUI = tx
			e.metrics.PayoutsSent.WithLabelValues(string(domain.CurrencySUI)).Inc()
			paid++
		}
	}
	if claim.AmountSBETS >= domain.MinClaimSBETS {
		if paid > 0 {
			e.sleep(ctx, interClaimPayoutGap)
		}
		tx, err := e.executor.Send(ctx, wallet, claim.AmountSBETS, domain.CurrencySBETS)
		if err != nil {
			e.metrics.PayoutFailures.Inc()
			e.logger.Error("revenue SBETS payout failed", "wallet", wallet, "amount", claim.AmountSBETS, "error", err)
		} else {
			claim.TxHashSBETS = tx
			e.metrics.PayoutsSent.WithLabelValues(string(domain.CurrencySBETS)).Inc()
		}
	}

	if err := e.claims.SetTxHashes(ctx, e.db, claim.ID, claim.TxHashSUI, claim.TxHashSBETS); err != nil {
		e.logger.Error("claim tx hash write failed", "claim", claim.ID, "error", err)
	}

	e.metrics.RevenueClaims.Inc()
	e.logger.Info("revenue claimed",
		"wallet", wallet, "week", claim.WeekStart.Format("2006-01-02"),
		"sui", claim.AmountSUI, "sbets", claim.AmountSBETS)
	return claim, nil
}

// shareRatio caps the holder's fraction of supply at 1.
func shareRatio(balance, supply float64) float64 {
	if supply <= 0 || balance <= 0 {
		return 0
	}
	ratio := balance / supply
	if ratio > 1 {
		return 1
	}
	return ratio
}
