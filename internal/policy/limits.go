package policy

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

// ReferralRewardSBETS is credited to the referrer on the referred wallet's
// first bet.
const ReferralRewardSBETS = 1000

// Valuer converts token amounts to USD using the configured price constants.
type Valuer struct {
	SuiPriceUSD   float64
	SbetsPriceUSD float64
}

func NewValuer(cfg *infra.Config) Valuer {
	return Valuer{SuiPriceUSD: cfg.SuiPriceUSD, SbetsPriceUSD: cfg.SbetsPriceUSD}
}

// USD returns the dollar value of an amount in the given currency.
func (v Valuer) USD(amount float64, currency domain.Currency) float64 {
	if currency == domain.CurrencySBETS {
		return amount * v.SbetsPriceUSD
	}
	return amount * v.SuiPriceUSD
}

// LoyaltyPoints returns the points earned for a bet of the given USD value.
func LoyaltyPoints(usd float64) float64 {
	return math.Floor(usd)
}

// Limits enforces windowed USD spend caps and self-exclusion.
type Limits struct {
	repo   repository.LimitsRepository
	db     repository.DBTX
	logger *slog.Logger
}

func NewLimits(repo repository.LimitsRepository, db repository.DBTX, logger *slog.Logger) *Limits {
	return &Limits{repo: repo, db: db, logger: logger.With("component", "limits")}
}

// resetWindows lazily zeroes counters whose window has rolled over. Returns
// whether anything changed.
func resetWindows(l *domain.UserLimits, now time.Time) bool {
	changed := false
	if now.Sub(l.LastResetDaily) >= 24*time.Hour {
		l.DailySpent = 0
		l.LastResetDaily = now
		changed = true
	}
	if now.Sub(l.LastResetWeekly) >= 7*24*time.Hour {
		l.WeeklySpent = 0
		l.LastResetWeekly = now
		changed = true
	}
	if now.Sub(l.LastResetMonthly) >= 30*24*time.Hour {
		l.MonthlySpent = 0
		l.LastResetMonthly = now
		changed = true
	}
	return changed
}

// Check verifies the wallet may spend usdValue more. Self-exclusion rejects
// with 403; a breached cap rejects with the window's error code. A wallet
// with no limits row passes.
func (s *Limits) Check(ctx context.Context, wallet string, usdValue float64, now time.Time) error {
	limits, err := s.repo.Find(ctx, s.db, wallet)
	if err != nil {
		return err
	}
	if limits == nil {
		return nil
	}

	if limits.SelfExclusionUntil != nil && now.Before(*limits.SelfExclusionUntil) {
		return domain.ErrForbidden(domain.CodeSelfExcluded, "wallet is self-excluded from betting")
	}

	if resetWindows(limits, now) {
		if err := s.repo.Upsert(ctx, s.db, limits); err != nil {
			s.logger.Warn("limits window reset not persisted", "wallet", wallet, "error", err)
		}
	}

	if limits.DailyCap > 0 && limits.DailySpent+usdValue > limits.DailyCap {
		return domain.ErrForbidden(domain.CodeDailyLimitExceeded, "daily spend limit exceeded")
	}
	if limits.WeeklyCap > 0 && limits.WeeklySpent+usdValue > limits.WeeklyCap {
		return domain.ErrForbidden(domain.CodeWeeklyLimitExceeded, "weekly spend limit exceeded")
	}
	if limits.MonthlyCap > 0 && limits.MonthlySpent+usdValue > limits.MonthlyCap {
		return domain.ErrForbidden(domain.CodeMonthlyLimitExceeded, "monthly spend limit exceeded")
	}
	return nil
}

// Record bumps the windowed counters after a bet is admitted. Best-effort.
func (s *Limits) Record(ctx context.Context, wallet string, usdValue float64, now time.Time) {
	limits, err := s.repo.Find(ctx, s.db, wallet)
	if err != nil {
		s.logger.Warn("limits read failed", "wallet", wallet, "error", err)
		return
	}
	if limits == nil {
		limits = &domain.UserLimits{
			Wallet:           wallet,
			LastResetDaily:   now,
			LastResetWeekly:  now,
			LastResetMonthly: now,
		}
	} else {
		resetWindows(limits, now)
	}
	limits.DailySpent += usdValue
	limits.WeeklySpent += usdValue
	limits.MonthlySpent += usdValue
	if err := s.repo.Upsert(ctx, s.db, limits); err != nil {
		s.logger.Warn("limits write failed", "wallet", wallet, "error", err)
	}
}

// SetCaps upserts per-window caps for a wallet. Zero means no cap.
func (s *Limits) SetCaps(ctx context.Context, wallet string, daily, weekly, monthly float64, now time.Time) error {
	limits, err := s.repo.Find(ctx, s.db, wallet)
	if err != nil {
		return err
	}
	if limits == nil {
		limits = &domain.UserLimits{
			Wallet:           wallet,
			LastResetDaily:   now,
			LastResetWeekly:  now,
			LastResetMonthly: now,
		}
	}
	limits.DailyCap = daily
	limits.WeeklyCap = weekly
	limits.MonthlyCap = monthly
	return s.repo.Upsert(ctx, s.db, limits)
}

// SelfExclude blocks the wallet from betting until the given time.
func (s *Limits) SelfExclude(ctx context.Context, wallet string, until time.Time, now time.Time) error {
	limits, err := s.repo.Find(ctx, s.db, wallet)
	if err != nil {
		return err
	}
	if limits == nil {
		limits = &domain.UserLimits{
			Wallet:           wallet,
			LastResetDaily:   now,
			LastResetWeekly:  now,
			LastResetMonthly: now,
		}
	}
	limits.SelfExclusionUntil = &until
	return s.repo.Upsert(ctx, s.db, limits)
}
