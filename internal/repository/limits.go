package repository

import (
	"context"

	"github.com/wurlus/platform/internal/domain"
)

type limitsRepo struct{}

// NewLimitsRepository returns a pgx-backed LimitsRepository.
func NewLimitsRepository() LimitsRepository {
	return &limitsRepo{}
}

func (r *limitsRepo) Find(ctx context.Context, db DBTX, wallet string) (*domain.UserLimits, error) {
	var l domain.UserLimits
	var dailyCap, weeklyCap, monthlyCap *float64
	err := db.QueryRow(ctx, `
		SELECT wallet_address, daily_spent, weekly_spent, monthly_spent,
		       last_reset_daily, last_reset_weekly, last_reset_monthly,
		       daily_cap, weekly_cap, monthly_cap, self_exclusion_until
		FROM user_limits WHERE wallet_address = $1`,
		domain.NormalizeWallet(wallet)).Scan(
		&l.Wallet, &l.DailySpent, &l.WeeklySpent, &l.MonthlySpent,
		&l.LastResetDaily, &l.LastResetWeekly, &l.LastResetMonthly,
		&dailyCap, &weeklyCap, &monthlyCap, &l.SelfExclusionUntil,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if dailyCap != nil {
		l.DailyCap = *dailyCap
	}
	if weeklyCap != nil {
		l.WeeklyCap = *weeklyCap
	}
	if monthlyCap != nil {
		l.MonthlyCap = *monthlyCap
	}
	return &l, nil
}

func (r *limitsRepo) Upsert(ctx context.Context, db DBTX, l *domain.UserLimits) error {
	_, err := db.Exec(ctx, `
		INSERT INTO user_limits
			(wallet_address, daily_spent, weekly_spent, monthly_spent,
			 last_reset_daily, last_reset_weekly, last_reset_monthly,
			 daily_cap, weekly_cap, monthly_cap, self_exclusion_until)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,0),NULLIF($9,0),NULLIF($10,0),$11)
		ON CONFLICT (wallet_address) DO UPDATE SET
			daily_spent = EXCLUDED.daily_spent,
			weekly_spent = EXCLUDED.weekly_spent,
			monthly_spent = EXCLUDED.monthly_spent,
			last_reset_daily = EXCLUDED.last_reset_daily,
			last_reset_weekly = EXCLUDED.last_reset_weekly,
			last_reset_monthly = EXCLUDED.last_reset_monthly,
			daily_cap = EXCLUDED.daily_cap,
			weekly_cap = EXCLUDED.weekly_cap,
			monthly_cap = EXCLUDED.monthly_cap,
			self_exclusion_until = EXCLUDED.self_exclusion_until`,
		domain.NormalizeWallet(l.Wallet), l.DailySpent, l.WeeklySpent, l.MonthlySpent,
		l.LastResetDaily, l.LastResetWeekly, l.LastResetMonthly,
		l.DailyCap, l.WeeklyCap, l.MonthlyCap, l.SelfExclusionUntil,
	)
	return err
}
