package policy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

type fakeLimitsRepo struct {
	rows map[string]*domain.UserLimits
}

func newFakeLimitsRepo() *fakeLimitsRepo {
	return &fakeLimitsRepo{rows: make(map[string]*domain.UserLimits)}
}

func (f *fakeLimitsRepo) Find(ctx context.Context, db repository.DBTX, wallet string) (*domain.UserLimits, error) {
	row, ok := f.rows[wallet]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeLimitsRepo) Upsert(ctx context.Context, db repository.DBTX, l *domain.UserLimits) error {
	cp := *l
	f.rows[l.Wallet] = &cp
	return nil
}

func newTestLimits(repo repository.LimitsRepository) *Limits {
	return NewLimits(repo, nil, slog.Default())
}

func TestValuerUSD(t *testing.T) {
	v := NewValuer(&infra.Config{SuiPriceUSD: 1.5, SbetsPriceUSD: 0.000001})
	assert.InDelta(t, 75.0, v.USD(50, domain.CurrencySUI), 1e-9)
	assert.InDelta(t, 0.01, v.USD(10_000, domain.CurrencySBETS), 1e-9)
}

func TestLoyaltyPoints(t *testing.T) {
	assert.Equal(t, 75.0, LoyaltyPoints(75.0))
	assert.Equal(t, 0.0, LoyaltyPoints(0.9))
	assert.Equal(t, 1.0, LoyaltyPoints(1.999))
}

func TestCheck_NoLimitsRowPasses(t *testing.T) {
	s := newTestLimits(newFakeLimitsRepo())
	assert.NoError(t, s.Check(context.Background(), "0xaaa", 100, time.Now()))
}

func TestCheck_SelfExclusion(t *testing.T) {
	repo := newFakeLimitsRepo()
	until := time.Now().Add(time.Hour)
	repo.rows["0xaaa"] = &domain.UserLimits{Wallet: "0xaaa", SelfExclusionUntil: &until}
	s := newTestLimits(repo)

	err := s.Check(context.Background(), "0xaaa", 1, time.Now())
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeSelfExcluded, appErr.Code)
	assert.Equal(t, 403, appErr.Status)
}

func TestCheck_ExpiredSelfExclusionPasses(t *testing.T) {
	repo := newFakeLimitsRepo()
	until := time.Now().Add(-time.Hour)
	repo.rows["0xaaa"] = &domain.UserLimits{Wallet: "0xaaa", SelfExclusionUntil: &until}
	s := newTestLimits(repo)

	assert.NoError(t, s.Check(context.Background(), "0xaaa", 1, time.Now()))
}

func TestCheck_DailyCap(t *testing.T) {
	now := time.Now()
	repo := newFakeLimitsRepo()
	repo.rows["0xaaa"] = &domain.UserLimits{
		Wallet: "0xaaa", DailyCap: 100, DailySpent: 80,
		LastResetDaily: now, LastResetWeekly: now, LastResetMonthly: now,
	}
	s := newTestLimits(repo)

	assert.NoError(t, s.Check(context.Background(), "0xaaa", 20, now), "exactly at cap passes")

	err := s.Check(context.Background(), "0xaaa", 21, now)
	require.Error(t, err)
	assert.Equal(t, domain.CodeDailyLimitExceeded, err.(*domain.AppError).Code)
}

func TestCheck_LazyWindowReset(t *testing.T) {
	now := time.Now()
	repo := newFakeLimitsRepo()
	repo.rows["0xaaa"] = &domain.UserLimits{
		Wallet: "0xaaa", DailyCap: 100, DailySpent: 100,
		LastResetDaily:   now.Add(-25 * time.Hour),
		LastResetWeekly:  now,
		LastResetMonthly: now,
	}
	s := newTestLimits(repo)

	assert.NoError(t, s.Check(context.Background(), "0xaaa", 50, now),
		"stale daily window must reset before the cap check")
	assert.Zero(t, repo.rows["0xaaa"].DailySpent, "reset must be persisted")
}

func TestRecord_BumpsAllWindows(t *testing.T) {
	now := time.Now()
	repo := newFakeLimitsRepo()
	s := newTestLimits(repo)

	s.Record(context.Background(), "0xaaa", 25, now)
	s.Record(context.Background(), "0xaaa", 10, now)

	row := repo.rows["0xaaa"]
	require.NotNil(t, row)
	assert.InDelta(t, 35.0, row.DailySpent, 1e-9)
	assert.InDelta(t, 35.0, row.WeeklySpent, 1e-9)
	assert.InDelta(t, 35.0, row.MonthlySpent, 1e-9)
}
