package staking

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

type memStakeRepo struct {
	rows   map[int64]*domain.Stake
	hashes map[string]struct{}
	nextID int64
}

func newMemStakeRepo() *memStakeRepo {
	return &memStakeRepo{rows: make(map[int64]*domain.Stake), hashes: make(map[string]struct{})}
}

func (m *memStakeRepo) Insert(ctx context.Context, db repository.DBTX, s *domain.Stake) error {
	if _, dup := m.hashes[s.TxHash]; dup {
		return domain.ErrConflict("transaction already used for a stake")
	}
	m.hashes[s.TxHash] = struct{}{}
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memStakeRepo) FindByID(ctx context.Context, db repository.DBTX, id int64) (*domain.Stake, error) {
	s, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStakeRepo) ListActive(ctx context.Context, db repository.DBTX) ([]domain.Stake, error) {
	var out []domain.Stake
	for _, s := range m.rows {
		if s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStakeRepo) ListByWallet(ctx context.Context, db repository.DBTX, wallet string) ([]domain.Stake, error) {
	var out []domain.Stake
	for _, s := range m.rows {
		if s.Wallet == wallet {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStakeRepo) AdvanceAccumulated(ctx context.Context, db repository.DBTX, id int64, value int64) (bool, error) {
	s, ok := m.rows[id]
	if !ok || !s.Active || s.Accumulated >= value {
		return false, nil
	}
	s.Accumulated = value
	return true, nil
}

func (m *memStakeRepo) Deactivate(ctx context.Context, db repository.DBTX, id int64, at time.Time, accumulated int64) (bool, error) {
	s, ok := m.rows[id]
	if !ok || !s.Active {
		return false, nil
	}
	s.Active = false
	s.UnstakingAt = &at
	s.Accumulated = accumulated
	return true, nil
}

func (m *memStakeRepo) ResetAccrual(ctx context.Context, db repository.DBTX, id int64, now time.Time) (bool, error) {
	s, ok := m.rows[id]
	if !ok || !s.Active {
		return false, nil
	}
	s.Accumulated = 0
	s.StakedAt = now
	return true, nil
}

type stubUsers struct {
	repository.UserRepository
	credits map[string]float64
}

func (s *stubUsers) CreditBalance(ctx context.Context, db repository.DBTX, wallet string, currency domain.Currency, amount float64) error {
	if s.credits == nil {
		s.credits = make(map[string]float64)
	}
	s.credits[wallet] += amount
	return nil
}

type stubChain struct {
	withdrawErr error
	sendErr     error
	withdrawals []float64
	transfers   map[string]float64
}

func (g *stubChain) Send(ctx context.Context, to string, amount float64, currency domain.Currency) (string, error) {
	if g.sendErr != nil {
		return "", g.sendErr
	}
	if g.transfers == nil {
		g.transfers = make(map[string]float64)
	}
	g.transfers[to] += amount
	return "0xtx", nil
}

func (g *stubChain) WithdrawFromTreasury(ctx context.Context, amount float64, currency domain.Currency) (string, error) {
	if g.withdrawErr != nil {
		return "", g.withdrawErr
	}
	g.withdrawals = append(g.withdrawals, amount)
	return "0xtx0", nil
}

func (g *stubChain) VerifyTransaction(ctx context.Context, digest string) (*chain.TxInfo, error) {
	return nil, nil
}

func (g *stubChain) WalletBalance(ctx context.Context, wallet string, currency domain.Currency) (float64, error) {
	return 0, nil
}

func (g *stubChain) State(ctx context.Context) (*chain.ContractState, error) {
	return &chain.ContractState{}, nil
}

func (g *stubChain) TotalSupply(ctx context.Context) (float64, error) { return 0, nil }

type stakingEnv struct {
	service *Service
	stakes  *memStakeRepo
	users   *stubUsers
	gateway *stubChain
	now     time.Time
}

func newStakingEnv(t *testing.T) *stakingEnv {
	t.Helper()
	env := &stakingEnv{
		stakes:  newMemStakeRepo(),
		users:   &stubUsers{},
		gateway: &stubChain{},
		now:     time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC),
	}
	env.service = NewService(nil, env.stakes, env.users, env.gateway,
		infra.NewMetrics(prometheus.NewRegistry()), slog.Default())
	env.service.now = func() time.Time { return env.now }
	env.service.sleep = func(ctx context.Context, d time.Duration) {}
	return env
}

func TestStake_EnforcesMinimum(t *testing.T) {
	env := newStakingEnv(t)

	_, err := env.service.Stake(context.Background(), "0xw", 99_999, "0xdep")
	require.Error(t, err)
	assert.Equal(t, "STAKE_TOO_SMALL", err.(*domain.AppError).Code)

	stake, err := env.service.Stake(context.Background(), "0xw", 100_000, "0xdep")
	require.NoError(t, err)
	assert.True(t, stake.Active)
	assert.Equal(t, env.now.AddDate(0, 0, 7), stake.LockedUntil)
}

func TestStake_RejectsReusedTxHash(t *testing.T) {
	env := newStakingEnv(t)

	_, err := env.service.Stake(context.Background(), "0xw", 100_000, "0xdep")
	require.NoError(t, err)
	_, err = env.service.Stake(context.Background(), "0xw", 100_000, "0xdep")
	require.Error(t, err)
	assert.Equal(t, 409, err.(*domain.AppError).Status)
}

func TestUnstake_RespectsLock(t *testing.T) {
	env := newStakingEnv(t)
	stake, err := env.service.Stake(context.Background(), "0xw", 100_000, "0xdep")
	require.NoError(t, err)

	_, err = env.service.Unstake(context.Background(), "0xw", stake.ID)
	require.Error(t, err)
	assert.Equal(t, "STAKE_LOCKED", err.(*domain.AppError).Code)
}

func TestUnstake_PaysPrincipalPlusReward(t *testing.T) {
	env := newStakingEnv(t)
	stake, err := env.service.Stake(context.Background(), "0xw", 1_000_000, "0xdep")
	require.NoError(t, err)

	// 30 days later: reward = floor(1_000_000 * 0.05/365 * 30) = 4109
	env.now = env.now.AddDate(0, 0, 30)

	out, err := env.service.Unstake(context.Background(), "0xw", stake.ID)
	require.NoError(t, err)
	assert.False(t, out.Active)
	assert.Equal(t, int64(4109), out.Accumulated)

	require.Len(t, env.gateway.withdrawals, 1)
	assert.Equal(t, 1_004_109.0, env.gateway.withdrawals[0])
	assert.Equal(t, 1_004_109.0, env.gateway.transfers["0xw"])
	assert.Empty(t, env.users.credits)
}

func TestUnstake_RepeatRefused(t *testing.T) {
	env := newStakingEnv(t)
	stake, err := env.service.Stake(context.Background(), "0xw", 100_000, "0xdep")
	require.NoError(t, err)
	env.now = env.now.AddDate(0, 0, 8)

	_, err = env.service.Unstake(context.Background(), "0xw", stake.ID)
	require.NoError(t, err)
	_, err = env.service.Unstake(context.Background(), "0xw", stake.ID)
	require.Error(t, err)
	assert.Equal(t, 409, err.(*domain.AppError).Status)
	require.Len(t, env.gateway.withdrawals, 1, "single payout")
}

func TestUnstake_ChainFailureCreditsBalance(t *testing.T) {
	env := newStakingEnv(t)
	stake, err := env.service.Stake(context.Background(), "0xw", 100_000, "0xdep")
	require.NoError(t, err)
	env.now = env.now.AddDate(0, 0, 8)
	env.gateway.sendErr = errors.New("rpc down")

	out, err := env.service.Unstake(context.Background(), "0xw", stake.ID)
	require.NoError(t, err)
	assert.False(t, out.Active, "unstake completes even when the payout falls back")
	assert.Equal(t, float64(100_000+out.Accumulated), env.users.credits["0xw"])
}

func TestClaimRewards_ResetsAccrualClock(t *testing.T) {
	env := newStakingEnv(t)
	_, err := env.service.Stake(context.Background(), "0xw", 1_000_000, "0xdep1")
	require.NoError(t, err)
	_, err = env.service.Stake(context.Background(), "0xw", 2_000_000, "0xdep2")
	require.NoError(t, err)

	env.now = env.now.AddDate(0, 0, 30)
	// floor(1e6*0.05/365*30) + floor(2e6*0.05/365*30) = 4109 + 8219
	total, err := env.service.ClaimRewards(context.Background(), "0xw")
	require.NoError(t, err)
	assert.Equal(t, int64(12_328), total)
	assert.Equal(t, 12_328.0, env.gateway.transfers["0xw"])

	// immediately after, nothing to claim
	_, err = env.service.ClaimRewards(context.Background(), "0xw")
	require.Error(t, err)
	assert.Equal(t, "NOTHING_TO_CLAIM", err.(*domain.AppError).Code)
}

func TestAccruer_AdvancesCache(t *testing.T) {
	env := newStakingEnv(t)
	stake, err := env.service.Stake(context.Background(), "0xw", 1_000_000, "0xdep")
	require.NoError(t, err)

	accruer := NewAccruer(nil, env.stakes, infra.NewMetrics(prometheus.NewRegistry()), slog.Default())
	later := env.now.AddDate(0, 0, 10)
	accruer.now = func() time.Time { return later }

	accruer.Cycle(context.Background())
	stored, _ := env.stakes.FindByID(context.Background(), nil, stake.ID)
	assert.Equal(t, int64(1369), stored.Accumulated) // floor(1e6*0.05/365*10)

	// second cycle at the same instant changes nothing
	accruer.Cycle(context.Background())
	stored, _ = env.stakes.FindByID(context.Background(), nil, stake.ID)
	assert.Equal(t, int64(1369), stored.Accumulated)
}

func TestRewardCapsAtOneYear(t *testing.T) {
	s := &domain.Stake{Amount: 1_000_000, StakedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reward := s.LiveReward(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(50_000), reward)
}
