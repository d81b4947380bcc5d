package social

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/repository"
)

type memPredictionRepo struct {
	rows map[int64]*domain.SocialPrediction
	bets map[int64][]domain.SocialPredictionBet
}

func newMemPredictionRepo() *memPredictionRepo {
	return &memPredictionRepo{
		rows: make(map[int64]*domain.SocialPrediction),
		bets: make(map[int64][]domain.SocialPredictionBet),
	}
}

func (m *memPredictionRepo) Insert(ctx context.Context, db repository.DBTX, p *domain.SocialPrediction) error {
	m.rows[p.ID] = p
	return nil
}

func (m *memPredictionRepo) FindByID(ctx context.Context, db repository.DBTX, id int64) (*domain.SocialPrediction, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPredictionRepo) ListActive(ctx context.Context, db repository.DBTX) ([]domain.SocialPrediction, error) {
	return nil, nil
}

func (m *memPredictionRepo) ListExpiredActive(ctx context.Context, db repository.DBTX, now time.Time) ([]domain.SocialPrediction, error) {
	var out []domain.SocialPrediction
	for _, p := range m.rows {
		if p.Status == domain.PredictionActive && p.EndDate.Before(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPredictionRepo) AddBet(ctx context.Context, db repository.DBTX, bet *domain.SocialPredictionBet) error {
	m.bets[bet.PredictionID] = append(m.bets[bet.PredictionID], *bet)
	return nil
}

func (m *memPredictionRepo) ListBets(ctx context.Context, db repository.DBTX, predictionID int64) ([]domain.SocialPredictionBet, error) {
	return m.bets[predictionID], nil
}

func (m *memPredictionRepo) Resolve(ctx context.Context, db repository.DBTX, id int64, status domain.PredictionStatus, outcome *domain.PredictionSide, at time.Time) (bool, error) {
	p, ok := m.rows[id]
	if !ok || p.Status != domain.PredictionActive {
		return false, nil
	}
	p.Status = status
	p.ResolvedOutcome = outcome
	p.ResolvedAt = &at
	return true, nil
}

func (m *memPredictionRepo) SetStatus(ctx context.Context, db repository.DBTX, id int64, status domain.PredictionStatus) error {
	if p, ok := m.rows[id]; ok {
		p.Status = status
	}
	return nil
}

type memChallengeRepo struct {
	rows         map[int64]*domain.Challenge
	participants map[int64][]domain.ChallengeParticipant
}

func newMemChallengeRepo() *memChallengeRepo {
	return &memChallengeRepo{
		rows:         make(map[int64]*domain.Challenge),
		participants: make(map[int64][]domain.ChallengeParticipant),
	}
}

func (m *memChallengeRepo) Insert(ctx context.Context, db repository.DBTX, c *domain.Challenge) error {
	m.rows[c.ID] = c
	return nil
}

func (m *memChallengeRepo) FindByID(ctx context.Context, db repository.DBTX, id int64) (*domain.Challenge, error) {
	c, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memChallengeRepo) ListOpen(ctx context.Context, db repository.DBTX) ([]domain.Challenge, error) {
	return nil, nil
}

func (m *memChallengeRepo) ListExpiredOpen(ctx context.Context, db repository.DBTX, now time.Time) ([]domain.Challenge, error) {
	var out []domain.Challenge
	for _, c := range m.rows {
		if c.Status == domain.ChallengeOpen && c.ExpiresAt.Before(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memChallengeRepo) Join(ctx context.Context, db repository.DBTX, p *domain.ChallengeParticipant) error {
	m.participants[p.ChallengeID] = append(m.participants[p.ChallengeID], *p)
	return nil
}

func (m *memChallengeRepo) ListParticipants(ctx context.Context, db repository.DBTX, challengeID int64) ([]domain.ChallengeParticipant, error) {
	return m.participants[challengeID], nil
}

func (m *memChallengeRepo) Close(ctx context.Context, db repository.DBTX, id int64, status domain.ChallengeStatus, winnerSide string) (bool, error) {
	c, ok := m.rows[id]
	if !ok || c.Status != domain.ChallengeOpen {
		return false, nil
	}
	c.Status = status
	c.WinnerSide = winnerSide
	return true, nil
}

func (m *memChallengeRepo) SetStatus(ctx context.Context, db repository.DBTX, id int64, status domain.ChallengeStatus) error {
	if c, ok := m.rows[id]; ok {
		c.Status = status
	}
	return nil
}

type recordingExecutor struct {
	payments map[string]float64
	failFor  map[string]bool
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{payments: make(map[string]float64), failFor: make(map[string]bool)}
}

func (e *recordingExecutor) Send(ctx context.Context, to string, amount float64, currency domain.Currency) (string, error) {
	if e.failFor[to] {
		return "", errors.New("rpc down")
	}
	e.payments[to] += amount
	return "0xtx", nil
}

func (e *recordingExecutor) WithdrawFromTreasury(ctx context.Context, amount float64, currency domain.Currency) (string, error) {
	return "0xtx0", nil
}

func noSleep(ctx context.Context, d time.Duration) {}

func newTestResolver(repo *memPredictionRepo, exec *recordingExecutor) *Resolver {
	r := NewResolver(nil, repo, exec, infra.NewMetrics(prometheus.NewRegistry()), slog.Default())
	r.sleep = noSleep
	return r
}

func newTestSettler(repo *memChallengeRepo, exec *recordingExecutor) *Settler {
	s := NewSettler(nil, repo, exec, infra.NewMetrics(prometheus.NewRegistry()), slog.Default())
	s.sleep = noSleep
	return s
}

func expiredPrediction(id int64) *domain.SocialPrediction {
	return &domain.SocialPrediction{
		ID: id, Creator: "0xcre", Title: "will it rain",
		EndDate: time.Now().UTC().Add(-time.Hour),
		Status:  domain.PredictionActive,
	}
}

func TestResolve_MajorityYesWins(t *testing.T) {
	repo := newMemPredictionRepo()
	exec := newRecordingExecutor()
	repo.rows[1] = expiredPrediction(1)
	repo.bets[1] = []domain.SocialPredictionBet{
		{PredictionID: 1, Wallet: "0xw1", Side: domain.SideYes, Amount: 600},
		{PredictionID: 1, Wallet: "0xw2", Side: domain.SideYes, Amount: 400},
		{PredictionID: 1, Wallet: "0xw3", Side: domain.SideNo, Amount: 400},
	}

	require.NoError(t, newTestResolver(repo, exec).Resolve(context.Background(), 1))

	p := repo.rows[1]
	assert.Equal(t, domain.PredictionResolvedYes, p.Status)
	require.NotNil(t, p.ResolvedOutcome)
	assert.Equal(t, domain.SideYes, *p.ResolvedOutcome)
	assert.NotNil(t, p.ResolvedAt)
	// shares: (600/1000)*1400=840, (400/1000)*1400=560
	assert.Equal(t, 840.0, exec.payments["0xw1"])
	assert.Equal(t, 560.0, exec.payments["0xw2"])
	assert.Zero(t, exec.payments["0xw3"])
}

func TestResolve_YesWinsTies(t *testing.T) {
	repo := newMemPredictionRepo()
	exec := newRecordingExecutor()
	repo.rows[1] = expiredPrediction(1)
	repo.bets[1] = []domain.SocialPredictionBet{
		{PredictionID: 1, Wallet: "0xw1", Side: domain.SideYes, Amount: 500},
		{PredictionID: 1, Wallet: "0xw2", Side: domain.SideNo, Amount: 500},
	}

	require.NoError(t, newTestResolver(repo, exec).Resolve(context.Background(), 1))
	assert.Equal(t, domain.PredictionResolvedYes, repo.rows[1].Status)
	assert.Equal(t, 1000.0, exec.payments["0xw1"])
}

func TestResolve_EmptyPoolExpires(t *testing.T) {
	repo := newMemPredictionRepo()
	repo.rows[1] = expiredPrediction(1)

	require.NoError(t, newTestResolver(repo, newRecordingExecutor()).Resolve(context.Background(), 1))
	assert.Equal(t, domain.PredictionExpired, repo.rows[1].Status)
}

func TestResolve_PartialPayoutStatus(t *testing.T) {
	repo := newMemPredictionRepo()
	exec := newRecordingExecutor()
	exec.failFor["0xw2"] = true
	repo.rows[1] = expiredPrediction(1)
	repo.bets[1] = []domain.SocialPredictionBet{
		{PredictionID: 1, Wallet: "0xw1", Side: domain.SideYes, Amount: 500},
		{PredictionID: 1, Wallet: "0xw2", Side: domain.SideYes, Amount: 500},
	}

	require.NoError(t, newTestResolver(repo, exec).Resolve(context.Background(), 1))
	assert.Equal(t, domain.PredictionResolvedYesPartial, repo.rows[1].Status)
}

func TestResolve_SecondCallIsNoOp(t *testing.T) {
	repo := newMemPredictionRepo()
	exec := newRecordingExecutor()
	repo.rows[1] = expiredPrediction(1)
	repo.bets[1] = []domain.SocialPredictionBet{
		{PredictionID: 1, Wallet: "0xw1", Side: domain.SideYes, Amount: 100},
	}
	r := newTestResolver(repo, exec)

	require.NoError(t, r.Resolve(context.Background(), 1))
	require.NoError(t, r.Resolve(context.Background(), 1))
	assert.Equal(t, 100.0, exec.payments["0xw1"], "single payout fan-out")
}

func openChallenge(id int64, expired bool) *domain.Challenge {
	expiry := time.Now().UTC().Add(time.Hour)
	if expired {
		expiry = time.Now().UTC().Add(-time.Hour)
	}
	return &domain.Challenge{
		ID: id, Creator: "0xcre", Title: "beat me",
		StakeAmount: 1000, MaxParticipants: 4,
		ExpiresAt: expiry, Status: domain.ChallengeOpen,
	}
}

func TestRefund_ExpiredChallenge(t *testing.T) {
	repo := newMemChallengeRepo()
	exec := newRecordingExecutor()
	repo.rows[1] = openChallenge(1, true)
	repo.participants[1] = []domain.ChallengeParticipant{
		{ChallengeID: 1, Wallet: "0xp1"},
		{ChallengeID: 1, Wallet: "0xp2"},
	}

	s := newTestSettler(repo, exec)
	s.Cycle(context.Background())

	assert.Equal(t, domain.ChallengeExpiredRefunded, repo.rows[1].Status)
	assert.Equal(t, 1000.0, exec.payments["0xcre"])
	assert.Equal(t, 1000.0, exec.payments["0xp1"])
	assert.Equal(t, 1000.0, exec.payments["0xp2"])
}

func TestRefund_PartialFailure(t *testing.T) {
	repo := newMemChallengeRepo()
	exec := newRecordingExecutor()
	exec.failFor["0xp1"] = true
	repo.rows[1] = openChallenge(1, true)
	repo.participants[1] = []domain.ChallengeParticipant{{ChallengeID: 1, Wallet: "0xp1"}}

	require.NoError(t, newTestSettler(repo, exec).Refund(context.Background(), 1))
	assert.Equal(t, domain.ChallengeExpiredPartialRefund, repo.rows[1].Status)
}

func TestSettle_CreatorOnly(t *testing.T) {
	repo := newMemChallengeRepo()
	repo.rows[1] = openChallenge(1, false)

	err := newTestSettler(repo, newRecordingExecutor()).Settle(context.Background(), 1, "0xstranger", "creator")
	require.Error(t, err)
	assert.Equal(t, 403, err.(*domain.AppError).Status)
	assert.Equal(t, domain.ChallengeOpen, repo.rows[1].Status)
}

func TestSettle_WinnerSideSplitsPot(t *testing.T) {
	repo := newMemChallengeRepo()
	exec := newRecordingExecutor()
	repo.rows[1] = openChallenge(1, false)
	repo.participants[1] = []domain.ChallengeParticipant{
		{ChallengeID: 1, Wallet: "0xp1", Side: "challenger"},
		{ChallengeID: 1, Wallet: "0xp2", Side: "challenger"},
		{ChallengeID: 1, Wallet: "0xp3", Side: "creator"},
	}

	require.NoError(t, newTestSettler(repo, exec).Settle(context.Background(), 1, "0xcre", "challenger"))

	// pot = 1000 * 4 = 4000, split between two challengers
	assert.Equal(t, domain.ChallengeSettled, repo.rows[1].Status)
	assert.Equal(t, 2000.0, exec.payments["0xp1"])
	assert.Equal(t, 2000.0, exec.payments["0xp2"])
	assert.Zero(t, exec.payments["0xp3"])
}
