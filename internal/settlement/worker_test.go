package settlement

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

type memBetRepo struct {
	bets map[string]*domain.Bet
}

func newMemBetRepo(bets ...*domain.Bet) *memBetRepo {
	m := &memBetRepo{bets: make(map[string]*domain.Bet)}
	for _, b := range bets {
		m.bets[b.ID] = b
	}
	return m
}

func (m *memBetRepo) Insert(ctx context.Context, db repository.DBTX, bet *domain.Bet) error {
	m.bets[bet.ID] = bet
	return nil
}

func (m *memBetRepo) FindByID(ctx context.Context, db repository.DBTX, id string) (*domain.Bet, error) {
	b, ok := m.bets[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memBetRepo) ListByWallet(ctx context.Context, db repository.DBTX, wallet string, status *domain.BetStatus) ([]domain.Bet, error) {
	return nil, nil
}

func (m *memBetRepo) CountSince(ctx context.Context, db repository.DBTX, wallet string, since time.Time) (int, error) {
	return 0, nil
}

func (m *memBetRepo) LastPlacedAt(ctx context.Context, db repository.DBTX, wallet string) (*time.Time, error) {
	return nil, nil
}

func (m *memBetRepo) CountOnEvent(ctx context.Context, db repository.DBTX, wallet, eventID string) (int, error) {
	return 0, nil
}

func (m *memBetRepo) HasOpenDuplicate(ctx context.Context, db repository.DBTX, wallet, eventID, marketID, outcomeID string) (bool, error) {
	return false, nil
}

func (m *memBetRepo) HasUsedFreeBet(ctx context.Context, db repository.DBTX, wallet string) (bool, error) {
	return false, nil
}

func (m *memBetRepo) ListSettleable(ctx context.Context, db repository.DBTX) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range m.bets {
		if b.Status.Settleable() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBetRepo) ListSettleableByEvent(ctx context.Context, db repository.DBTX, eventID string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range m.bets {
		if b.EventID == eventID && b.Status.Settleable() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBetRepo) UpdateStatus(ctx context.Context, db repository.DBTX, id string, from []domain.BetStatus, to domain.BetStatus, payout *float64) (bool, error) {
	b, ok := m.bets[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			if payout != nil {
				b.PotentialPayout = *payout
			}
			now := time.Now().UTC()
			b.SettledAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *memBetRepo) MarkPaidOut(ctx context.Context, db repository.DBTX, id, txHash string) (bool, error) {
	b, ok := m.bets[id]
	if !ok || b.Status != domain.BetWon {
		return false, nil
	}
	b.Status = domain.BetPaidOut
	b.SettlementTx = txHash
	return true, nil
}

func (m *memBetRepo) ListSettledBetween(ctx context.Context, db repository.DBTX, from, to, cutoff time.Time) ([]domain.Bet, error) {
	return nil, nil
}

func (m *memBetRepo) SumOpenLiabilities(ctx context.Context, db repository.DBTX) (map[domain.Currency]float64, error) {
	out := make(map[domain.Currency]float64)
	for _, b := range m.bets {
		if b.Status.Settleable() {
			out[b.Currency] += b.PotentialPayout
		}
	}
	return out, nil
}

type memUserRepo struct {
	balances  map[string]float64
	creditErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{balances: make(map[string]float64)}
}

func (m *memUserRepo) GetOrCreate(ctx context.Context, db repository.DBTX, wallet string) (*domain.User, error) {
	return &domain.User{Wallet: wallet}, nil
}

func (m *memUserRepo) FindByWallet(ctx context.Context, db repository.DBTX, wallet string) (*domain.User, error) {
	return &domain.User{Wallet: wallet}, nil
}

func (m *memUserRepo) ListWallets(ctx context.Context, db repository.DBTX) ([]string, error) {
	return nil, nil
}

func (m *memUserRepo) CreditBalance(ctx context.Context, db repository.DBTX, wallet string, currency domain.Currency, amount float64) error {
	if m.creditErr != nil {
		return m.creditErr
	}
	m.balances[wallet] += amount
	return nil
}

func (m *memUserRepo) DebitBalance(ctx context.Context, db repository.DBTX, wallet string, currency domain.Currency, amount float64) (bool, error) {
	return true, nil
}

func (m *memUserRepo) AddLoyaltyPoints(ctx context.Context, db repository.DBTX, wallet string, points float64) error {
	return nil
}

func (m *memUserRepo) AddVolumeUSD(ctx context.Context, db repository.DBTX, wallet string, usd float64) error {
	return nil
}

func (m *memUserRepo) ConsumeFreeBet(ctx context.Context, db repository.DBTX, wallet string) (bool, error) {
	return false, nil
}

func (m *memUserRepo) ConsumeBonus(ctx context.Context, db repository.DBTX, wallet string, max float64) (float64, error) {
	return 0, nil
}

type memSettledRepo struct {
	events map[string]domain.SettledEvent
}

func newMemSettledRepo() *memSettledRepo {
	return &memSettledRepo{events: make(map[string]domain.SettledEvent)}
}

func (m *memSettledRepo) Exists(ctx context.Context, db repository.DBTX, eventID string) (bool, error) {
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *memSettledRepo) Insert(ctx context.Context, db repository.DBTX, e *domain.SettledEvent) error {
	if _, ok := m.events[e.EventID]; ok {
		return domain.ErrConflict("already settled")
	}
	m.events[e.EventID] = *e
	return nil
}

func (m *memSettledRepo) ListSince(ctx context.Context, db repository.DBTX, since time.Time) ([]domain.SettledEvent, error) {
	var out []domain.SettledEvent
	for _, e := range m.events {
		out = append(out, e)
	}
	return out, nil
}

type memOutbox struct {
	drafts []domain.OutboxDraft
}

func (m *memOutbox) Insert(ctx context.Context, db repository.DBTX, draft domain.OutboxDraft) error {
	m.drafts = append(m.drafts, draft)
	return nil
}

type stubResults struct {
	events []domain.RawEvent
}

func (s *stubResults) Live(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	return nil, nil
}

func (s *stubResults) Upcoming(ctx context.Context, sportID int) ([]domain.RawEvent, error) {
	return nil, nil
}

func (s *stubResults) Odds(ctx context.Context, eventID string) ([]domain.EventOdds, error) {
	return nil, nil
}

func (s *stubResults) Results(ctx context.Context, sportID int, days int) ([]domain.RawEvent, error) {
	return s.events, nil
}

type stubExecutor struct {
	sent    []float64
	sendErr error
}

func (s *stubExecutor) Send(ctx context.Context, to string, amount float64, currency domain.Currency) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, amount)
	return "0xtx1", nil
}

func (s *stubExecutor) WithdrawFromTreasury(ctx context.Context, amount float64, currency domain.Currency) (string, error) {
	return "0xtx0", nil
}

type workerEnv struct {
	worker   *Worker
	bets     *memBetRepo
	users    *memUserRepo
	settled  *memSettledRepo
	executor *stubExecutor
	results  *stubResults
}

func newWorkerEnv(bets ...*domain.Bet) *workerEnv {
	env := &workerEnv{
		bets:     newMemBetRepo(bets...),
		users:    newMemUserRepo(),
		settled:  newMemSettledRepo(),
		executor: &stubExecutor{},
		results:  &stubResults{},
	}
	env.worker = NewWorker(
		nil, env.bets, env.users, env.settled, &memOutbox{},
		env.results, env.executor,
		infra.NewMetrics(prometheus.NewRegistry()), slog.Default(),
	)
	env.worker.sleep = func(ctx context.Context, d time.Duration) {}
	return env
}

func openBet(id string) *domain.Bet {
	return &domain.Bet{
		ID: id, Wallet: "0xaaa", EventID: "fb-2000",
		MarketID: "match_winner", OutcomeID: "home", Prediction: "Arsenal",
		Odds: 2.0, Stake: 100, Currency: domain.CurrencySBETS,
		PotentialPayout: 200, Status: domain.BetPending,
	}
}

func TestSettleEvent_WonBetCreditsNetAndPaysOut(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))

	err := env.worker.SettleEvent(context.Background(), result(2, 1))
	require.NoError(t, err)

	b := env.bets.bets["b1"]
	assert.Equal(t, domain.BetPaidOut, b.Status)
	assert.Equal(t, "0xtx1", b.SettlementTx)
	// gross 200, profit 100, fee 1, net 199
	assert.Equal(t, 199.0, env.users.balances["0xaaa"])
	assert.Equal(t, []float64{199.0}, env.executor.sent)

	se, ok := env.settled.events["fb-2000"]
	require.True(t, ok)
	assert.Equal(t, "home", se.Winner)
	assert.Equal(t, 1, se.BetsSettled)
}

func TestSettleEvent_SecondCycleIsNoOp(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))

	require.NoError(t, env.worker.SettleEvent(context.Background(), result(2, 1)))
	require.NoError(t, env.worker.SettleEvent(context.Background(), result(2, 1)))

	assert.Equal(t, 199.0, env.users.balances["0xaaa"], "no double credit")
	assert.Len(t, env.executor.sent, 1, "no double payout")
}

// racingBetRepo flips one bet to a terminal status between the list and the
// conditional update, the way a concurrent settler would.
type racingBetRepo struct {
	*memBetRepo
	racedID string
}

func (r *racingBetRepo) ListSettleableByEvent(ctx context.Context, db repository.DBTX, eventID string) ([]domain.Bet, error) {
	out, err := r.memBetRepo.ListSettleableByEvent(ctx, db, eventID)
	if b, ok := r.bets[r.racedID]; ok && b.Status.Settleable() {
		b.Status = domain.BetLost
	}
	return out, err
}

func TestSettleEvent_CountsOnlyBetsThisSettlerWon(t *testing.T) {
	bets := &racingBetRepo{memBetRepo: newMemBetRepo(openBet("b1"), openBet("b2")), racedID: "b1"}
	users := newMemUserRepo()
	settled := newMemSettledRepo()
	w := NewWorker(
		nil, bets, users, settled, &memOutbox{},
		&stubResults{}, &stubExecutor{},
		infra.NewMetrics(prometheus.NewRegistry()), slog.Default(),
	)
	w.sleep = func(ctx context.Context, d time.Duration) {}

	require.NoError(t, w.SettleEvent(context.Background(), result(2, 1)))

	se, ok := settled.events["fb-2000"]
	require.True(t, ok)
	assert.Equal(t, 1, se.BetsSettled, "the raced bet belongs to the other settler")
	assert.Equal(t, domain.BetPaidOut, bets.bets["b2"].Status)
}

func TestSettleEvent_LostBetNoCredit(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))

	require.NoError(t, env.worker.SettleEvent(context.Background(), result(0, 1)))

	assert.Equal(t, domain.BetLost, env.bets.bets["b1"].Status)
	assert.Empty(t, env.users.balances)
	assert.Empty(t, env.executor.sent)
}

func TestSettleEvent_CreditFailureRevertsToPending(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))
	env.users.creditErr = errors.New("db down")

	err := env.worker.SettleEvent(context.Background(), result(2, 1))
	require.Error(t, err)
	assert.Equal(t, domain.BetPending, env.bets.bets["b1"].Status, "reverted for retry")
	assert.Empty(t, env.executor.sent)
}

func TestSettleEvent_PayoutFailureKeepsWon(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))
	env.executor.sendErr = errors.New("rpc down")

	require.NoError(t, env.worker.SettleEvent(context.Background(), result(2, 1)))

	assert.Equal(t, domain.BetWon, env.bets.bets["b1"].Status, "kept won for manual retry")
	assert.Equal(t, 199.0, env.users.balances["0xaaa"], "credit stands")
}

func TestCycle_SettlesFromProviderResults(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))
	env.results.events = []domain.RawEvent{{
		ID: "fb-2000", HomeTeam: "Arsenal", AwayTeam: "Chelsea",
		HomeScore: 2, AwayScore: 1, HasScore: true,
	}}

	env.worker.Cycle(context.Background())
	assert.Equal(t, domain.BetPaidOut, env.bets.bets["b1"].Status)
}

func TestCycle_IgnoresUnfinishedEvents(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))

	env.worker.Cycle(context.Background())
	assert.Equal(t, domain.BetPending, env.bets.bets["b1"].Status)
}

func TestSettleBet_AdminPath(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))

	bet, err := env.worker.SettleBet(context.Background(), "b1", domain.BetWon)
	require.NoError(t, err)
	assert.Equal(t, domain.BetPaidOut, bet.Status)

	_, err = env.worker.SettleBet(context.Background(), "b1", domain.BetWon)
	require.Error(t, err, "terminal bets refuse re-settlement")
}

func TestCashOut(t *testing.T) {
	env := newWorkerEnv(openBet("b1"))

	bet, net, err := env.worker.CashOut(context.Background(), "b1", 1.5, 0.8)
	require.NoError(t, err)
	// value = 100*1.5*0.8 = 120, fee 1.2, net 118.8
	assert.Equal(t, 118.8, net)
	assert.Equal(t, domain.BetCashedOut, bet.Status)
	assert.Equal(t, 118.8, env.users.balances["0xaaa"])

	_, _, err = env.worker.CashOut(context.Background(), "b1", 1.5, 0.8)
	require.Error(t, err, "already cashed out")
}
