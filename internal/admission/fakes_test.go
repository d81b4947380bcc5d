package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/policy"
	"github.com/wurlus/platform/internal/repository"
)

type fakeBetRepo struct {
	bets    []domain.Bet
	lastErr error
}

func (f *fakeBetRepo) Insert(ctx context.Context, db repository.DBTX, bet *domain.Bet) error {
	f.bets = append(f.bets, *bet)
	return nil
}

func (f *fakeBetRepo) FindByID(ctx context.Context, db repository.DBTX, id string) (*domain.Bet, error) {
	for i := range f.bets {
		if f.bets[i].ID == id {
			cp := f.bets[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeBetRepo) ListByWallet(ctx context.Context, db repository.DBTX, wallet string, status *domain.BetStatus) ([]domain.Bet, error) {
	return f.bets, nil
}

func (f *fakeBetRepo) CountSince(ctx context.Context, db repository.DBTX, wallet string, since time.Time) (int, error) {
	if f.lastErr != nil {
		return 0, f.lastErr
	}
	n := 0
	for _, b := range f.bets {
		if b.Wallet == wallet && b.Status != domain.BetVoid && !b.PlacedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeBetRepo) LastPlacedAt(ctx context.Context, db repository.DBTX, wallet string) (*time.Time, error) {
	if f.lastErr != nil {
		return nil, f.lastErr
	}
	var last *time.Time
	for i := range f.bets {
		if f.bets[i].Wallet != wallet {
			continue
		}
		t := f.bets[i].PlacedAt
		if last == nil || t.After(*last) {
			last = &t
		}
	}
	return last, nil
}

func (f *fakeBetRepo) CountOnEvent(ctx context.Context, db repository.DBTX, wallet, eventID string) (int, error) {
	if f.lastErr != nil {
		return 0, f.lastErr
	}
	n := 0
	for _, b := range f.bets {
		if b.Wallet == wallet && b.EventID == eventID && b.Status != domain.BetVoid {
			n++
		}
	}
	return n, nil
}

func (f *fakeBetRepo) HasOpenDuplicate(ctx context.Context, db repository.DBTX, wallet, eventID, marketID, outcomeID string) (bool, error) {
	for _, b := range f.bets {
		if b.Wallet == wallet && b.EventID == eventID && b.MarketID == marketID &&
			b.OutcomeID == outcomeID && b.Status.Settleable() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBetRepo) HasUsedFreeBet(ctx context.Context, db repository.DBTX, wallet string) (bool, error) {
	for _, b := range f.bets {
		if b.Wallet == wallet && b.PaymentMethod == domain.PaymentFreeBet {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBetRepo) ListSettleable(ctx context.Context, db repository.DBTX) ([]domain.Bet, error) {
	return nil, nil
}

func (f *fakeBetRepo) ListSettleableByEvent(ctx context.Context, db repository.DBTX, eventID string) ([]domain.Bet, error) {
	return nil, nil
}

func (f *fakeBetRepo) UpdateStatus(ctx context.Context, db repository.DBTX, id string, from []domain.BetStatus, to domain.BetStatus, payout *float64) (bool, error) {
	return false, nil
}

func (f *fakeBetRepo) MarkPaidOut(ctx context.Context, db repository.DBTX, id, txHash string) (bool, error) {
	return false, nil
}

func (f *fakeBetRepo) ListSettledBetween(ctx context.Context, db repository.DBTX, from, to, cutoff time.Time) ([]domain.Bet, error) {
	return nil, nil
}

func (f *fakeBetRepo) SumOpenLiabilities(ctx context.Context, db repository.DBTX) (map[domain.Currency]float64, error) {
	return nil, nil
}

type fakeUserRepo struct {
	loyalty  map[string]float64
	balances map[string]float64
	freeBets map[string]int64
	bonus    map[string]float64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		loyalty:  make(map[string]float64),
		balances: make(map[string]float64),
		freeBets: make(map[string]int64),
		bonus:    make(map[string]float64),
	}
}

func (f *fakeUserRepo) GetOrCreate(ctx context.Context, db repository.DBTX, wallet string) (*domain.User, error) {
	return &domain.User{Wallet: wallet}, nil
}

func (f *fakeUserRepo) FindByWallet(ctx context.Context, db repository.DBTX, wallet string) (*domain.User, error) {
	return &domain.User{Wallet: wallet}, nil
}

func (f *fakeUserRepo) ListWallets(ctx context.Context, db repository.DBTX) ([]string, error) {
	return nil, nil
}

func (f *fakeUserRepo) CreditBalance(ctx context.Context, db repository.DBTX, wallet string, currency domain.Currency, amount float64) error {
	f.balances[wallet] += amount
	return nil
}

func (f *fakeUserRepo) DebitBalance(ctx context.Context, db repository.DBTX, wallet string, currency domain.Currency, amount float64) (bool, error) {
	if f.balances[wallet] < amount {
		return false, nil
	}
	f.balances[wallet] -= amount
	return true, nil
}

func (f *fakeUserRepo) AddLoyaltyPoints(ctx context.Context, db repository.DBTX, wallet string, points float64) error {
	f.loyalty[wallet] += points
	return nil
}

func (f *fakeUserRepo) AddVolumeUSD(ctx context.Context, db repository.DBTX, wallet string, usd float64) error {
	return nil
}

func (f *fakeUserRepo) ConsumeFreeBet(ctx context.Context, db repository.DBTX, wallet string) (bool, error) {
	if f.freeBets[wallet] <= 0 {
		return false, nil
	}
	f.freeBets[wallet]--
	return true, nil
}

func (f *fakeUserRepo) ConsumeBonus(ctx context.Context, db repository.DBTX, wallet string, max float64) (float64, error) {
	take := f.bonus[wallet]
	if take > max {
		take = max
	}
	f.bonus[wallet] -= take
	return take, nil
}

type fakeReferralRepo struct {
	pending  map[string]*domain.Referral
	rewarded map[int64]bool
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{
		pending:  make(map[string]*domain.Referral),
		rewarded: make(map[int64]bool),
	}
}

func (f *fakeReferralRepo) Insert(ctx context.Context, db repository.DBTX, ref *domain.Referral) error {
	f.pending[ref.Referred] = ref
	return nil
}

func (f *fakeReferralRepo) FindPendingByReferred(ctx context.Context, db repository.DBTX, referred string) (*domain.Referral, error) {
	ref, ok := f.pending[referred]
	if !ok || ref.Status != domain.ReferralPending {
		return nil, nil
	}
	return ref, nil
}

func (f *fakeReferralRepo) MarkRewarded(ctx context.Context, db repository.DBTX, id int64) (bool, error) {
	if f.rewarded[id] {
		return false, nil
	}
	f.rewarded[id] = true
	return true, nil
}

type fakeParlayRepo struct {
	parlays []domain.Parlay
}

func (f *fakeParlayRepo) Insert(ctx context.Context, db repository.DBTX, parlay *domain.Parlay) error {
	f.parlays = append(f.parlays, *parlay)
	return nil
}

func (f *fakeParlayRepo) FindByID(ctx context.Context, db repository.DBTX, id string) (*domain.Parlay, error) {
	return nil, nil
}

func (f *fakeParlayRepo) ListByWallet(ctx context.Context, db repository.DBTX, wallet string) ([]domain.Parlay, error) {
	return nil, nil
}

func (f *fakeParlayRepo) UpdateStatus(ctx context.Context, db repository.DBTX, id string, from []domain.BetStatus, to domain.BetStatus, payout *float64) (bool, error) {
	return false, nil
}

type fakeOutboxRepo struct {
	drafts []domain.OutboxDraft
}

func (f *fakeOutboxRepo) Insert(ctx context.Context, db repository.DBTX, draft domain.OutboxDraft) error {
	f.drafts = append(f.drafts, draft)
	return nil
}

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

type stubLookuper struct {
	lookups map[string]domain.EventLookup
}

func (s *stubLookuper) Lookup(eventID string) domain.EventLookup {
	if l, ok := s.lookups[eventID]; ok {
		return l
	}
	return domain.EventLookup{Found: false, Source: domain.SourceNone}
}

type testEnv struct {
	pipeline  *Pipeline
	bets      *fakeBetRepo
	users     *fakeUserRepo
	referrals *fakeReferralRepo
	parlays   *fakeParlayRepo
	outbox    *fakeOutboxRepo
	limits    *fakeLimitsRepo
	lookups   *stubLookuper
}

func newTestEnv() *testEnv {
	cfg := &infra.Config{
		SuiPriceUSD:     1.5,
		SbetsPriceUSD:   0.000001,
		MaxStakeSUI:     100,
		MaxStakeSBETS:   10000,
		MaxBetsPerDay:   7,
		MaxBetsPerEvent: 2,
		BetCooldownSec:  30,
	}
	logger := slog.Default()
	env := &testEnv{
		bets:      &fakeBetRepo{},
		users:     newFakeUserRepo(),
		referrals: newFakeReferralRepo(),
		parlays:   &fakeParlayRepo{},
		outbox:    &fakeOutboxRepo{},
		limits:    newFakeLimitsRepo(),
		lookups:   &stubLookuper{lookups: make(map[string]domain.EventLookup)},
	}
	env.pipeline = NewPipeline(
		cfg, nil,
		env.bets, env.parlays, env.users, env.referrals, env.outbox,
		policy.NewLimits(env.limits, nil, logger),
		env.lookups,
		infra.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	return env
}
