package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wurlus/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// BetRepository provides access to bets. Status transitions go through
// UpdateStatus, a compare-and-set on the prior status: callers depend on the
// changed-row report for idempotence.
type BetRepository interface {
	Insert(ctx context.Context, db DBTX, bet *domain.Bet) error
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Bet, error)
	ListByWallet(ctx context.Context, db DBTX, wallet string, status *domain.BetStatus) ([]domain.Bet, error)

	// CountSince counts non-voided bets placed by wallet since the given time.
	CountSince(ctx context.Context, db DBTX, wallet string, since time.Time) (int, error)
	// LastPlacedAt returns the most recent bet time for the wallet, nil if none.
	LastPlacedAt(ctx context.Context, db DBTX, wallet string) (*time.Time, error)
	// CountOnEvent counts non-voided bets by wallet on one event.
	CountOnEvent(ctx context.Context, db DBTX, wallet, eventID string) (int, error)
	// HasOpenDuplicate reports a pending/confirmed bet with identical
	// wallet+event+market+outcome.
	HasOpenDuplicate(ctx context.Context, db DBTX, wallet, eventID, marketID, outcomeID string) (bool, error)
	// HasUsedFreeBet reports whether any past bet of the wallet was funded by
	// the free-bet balance.
	HasUsedFreeBet(ctx context.Context, db DBTX, wallet string) (bool, error)

	// ListSettleable returns all pending/confirmed bets.
	ListSettleable(ctx context.Context, db DBTX) ([]domain.Bet, error)
	// ListSettleableByEvent returns pending/confirmed bets for one event.
	ListSettleableByEvent(ctx context.Context, db DBTX, eventID string) ([]domain.Bet, error)

	// UpdateStatus conditionally transitions a bet. Returns whether a row
	// changed; zero rows means another settler already moved the bet.
	UpdateStatus(ctx context.Context, db DBTX, id string, from []domain.BetStatus, to domain.BetStatus, payout *float64) (bool, error)
	// MarkPaidOut flips won→paid_out and records the settlement tx hash.
	MarkPaidOut(ctx context.Context, db DBTX, id, txHash string) (bool, error)

	// ListSettledBetween returns bets settled in [from, to) on or after cutoff,
	// for revenue accrual.
	ListSettledBetween(ctx context.Context, db DBTX, from, to, cutoff time.Time) ([]domain.Bet, error)
	// SumOpenLiabilities sums potential payouts of pending/confirmed bets per currency.
	SumOpenLiabilities(ctx context.Context, db DBTX) (map[domain.Currency]float64, error)
}

// ParlayRepository provides access to parlays.
type ParlayRepository interface {
	Insert(ctx context.Context, db DBTX, parlay *domain.Parlay) error
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Parlay, error)
	ListByWallet(ctx context.Context, db DBTX, wallet string) ([]domain.Parlay, error)
	UpdateStatus(ctx context.Context, db DBTX, id string, from []domain.BetStatus, to domain.BetStatus, payout *float64) (bool, error)
}

// UserRepository provides access to users keyed by lowercased wallet.
type UserRepository interface {
	GetOrCreate(ctx context.Context, db DBTX, wallet string) (*domain.User, error)
	FindByWallet(ctx context.Context, db DBTX, wallet string) (*domain.User, error)
	ListWallets(ctx context.Context, db DBTX) ([]string, error)

	// CreditBalance adds amount to the platform balance in the given currency.
	CreditBalance(ctx context.Context, db DBTX, wallet string, currency domain.Currency, amount float64) error
	// DebitBalance subtracts amount if the balance covers it; reports whether it did.
	DebitBalance(ctx context.Context, db DBTX, wallet string, currency domain.Currency, amount float64) (bool, error)
	AddLoyaltyPoints(ctx context.Context, db DBTX, wallet string, points float64) error
	AddVolumeUSD(ctx context.Context, db DBTX, wallet string, usd float64) error
	// ConsumeFreeBet decrements the free-bet balance if positive; reports whether it did.
	ConsumeFreeBet(ctx context.Context, db DBTX, wallet string) (bool, error)
	// ConsumeBonus deducts up to max from the promotion bonus, returning the
	// consumed amount.
	ConsumeBonus(ctx context.Context, db DBTX, wallet string, max float64) (float64, error)
}

// LimitsRepository provides access to user_limits.
type LimitsRepository interface {
	// Find returns the limits row, or nil if the wallet has none.
	Find(ctx context.Context, db DBTX, wallet string) (*domain.UserLimits, error)
	Upsert(ctx context.Context, db DBTX, limits *domain.UserLimits) error
}

// ReferralRepository provides access to referrals.
type ReferralRepository interface {
	Insert(ctx context.Context, db DBTX, referral *domain.Referral) error
	// FindPendingByReferred returns the pending referral for a referred wallet, nil if none.
	FindPendingByReferred(ctx context.Context, db DBTX, referred string) (*domain.Referral, error)
	// MarkRewarded flips pending→rewarded. Returns whether a row changed.
	MarkRewarded(ctx context.Context, db DBTX, id int64) (bool, error)
}

// DepositRepository provides the tx-hash-deduped deposit log.
type DepositRepository interface {
	// Insert records a deposit; returns domain.ErrConflict on a reused tx hash.
	Insert(ctx context.Context, db DBTX, deposit *domain.Deposit) error
	Exists(ctx context.Context, db DBTX, txHash string) (bool, error)
}

// SettledEventRepository provides access to settled_events, written exactly
// once per event by the settlement worker.
type SettledEventRepository interface {
	Exists(ctx context.Context, db DBTX, eventID string) (bool, error)
	Insert(ctx context.Context, db DBTX, event *domain.SettledEvent) error
	ListSince(ctx context.Context, db DBTX, since time.Time) ([]domain.SettledEvent, error)
}

// PredictionRepository provides access to social predictions and their bets.
type PredictionRepository interface {
	Insert(ctx context.Context, db DBTX, p *domain.SocialPrediction) error
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.SocialPrediction, error)
	ListActive(ctx context.Context, db DBTX) ([]domain.SocialPrediction, error)
	// ListExpiredActive returns active predictions whose end date has passed.
	ListExpiredActive(ctx context.Context, db DBTX, now time.Time) ([]domain.SocialPrediction, error)

	// AddBet inserts a bet and bumps the pool totals, only while the
	// prediction is active. Returns domain.ErrConflict on a reused tx id.
	AddBet(ctx context.Context, db DBTX, bet *domain.SocialPredictionBet) error
	ListBets(ctx context.Context, db DBTX, predictionID int64) ([]domain.SocialPredictionBet, error)

	// Resolve conditionally moves active→status with outcome and timestamp.
	// Returns whether a row changed.
	Resolve(ctx context.Context, db DBTX, id int64, status domain.PredictionStatus, outcome *domain.PredictionSide, at time.Time) (bool, error)
	// SetStatus records the final tri-state status after payout fan-out.
	SetStatus(ctx context.Context, db DBTX, id int64, status domain.PredictionStatus) error
}

// ChallengeRepository provides access to challenges and participants.
type ChallengeRepository interface {
	Insert(ctx context.Context, db DBTX, c *domain.Challenge) error
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.Challenge, error)
	ListOpen(ctx context.Context, db DBTX) ([]domain.Challenge, error)
	// ListExpiredOpen returns open challenges past their expiry.
	ListExpiredOpen(ctx context.Context, db DBTX, now time.Time) ([]domain.Challenge, error)

	// Join inserts a participant and bumps the count, only while open and
	// under max. Returns domain.ErrConflict on a reused tx hash.
	Join(ctx context.Context, db DBTX, p *domain.ChallengeParticipant) error
	ListParticipants(ctx context.Context, db DBTX, challengeID int64) ([]domain.ChallengeParticipant, error)

	// Close conditionally moves open→status. Returns whether a row changed.
	Close(ctx context.Context, db DBTX, id int64, status domain.ChallengeStatus, winnerSide string) (bool, error)
	// SetStatus records the final tri-state status after payout fan-out.
	SetStatus(ctx context.Context, db DBTX, id int64, status domain.ChallengeStatus) error
}

// StakeRepository provides access to wurlus_staking.
type StakeRepository interface {
	// Insert records a stake; returns domain.ErrConflict on a reused tx hash.
	Insert(ctx context.Context, db DBTX, s *domain.Stake) error
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.Stake, error)
	ListActive(ctx context.Context, db DBTX) ([]domain.Stake, error)
	ListByWallet(ctx context.Context, db DBTX, wallet string) ([]domain.Stake, error)

	// AdvanceAccumulated raises the cached reward to value only if it grew.
	AdvanceAccumulated(ctx context.Context, db DBTX, id int64, value int64) (bool, error)
	// Deactivate conditionally flips active→inactive, recording the unstake
	// time and final accrual. Returns whether a row changed.
	Deactivate(ctx context.Context, db DBTX, id int64, at time.Time, accumulated int64) (bool, error)
	// ResetAccrual zeroes the reward and restarts accrual at now, only while
	// active. Returns whether a row changed.
	ResetAccrual(ctx context.Context, db DBTX, id int64, now time.Time) (bool, error)
}

// RevenueClaimRepository provides access to revenue_claims, unique on
// (wallet, week_start).
type RevenueClaimRepository interface {
	// Insert records a claim; returns domain.ErrConflict if the wallet already
	// claimed this week.
	Insert(ctx context.Context, db DBTX, claim *domain.RevenueClaim) error
	Find(ctx context.Context, db DBTX, wallet string, weekStart time.Time) (*domain.RevenueClaim, error)
	// SetTxHashes records best-known payout tx hashes after the fan-out.
	SetTxHashes(ctx context.Context, db DBTX, id int64, txSUI, txSBETS string) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event, typically inside the same transaction as
	// the state change it announces.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error
}
