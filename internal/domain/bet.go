package domain

import (
	"math"
	"time"
)

// Currency is a token denomination used for stakes and payouts.
type Currency string

const (
	CurrencySUI   Currency = "SUI"
	CurrencySBETS Currency = "SBETS"
)

// BetStatus is the bet lifecycle state.
type BetStatus string

const (
	// BetPending is the initial state for off-chain bets.
	BetPending BetStatus = "pending"
	// BetConfirmed is the initial state for wallet-signed on-chain bets.
	BetConfirmed BetStatus = "confirmed"
	BetWon       BetStatus = "won"
	BetLost      BetStatus = "lost"
	BetVoid      BetStatus = "void"
	BetPaidOut   BetStatus = "paid_out"
	BetCashedOut BetStatus = "cashed_out"
)

// Terminal reports whether no further transitions are legal from s.
func (s BetStatus) Terminal() bool {
	switch s {
	case BetLost, BetVoid, BetPaidOut, BetCashedOut:
		return true
	}
	return false
}

// Settleable reports whether the settlement worker may move the bet.
func (s BetStatus) Settleable() bool {
	return s == BetPending || s == BetConfirmed
}

// Bet is a single wager on one outcome of one event.
type Bet struct {
	ID              string     `json:"id"`
	Wallet          string     `json:"wallet"`
	EventID         string     `json:"eventId"`
	EventName       string     `json:"eventName"`
	HomeTeam        string     `json:"homeTeam"`
	AwayTeam        string     `json:"awayTeam"`
	MarketID        string     `json:"marketId"`
	OutcomeID       string     `json:"outcomeId"`
	Prediction      string     `json:"prediction"`
	Odds            float64    `json:"odds"`
	Stake           float64    `json:"stake"`
	Currency        Currency   `json:"currency"`
	PotentialPayout float64    `json:"potentialPayout"`
	Status          BetStatus  `json:"status"`
	IsLive          bool       `json:"isLive"`
	MatchMinute     int        `json:"matchMinute,omitempty"`
	PlatformFee     float64    `json:"platformFee"`
	PaymentMethod   string     `json:"paymentMethod,omitempty"`
	TxHash          string     `json:"txHash,omitempty"`
	OnChainBetID    string     `json:"onChainBetId,omitempty"`
	SettlementTx    string     `json:"settlementTx,omitempty"`
	ParlayID        string     `json:"parlayId,omitempty"`
	PlacedAt        time.Time  `json:"placedAt"`
	SettledAt       *time.Time `json:"settledAt,omitempty"`
}

// PaymentFreeBet marks bets funded by the one-time free-bet balance.
const PaymentFreeBet = "free_bet"

// Round2 rounds to 2 decimal places, the display precision for token amounts.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputePayout returns stake*odds rounded to 2 decimals.
func ComputePayout(stake, odds float64) float64 {
	return Round2(stake * odds)
}

// Parlay is an ordered selection of bet legs settled as one wager.
// Combined odds is the product of leg odds.
type Parlay struct {
	ID           string     `json:"id"`
	Wallet       string     `json:"wallet"`
	Legs         []Bet      `json:"legs"`
	CombinedOdds float64    `json:"combinedOdds"`
	Stake        float64    `json:"stake"`
	Currency     Currency   `json:"currency"`
	Payout       float64    `json:"potentialPayout"`
	Status       BetStatus  `json:"status"`
	TxHash       string     `json:"txHash,omitempty"`
	OnChainBetID string     `json:"onChainBetId,omitempty"`
	PlacedAt     time.Time  `json:"placedAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// SettledEvent records one finished match, written exactly once by the
// settlement worker. Its presence stops re-processing of the event.
type SettledEvent struct {
	EventID     string    `json:"eventId"`
	HomeTeam    string    `json:"homeTeam"`
	AwayTeam    string    `json:"awayTeam"`
	HomeScore   int       `json:"homeScore"`
	AwayScore   int       `json:"awayScore"`
	Winner      string    `json:"winner"`
	BetsSettled int       `json:"betsSettled"`
	SettledAt   time.Time `json:"settledAt"`
}
