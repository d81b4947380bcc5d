package chain

import (
	"context"
	"time"

	"github.com/wurlus/platform/internal/domain"
)

// TxInfo is the verification result for an on-chain transaction.
type TxInfo struct {
	Digest    string    `json:"digest"`
	Success   bool      `json:"success"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ContractState mirrors the betting contract's treasury and liability
// counters, in token units.
type ContractState struct {
	TreasurySUI    float64 `json:"treasurySui"`
	TreasurySBETS  float64 `json:"treasurySbets"`
	LiabilitySUI   float64 `json:"liabilitySui"`
	LiabilitySBETS float64 `json:"liabilitySbets"`
	Paused         bool    `json:"paused"`
}

// PayoutExecutor submits transfers from the platform's admin wallet. A single
// signing key backs every call, so callers pace consecutive payouts.
type PayoutExecutor interface {
	// Send transfers amount (token units) of the given currency to the wallet
	// and returns the transaction digest.
	Send(ctx context.Context, to string, amount float64, currency domain.Currency) (string, error)
	// WithdrawFromTreasury moves amount from the staking treasury object to
	// the admin wallet, the first half of the two-step unstake payout.
	WithdrawFromTreasury(ctx context.Context, amount float64, currency domain.Currency) (string, error)
}

// Gateway is the full ledger capability surface: payouts plus the reads the
// workers and reconciliation need.
type Gateway interface {
	PayoutExecutor

	// VerifyTransaction fetches a transaction by digest; nil when unknown.
	VerifyTransaction(ctx context.Context, digest string) (*TxInfo, error)
	// WalletBalance reads a wallet's balance for the coin type, token units.
	WalletBalance(ctx context.Context, wallet string, currency domain.Currency) (float64, error)
	// State reads the betting contract's treasury and liability counters.
	State(ctx context.Context) (*ContractState, error)
	// TotalSupply reads the SBETS circulating supply, token units.
	TotalSupply(ctx context.Context) (float64, error)
}
