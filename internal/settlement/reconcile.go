package settlement

import (
	"context"
	"math"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/repository"
)

// Mismatch tolerances per currency. Below these the books are considered
// in agreement.
const (
	epsilonSUI   = 0.001
	epsilonSBETS = 1.0
)

// ReconcileReport compares on-chain liabilities against the sum of open
// potential payouts. Mismatches are reported, never auto-corrected.
type ReconcileReport struct {
	OnChainSUI    float64 `json:"onChainLiabilitySui"`
	OnChainSBETS  float64 `json:"onChainLiabilitySbets"`
	OpenSUI       float64 `json:"openPayoutsSui"`
	OpenSBETS     float64 `json:"openPayoutsSbets"`
	MismatchSUI   bool    `json:"mismatchSui"`
	MismatchSBETS bool    `json:"mismatchSbets"`
}

// Reconcile builds the liability comparison report.
func Reconcile(ctx context.Context, db repository.DBTX, bets repository.BetRepository, gateway chain.Gateway) (*ReconcileReport, error) {
	state, err := gateway.State(ctx)
	if err != nil {
		return nil, domain.ErrUpstream("contract state unavailable", err)
	}
	open, err := bets.SumOpenLiabilities(ctx, db)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		OnChainSUI:   state.LiabilitySUI,
		OnChainSBETS: state.LiabilitySBETS,
		OpenSUI:      open[domain.CurrencySUI],
		OpenSBETS:    open[domain.CurrencySBETS],
	}
	report.MismatchSUI = math.Abs(report.OnChainSUI-report.OpenSUI) > epsilonSUI
	report.MismatchSBETS = math.Abs(report.OnChainSBETS-report.OpenSBETS) > epsilonSBETS
	return report, nil
}
