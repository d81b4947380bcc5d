package domain

import "time"

// Revenue split applied to weekly totals.
const (
	RevenueShareHolders  = 0.30
	RevenueShareTreasury = 0.40
	RevenueShareProfit   = 0.30
)

// Minimum per-currency claim thresholds. A claim below both is rejected.
const (
	MinClaimSUI   = 0.001
	MinClaimSBETS = 1.0
)

// WeekStart returns the Monday 00:00 UTC boundary at or before t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	days := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -days)
}

// WeekEnd returns the exclusive end of the ISO week that starts at weekStart.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}

// BetRevenue returns the per-currency revenue contribution of a settled bet:
// the full stake on a loss, 1% of profit on a win, zero otherwise.
func BetRevenue(status BetStatus, stake, payout float64) float64 {
	switch status {
	case BetLost:
		return stake
	case BetWon, BetPaidOut:
		profit := payout - stake
		if profit < 0 {
			profit = 0
		}
		return profit * 0.01
	}
	return 0
}

// RevenueTotals is a per-currency weekly revenue sum.
type RevenueTotals struct {
	SUI   float64 `json:"sui"`
	SBETS float64 `json:"sbets"`
}

// HoldersPool returns the 30% holders share of the weekly totals.
func (t RevenueTotals) HoldersPool() RevenueTotals {
	return RevenueTotals{
		SUI:   t.SUI * RevenueShareHolders,
		SBETS: t.SBETS * RevenueShareHolders,
	}
}

// TokenHolder is one entry of the holders snapshot.
type TokenHolder struct {
	Wallet     string  `json:"wallet"`
	Balance    float64 `json:"balance"`
	Percentage float64 `json:"percentage"`
}

// RevenueClaim records one per-wallet weekly claim. Unique on
// (wallet, week_start).
type RevenueClaim struct {
	ID          int64     `json:"id"`
	Wallet      string    `json:"wallet"`
	WeekStart   time.Time `json:"weekStart"`
	Balance     float64   `json:"holderBalance"`
	SharePct    float64   `json:"sharePercentage"`
	AmountSUI   float64   `json:"amountSui"`
	AmountSBETS float64   `json:"amountSbets"`
	TxHashSUI   string    `json:"txHashSui,omitempty"`
	TxHashSBETS string    `json:"txHashSbets,omitempty"`
	ClaimedAt   time.Time `json:"claimedAt"`
}
