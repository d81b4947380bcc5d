package domain

import (
	"math"
	"time"
)

// Staking constants. Rewards accrue daily and are capped at one year's
// worth per stake.
const (
	StakingAPY       = 0.05
	StakingDailyRate = StakingAPY / 365
	StakingMinAmount = 100_000
	StakingLockDays  = 7
)

// Stake is a locked SBETS position. Accumulated is a monotone cached
// snapshot of the live reward; readers may always recompute from base
// fields.
type Stake struct {
	ID          int64      `json:"id"`
	Wallet      string     `json:"wallet"`
	Amount      int64      `json:"amount"`
	StakedAt    time.Time  `json:"stakedAt"`
	LockedUntil time.Time  `json:"lockedUntil"`
	Active      bool       `json:"active"`
	Accumulated int64      `json:"accumulated"`
	TxHash      string     `json:"txHash"`
	UnstakingAt *time.Time `json:"unstakingAt,omitempty"`
}

// LiveReward computes min(amount*dailyRate*days, amount*APY) at the given
// instant, floored to whole SBETS.
func (s *Stake) LiveReward(now time.Time) int64 {
	days := now.Sub(s.StakedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	target := float64(s.Amount) * StakingDailyRate * days
	cap := float64(s.Amount) * StakingAPY
	if target > cap {
		target = cap
	}
	return int64(math.Floor(target))
}

// Locked reports whether the stake is still inside its lock window.
func (s *Stake) Locked(now time.Time) bool {
	return now.Before(s.LockedUntil)
}
