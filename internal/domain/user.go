package domain

import (
	"strings"
	"time"
)

// User is keyed by lowercased wallet address. Created on first wallet
// connect, never destroyed.
type User struct {
	Wallet         string    `json:"wallet"`
	DisplayName    string    `json:"displayName,omitempty"`
	FreeBets       int64     `json:"freeBets"`
	WelcomeClaimed bool      `json:"welcomeClaimed"`
	LoyaltyPoints  float64   `json:"loyaltyPoints"`
	TotalVolumeUSD float64   `json:"totalVolumeUsd"`
	BalanceSUI     float64   `json:"balanceSui"`
	BalanceSBETS   float64   `json:"balanceSbets"`
	BonusBalance   float64   `json:"bonusBalance"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NormalizeWallet canonicalizes a wallet address for keying.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// UserLimits holds windowed USD spend counters with lazy resets, plus
// optional caps and self-exclusion.
type UserLimits struct {
	Wallet             string     `json:"wallet"`
	DailySpent         float64    `json:"dailySpent"`
	WeeklySpent        float64    `json:"weeklySpent"`
	MonthlySpent       float64    `json:"monthlySpent"`
	LastResetDaily     time.Time  `json:"lastResetDaily"`
	LastResetWeekly    time.Time  `json:"lastResetWeekly"`
	LastResetMonthly   time.Time  `json:"lastResetMonthly"`
	DailyCap           float64    `json:"dailyCap,omitempty"`
	WeeklyCap          float64    `json:"weeklyCap,omitempty"`
	MonthlyCap         float64    `json:"monthlyCap,omitempty"`
	SelfExclusionUntil *time.Time `json:"selfExclusionUntil,omitempty"`
}

// ReferralStatus tracks the referral bonding lifecycle.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "pending"
	ReferralRewarded ReferralStatus = "rewarded"
)

// Referral binds a referred wallet to its referrer. The reward fires once,
// on the referred wallet's first bet.
type Referral struct {
	ID        int64          `json:"id"`
	Referrer  string         `json:"referrer"`
	Referred  string         `json:"referred"`
	Status    ReferralStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Deposit is a credited on-chain transfer, deduped by tx hash.
type Deposit struct {
	ID        int64     `json:"id"`
	Wallet    string    `json:"wallet"`
	Amount    float64   `json:"amount"`
	Currency  Currency  `json:"currency"`
	TxHash    string    `json:"txHash"`
	CreatedAt time.Time `json:"createdAt"`
}
