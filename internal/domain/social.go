package domain

import "time"

// PredictionStatus covers the social prediction lifecycle including the
// tri-state terminal outcomes that reflect payout fan-out success.
type PredictionStatus string

const (
	PredictionActive PredictionStatus = "active"

	PredictionResolvedYes        PredictionStatus = "resolved_yes"
	PredictionResolvedNo         PredictionStatus = "resolved_no"
	PredictionResolvedYesPartial PredictionStatus = "resolved_yes_partial"
	PredictionResolvedNoPartial  PredictionStatus = "resolved_no_partial"
	PredictionResolvedYesFailed  PredictionStatus = "resolved_yes_failed"
	PredictionResolvedNoFailed   PredictionStatus = "resolved_no_failed"

	PredictionExpired              PredictionStatus = "expired"
	PredictionExpiredRefunded      PredictionStatus = "expired_refunded"
	PredictionExpiredPartialRefund PredictionStatus = "expired_partial_refund"
	PredictionExpiredRefundFailed  PredictionStatus = "expired_refund_failed"
	PredictionCancelled            PredictionStatus = "cancelled"
)

// PredictionSide is a binary market side.
type PredictionSide string

const (
	SideYes PredictionSide = "yes"
	SideNo  PredictionSide = "no"
)

// SocialPrediction is a creator-defined yes/no market. Pool totals are
// monotone-increasing while active; no bets admitted after a terminal
// transition.
type SocialPrediction struct {
	ID              int64            `json:"id"`
	Creator         string           `json:"creator"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Category        string           `json:"category,omitempty"`
	EndDate         time.Time        `json:"endDate"`
	YesTotal        int64            `json:"yesTotal"`
	NoTotal         int64            `json:"noTotal"`
	Participants    int              `json:"participants"`
	Status          PredictionStatus `json:"status"`
	ResolvedOutcome *PredictionSide  `json:"resolvedOutcome,omitempty"`
	ResolvedAt      *time.Time       `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// SocialPredictionBet is one SBETS stake on a side. TxID is unique across
// the system (DB constraint is ground truth, in-memory set is fast path).
type SocialPredictionBet struct {
	ID           int64          `json:"id"`
	PredictionID int64          `json:"predictionId"`
	Wallet       string         `json:"wallet"`
	Side         PredictionSide `json:"side"`
	Amount       int64          `json:"amount"`
	TxID         string         `json:"txId"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// ChallengeStatus covers the peer-challenge lifecycle.
type ChallengeStatus string

const (
	ChallengeOpen ChallengeStatus = "open"

	ChallengeSettled        ChallengeStatus = "settled"
	ChallengeSettledPartial ChallengeStatus = "settled_partial"
	ChallengeSettledFailed  ChallengeStatus = "settled_failed"

	ChallengeExpiredRefunded      ChallengeStatus = "expired_refunded"
	ChallengeExpiredPartialRefund ChallengeStatus = "expired_partial_refund"
	ChallengeExpiredRefundFailed  ChallengeStatus = "expired_refund_failed"
)

// Terminal reports whether the challenge accepts no further writes.
func (s ChallengeStatus) Terminal() bool { return s != ChallengeOpen }

// Challenge is a creator-staked peer wager.
type Challenge struct {
	ID                  int64           `json:"id"`
	Creator             string          `json:"creator"`
	Title               string          `json:"title"`
	Description         string          `json:"description,omitempty"`
	StakeAmount         int64           `json:"stakeAmount"`
	MaxParticipants     int             `json:"maxParticipants"`
	CurrentParticipants int             `json:"currentParticipants"`
	ExpiresAt           time.Time       `json:"expiresAt"`
	Status              ChallengeStatus `json:"status"`
	WinnerSide          string          `json:"winnerSide,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// ChallengeParticipant is one joined wallet. Creator cannot self-join;
// join tx hash is unique.
type ChallengeParticipant struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challengeId"`
	Wallet      string    `json:"wallet"`
	Side        string    `json:"side,omitempty"`
	TxHash      string    `json:"txHash"`
	JoinedAt    time.Time `json:"joinedAt"`
}
