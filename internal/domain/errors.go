package domain

import "fmt"

// AppError is the base domain error type. Code is a stable machine-readable
// string surfaced to API callers; Status maps to the HTTP status code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Status: 400}
}

func ErrForbidden(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Status: 403}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrRateLimited(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

func ErrUpstream(msg string, cause error) *AppError {
	return &AppError{Code: "UPSTREAM_UNAVAILABLE", Message: msg, Status: 503, Cause: cause}
}

// Admission pipeline rejection codes (input validation, 400).
const (
	CodeMissingEventID        = "MISSING_EVENT_ID"
	CodeInvalidEvent          = "INVALID_EVENT"
	CodeInvalidTeams          = "INVALID_TEAMS"
	CodeInvalidParlayEvent    = "INVALID_PARLAY_EVENT"
	CodeDuplicateEventParlay  = "DUPLICATE_EVENT_IN_PARLAY"
	CodeMaxStakeExceeded      = "MAX_STAKE_EXCEEDED"
	CodeSuiBettingPaused      = "SUI_BETTING_PAUSED"
	CodeFreeBetAlreadyUsed    = "FREE_BET_ALREADY_USED"
)

// Policy / anti-exploit codes.
const (
	CodeWalletBlocked       = "WALLET_BLOCKED"        // 403
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"   // 429
	CodeBetCooldown         = "BET_COOLDOWN"          // 429
	CodeEventBetLimit       = "EVENT_BET_LIMIT"       // 400
	CodeDuplicateBet        = "DUPLICATE_BET"         // 400
	CodeSuspiciousOdds      = "SUSPICIOUS_ODDS_DETECTED"
)

// Event freshness codes (fail-closed, 400).
const (
	CodeEventNotFound         = "EVENT_NOT_FOUND"
	CodeStaleEventData        = "STALE_EVENT_DATA"
	CodeEventStatusUncertain  = "EVENT_STATUS_UNCERTAIN"
	CodeUnverifiableMatchTime = "UNVERIFIABLE_MATCH_TIME"
	CodeMatchCutoff           = "MATCH_CUTOFF"
	CodeMatchStarted          = "MATCH_STARTED"
	CodeMarketClosedLive      = "MARKET_CLOSED_LIVE"
	CodeMarketClosedHalfTime  = "MARKET_CLOSED_HALF_TIME"
)

// Limit codes.
const (
	CodeSelfExcluded        = "SELF_EXCLUDED"          // 403
	CodeDailyLimitExceeded  = "DAILY_LIMIT_EXCEEDED"   // 403
	CodeWeeklyLimitExceeded = "WEEKLY_LIMIT_EXCEEDED"  // 403
	CodeMonthlyLimitExceeded = "MONTHLY_LIMIT_EXCEEDED" // 403
)
