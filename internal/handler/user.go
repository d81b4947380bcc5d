package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/policy"
	"github.com/wurlus/platform/internal/repository"
)

// UserHandler serves wallet-scoped account endpoints.
type UserHandler struct {
	db        repository.DBTX
	users     repository.UserRepository
	deposits  repository.DepositRepository
	referrals repository.ReferralRepository
	limits    *policy.Limits
	gateway   chain.Gateway
	logger    *slog.Logger
}

func NewUserHandler(
	db repository.DBTX,
	users repository.UserRepository,
	deposits repository.DepositRepository,
	referrals repository.ReferralRepository,
	limits *policy.Limits,
	gateway chain.Gateway,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		db: db, users: users, deposits: deposits, referrals: referrals,
		limits: limits, gateway: gateway,
		logger: logger.With("component", "user_handler"),
	}
}

// Balance handles GET /api/user/balance?wallet=0x...
// On-chain reads are best effort; the platform side always answers.
func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	wallet := walletParam(r)
	if wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet query parameter is required"))
		return
	}

	user, err := h.users.GetOrCreate(r.Context(), h.db, wallet)
	if err != nil {
		RespondError(w, err)
		return
	}

	onChainVerified := true
	onChainSUI, err := h.gateway.WalletBalance(r.Context(), wallet, domain.CurrencySUI)
	if err != nil {
		h.logger.Warn("on-chain SUI balance read failed", "wallet", wallet, "error", err)
		onChainVerified = false
	}
	onChainSBETS, err := h.gateway.WalletBalance(r.Context(), wallet, domain.CurrencySBETS)
	if err != nil {
		h.logger.Warn("on-chain SBETS balance read failed", "wallet", wallet, "error", err)
		onChainVerified = false
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":          wallet,
		"onChainVerified": onChainVerified,
		"onChain": map[string]float64{
			"sui":   onChainSUI,
			"sbets": onChainSBETS,
		},
		"platform": map[string]float64{
			"sui":   user.BalanceSUI,
			"sbets": user.BalanceSBETS,
		},
		"bonusBalance":  user.BonusBalance,
		"freeBets":      user.FreeBets,
		"loyaltyPoints": user.LoyaltyPoints,
	})
}

// Deposit handles POST /api/user/deposit. Deduped by tx hash; the unique
// index is the ground truth, so a replayed hash comes back 409 before any
// credit happens.
func (h *UserHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet           string          `json:"wallet"`
		Amount           float64         `json:"amount"`
		TxHash           string          `json:"txHash"`
		Currency         domain.Currency `json:"currency"`
		SkipVerification bool            `json:"skipVerification,omitempty"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	wallet := domain.NormalizeWallet(input.Wallet)
	if wallet == "" || input.TxHash == "" {
		RespondError(w, domain.ErrValidation("MISSING_FIELDS", "wallet and txHash are required"))
		return
	}
	if input.Amount <= 0 {
		RespondError(w, domain.ErrValidation("INVALID_AMOUNT", "amount must be positive"))
		return
	}
	if input.Currency != domain.CurrencySUI && input.Currency != domain.CurrencySBETS {
		RespondError(w, domain.ErrValidation("INVALID_CURRENCY", "currency must be SUI or SBETS"))
		return
	}

	if !input.SkipVerification {
		info, err := h.gateway.VerifyTransaction(r.Context(), input.TxHash)
		if err != nil {
			RespondError(w, domain.ErrUpstream("transaction verification unavailable", err))
			return
		}
		if info == nil || !info.Success {
			RespondError(w, domain.ErrValidation("UNCONFIRMED_TX", "transaction is not confirmed on chain"))
			return
		}
	}

	if _, err := h.users.GetOrCreate(r.Context(), h.db, wallet); err != nil {
		RespondError(w, err)
		return
	}

	deposit := &domain.Deposit{
		Wallet:   wallet,
		Amount:   input.Amount,
		Currency: input.Currency,
		TxHash:   input.TxHash,
	}
	if err := h.deposits.Insert(r.Context(), h.db, deposit); err != nil {
		if appErr, ok := err.(*domain.AppError); ok && appErr.Status == http.StatusConflict {
			RespondJSON(w, http.StatusConflict, map[string]interface{}{
				"code":      appErr.Code,
				"message":   "deposit already credited for this transaction",
				"duplicate": true,
			})
			return
		}
		RespondError(w, err)
		return
	}

	if err := h.users.CreditBalance(r.Context(), h.db, wallet, input.Currency, input.Amount); err != nil {
		RespondError(w, err)
		return
	}

	h.logger.Info("deposit credited", "wallet", wallet, "amount", input.Amount, "currency", input.Currency)
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"deposit": deposit,
		"status":  "credited",
	})
}

// Withdraw handles POST /api/user/withdraw. Debits the platform balance
// first; the on-chain transfer either completes now or leaves the request
// pending for the payout queue.
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet         string          `json:"wallet"`
		Amount         float64         `json:"amount"`
		Currency       domain.Currency `json:"currency"`
		ExecuteOnChain bool            `json:"executeOnChain,omitempty"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	wallet := domain.NormalizeWallet(input.Wallet)
	if wallet == "" || input.Amount <= 0 {
		RespondError(w, domain.ErrValidation("INVALID_AMOUNT", "wallet and positive amount are required"))
		return
	}

	debited, err := h.users.DebitBalance(r.Context(), h.db, wallet, input.Currency, input.Amount)
	if err != nil {
		RespondError(w, err)
		return
	}
	if !debited {
		RespondError(w, domain.ErrValidation("INSUFFICIENT_BALANCE", "platform balance does not cover the withdrawal"))
		return
	}

	status := "pending"
	txHash := ""
	if input.ExecuteOnChain {
		tx, err := h.gateway.Send(r.Context(), wallet, input.Amount, input.Currency)
		if err != nil {
			h.logger.Error("withdrawal transfer failed, left pending", "wallet", wallet, "amount", input.Amount, "error", err)
		} else {
			status = "completed"
			txHash = tx
		}
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":   wallet,
		"amount":   input.Amount,
		"currency": input.Currency,
		"status":   status,
		"txHash":   txHash,
	})
}

// RegisterReferral handles POST /api/user/referral, bonding a referred wallet
// to its referrer before the first bet fires the reward.
func (h *UserHandler) RegisterReferral(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Referrer string `json:"referrer"`
		Referred string `json:"referred"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	referrer := domain.NormalizeWallet(input.Referrer)
	referred := domain.NormalizeWallet(input.Referred)
	if referrer == "" || referred == "" || referrer == referred {
		RespondError(w, domain.ErrValidation("INVALID_REFERRAL", "distinct referrer and referred wallets are required"))
		return
	}

	referral := &domain.Referral{Referrer: referrer, Referred: referred, Status: domain.ReferralPending}
	if err := h.referrals.Insert(r.Context(), h.db, referral); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, referral)
}

// SetLimits handles POST /api/user/limits.
func (h *UserHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet     string  `json:"wallet"`
		DailyCap   float64 `json:"dailyCap"`
		WeeklyCap  float64 `json:"weeklyCap"`
		MonthlyCap float64 `json:"monthlyCap"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	wallet := domain.NormalizeWallet(input.Wallet)
	if wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet is required"))
		return
	}
	if err := h.limits.SetCaps(r.Context(), wallet, input.DailyCap, input.WeeklyCap, input.MonthlyCap, time.Now().UTC()); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SelfExclude handles POST /api/user/self-exclude.
func (h *UserHandler) SelfExclude(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet string `json:"wallet"`
		Days   int    `json:"days"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	wallet := domain.NormalizeWallet(input.Wallet)
	if wallet == "" || input.Days <= 0 {
		RespondError(w, domain.ErrValidation("INVALID_EXCLUSION", "wallet and a positive day count are required"))
		return
	}

	now := time.Now().UTC()
	until := now.AddDate(0, 0, input.Days)
	if err := h.limits.SelfExclude(r.Context(), wallet, until, now); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "excluded",
		"until":  until,
	})
}
