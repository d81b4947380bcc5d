package handler

import (
	"net/http"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/staking"
)

// StakingHandler serves the SBETS staking endpoints.
type StakingHandler struct {
	service *staking.Service
}

func NewStakingHandler(service *staking.Service) *StakingHandler {
	return &StakingHandler{service: service}
}

// Info handles GET /api/staking/info?wallet=0x...
func (h *StakingHandler) Info(w http.ResponseWriter, r *http.Request) {
	wallet := domain.NormalizeWallet(r.URL.Query().Get("wallet"))
	if wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet query parameter is required"))
		return
	}

	stakes, err := h.service.ListForWallet(r.Context(), wallet)
	if err != nil {
		RespondError(w, err)
		return
	}

	var staked, rewards int64
	for _, s := range stakes {
		if s.Active {
			staked += s.Amount
			rewards += s.Accumulated
		}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":         wallet,
		"stakes":         stakes,
		"totalStaked":    staked,
		"pendingRewards": rewards,
		"apy":            domain.StakingAPY,
		"minStake":       domain.StakingMinAmount,
		"lockDays":       domain.StakingLockDays,
	})
}

// Stake handles POST /api/staking/stake.
func (h *StakingHandler) Stake(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet string `json:"wallet"`
		Amount int64  `json:"amount"`
		TxHash string `json:"txHash"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	stake, err := h.service.Stake(r.Context(), input.Wallet, input.Amount, input.TxHash)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, stake)
}

// Unstake handles POST /api/staking/unstake.
func (h *StakingHandler) Unstake(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet  string `json:"wallet"`
		StakeID int64  `json:"stakeId"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	stake, err := h.service.Unstake(r.Context(), input.Wallet, input.StakeID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"stake":  stake,
		"payout": stake.Amount + stake.Accumulated,
	})
}

// ClaimRewards handles POST /api/staking/claim-rewards.
func (h *StakingHandler) ClaimRewards(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet string `json:"wallet"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	claimed, err := h.service.ClaimRewards(r.Context(), input.Wallet)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"claimed":  claimed,
		"currency": domain.CurrencySBETS,
	})
}
