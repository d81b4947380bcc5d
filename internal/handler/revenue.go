package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/revenue"
)

// RevenueHandler serves the weekly revenue-share endpoints.
type RevenueHandler struct {
	engine *revenue.Engine
}

func NewRevenueHandler(engine *revenue.Engine) *RevenueHandler {
	return &RevenueHandler{engine: engine}
}

// Stats handles GET /api/revenue/stats: the current accruing week plus the
// last completed one.
func (h *RevenueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	current, err := h.engine.WeekStats(r.Context(), now)
	if err != nil {
		RespondError(w, err)
		return
	}
	previous, err := h.engine.WeekStats(r.Context(), now.AddDate(0, 0, -7))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"currentWeek":  current,
		"previousWeek": previous,
	})
}

// Claimable handles GET /api/revenue/claimable/{wallet}.
func (h *RevenueHandler) Claimable(w http.ResponseWriter, r *http.Request) {
	wallet := domain.NormalizeWallet(chi.URLParam(r, "wallet"))
	if wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet path parameter is required"))
		return
	}

	claimable, err := h.engine.ClaimableFor(r.Context(), wallet)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, claimable)
}

// Claim handles POST /api/revenue/claim.
func (h *RevenueHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet string `json:"wallet"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}
	if input.Wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet is required"))
		return
	}

	claim, err := h.engine.Claim(r.Context(), input.Wallet)
	if err != nil {
		// a repeat claim carries the stored record so the caller sees the
		// original tx hashes
		if ae, ok := err.(*domain.AppError); ok && ae.Code == "ALREADY_CLAIMED" && claim != nil {
			RespondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"code":        ae.Code,
				"message":     ae.Message,
				"txHashSui":   claim.TxHashSUI,
				"txHashSbets": claim.TxHashSBETS,
			})
			return
		}
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, claim)
}
