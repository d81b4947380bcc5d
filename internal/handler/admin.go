package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wurlus/platform/internal/admission"
	"github.com/wurlus/platform/internal/auth"
	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/repository"
	"github.com/wurlus/platform/internal/settlement"
)

// AdminHandler serves the operator surface.
type AdminHandler struct {
	admin    *auth.Admin
	pipeline *admission.Pipeline
	worker   *settlement.Worker
	bets     repository.BetRepository
	gateway  chain.Gateway
	db       repository.DBTX
}

func NewAdminHandler(
	admin *auth.Admin,
	pipeline *admission.Pipeline,
	worker *settlement.Worker,
	bets repository.BetRepository,
	gateway chain.Gateway,
	db repository.DBTX,
) *AdminHandler {
	return &AdminHandler{
		admin: admin, pipeline: pipeline, worker: worker,
		bets: bets, gateway: gateway, db: db,
	}
}

// Login handles POST /api/admin/login.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Password string `json:"password"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	token, err := h.admin.Login(remote, input.Password)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// SetPause handles POST /api/admin/pause {paused}.
func (h *AdminHandler) SetPause(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Paused bool `json:"paused"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}
	h.pipeline.SetSuiPaused(input.Paused)
	RespondJSON(w, http.StatusOK, map[string]bool{"suiBettingPaused": h.pipeline.SuiPaused()})
}

// BlockWallet handles POST /api/admin/block-wallet {wallet, blocked}.
func (h *AdminHandler) BlockWallet(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Wallet  string `json:"wallet"`
		Blocked bool   `json:"blocked"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}
	if input.Wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet is required"))
		return
	}

	if input.Blocked {
		h.pipeline.BlockWallet(input.Wallet)
	} else {
		h.pipeline.UnblockWallet(input.Wallet)
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":  domain.NormalizeWallet(input.Wallet),
		"blocked": input.Blocked,
	})
}

// SettleBet handles POST /api/bets/{betID}/settle, the oracle override path.
func (h *AdminHandler) SettleBet(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Outcome string `json:"outcome"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	bet, err := h.worker.SettleBet(r.Context(), chi.URLParam(r, "betID"), domain.BetStatus(input.Outcome))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, bet)
}

// RunSettlement handles POST /api/admin/settle-cycle: one synchronous pass of
// the settlement worker.
func (h *AdminHandler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	h.worker.Cycle(r.Context())
	RespondJSON(w, http.StatusOK, map[string]string{"status": "cycle completed"})
}

// Reconcile handles GET /api/admin/reconcile: open liabilities vs the
// contract's counters. Mismatches are reported, never auto-corrected.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := settlement.Reconcile(r.Context(), h.db, h.bets, h.gateway)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, report)
}
