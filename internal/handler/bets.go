package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wurlus/platform/internal/admission"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/repository"
	"github.com/wurlus/platform/internal/settlement"
)

// BetsHandler handles bet placement and lifecycle endpoints.
type BetsHandler struct {
	pipeline *admission.Pipeline
	worker   *settlement.Worker
	bets     repository.BetRepository
	parlays  repository.ParlayRepository
	db       repository.DBTX
}

func NewBetsHandler(
	pipeline *admission.Pipeline,
	worker *settlement.Worker,
	bets repository.BetRepository,
	parlays repository.ParlayRepository,
	db repository.DBTX,
) *BetsHandler {
	return &BetsHandler{pipeline: pipeline, worker: worker, bets: bets, parlays: parlays, db: db}
}

// Validate handles POST /api/bets/validate: a dry-run freshness check the
// frontend calls before asking the wallet to sign.
func (h *BetsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var input struct {
		EventID string `json:"eventId"`
		IsLive  bool   `json:"isLive"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	lookup, err := h.pipeline.ValidateEvent(input.EventID, input.IsLive)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":       true,
		"eventId":     input.EventID,
		"source":      lookup.Source,
		"matchMinute": lookup.Minute,
		"homeTeam":    lookup.HomeTeam,
		"awayTeam":    lookup.AwayTeam,
		"startTime":   lookup.StartTime,
	})
}

// Place handles POST /api/bets.
func (h *BetsHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req admission.Request
	if err := DecodeJSON(r, &req); err != nil {
		RespondBadBody(w)
		return
	}

	bet, err := h.pipeline.Place(r.Context(), req)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, bet)
}

// PlaceParlay handles POST /api/parlays.
func (h *BetsHandler) PlaceParlay(w http.ResponseWriter, r *http.Request) {
	var req admission.ParlayRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondBadBody(w)
		return
	}

	parlay, err := h.pipeline.PlaceParlay(r.Context(), req)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, parlay)
}

// walletParam reads the wallet from the query string. Older clients call it
// userId; a user is keyed by wallet address, so the two are the same value.
func walletParam(r *http.Request) string {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		wallet = r.URL.Query().Get("userId")
	}
	return domain.NormalizeWallet(wallet)
}

// ListByWallet handles GET /api/bets?wallet=0x...&status=pending.
func (h *BetsHandler) ListByWallet(w http.ResponseWriter, r *http.Request) {
	wallet := walletParam(r)
	if wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet query parameter is required"))
		return
	}

	var status *domain.BetStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.BetStatus(raw)
		status = &s
	}

	bets, err := h.bets.ListByWallet(r.Context(), h.db, wallet, status)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"bets": bets})
}

// ListParlaysByWallet handles GET /api/parlays?wallet=0x...
func (h *BetsHandler) ListParlaysByWallet(w http.ResponseWriter, r *http.Request) {
	wallet := walletParam(r)
	if wallet == "" {
		RespondError(w, domain.ErrValidation("MISSING_WALLET", "wallet query parameter is required"))
		return
	}
	parlays, err := h.parlays.ListByWallet(r.Context(), h.db, wallet)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"parlays": parlays})
}

// CashOut handles POST /api/bets/{betID}/cash-out.
func (h *BetsHandler) CashOut(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CurrentOdds       float64 `json:"currentOdds"`
		PercentageWinning float64 `json:"percentageWinning"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	bet, value, err := h.worker.CashOut(r.Context(), chi.URLParam(r, "betID"), input.CurrentOdds, input.PercentageWinning)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"bet":          bet,
		"cashOutValue": value,
	})
}
