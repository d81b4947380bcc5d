package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/repository"
	"github.com/wurlus/platform/internal/social"
)

// SocialHandler serves the prediction-market and peer-challenge endpoints.
type SocialHandler struct {
	db          repository.DBTX
	predictions repository.PredictionRepository
	challenges  repository.ChallengeRepository
	resolver    *social.Resolver
	settler     *social.Settler
}

func NewSocialHandler(
	db repository.DBTX,
	predictions repository.PredictionRepository,
	challenges repository.ChallengeRepository,
	resolver *social.Resolver,
	settler *social.Settler,
) *SocialHandler {
	return &SocialHandler{
		db: db, predictions: predictions, challenges: challenges,
		resolver: resolver, settler: settler,
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrValidation("INVALID_ID", "numeric id required")
	}
	return id, nil
}

// ListPredictions handles GET /api/social/predictions.
func (h *SocialHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.predictions.ListActive(r.Context(), h.db)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"predictions": predictions})
}

// CreatePrediction handles POST /api/social/predictions.
func (h *SocialHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Creator     string    `json:"creator"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		EndDate     time.Time `json:"endDate"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}
	if input.Creator == "" || input.Title == "" {
		RespondError(w, domain.ErrValidation("MISSING_FIELDS", "creator and title are required"))
		return
	}
	if !input.EndDate.After(time.Now()) {
		RespondError(w, domain.ErrValidation("INVALID_END_DATE", "end date must be in the future"))
		return
	}

	prediction := &domain.SocialPrediction{
		Creator:     domain.NormalizeWallet(input.Creator),
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		EndDate:     input.EndDate.UTC(),
		Status:      domain.PredictionActive,
	}
	if err := h.predictions.Insert(r.Context(), h.db, prediction); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, prediction)
}

// BetOnPrediction handles POST /api/social/predictions/{id}/bet. The tx id
// dedup and the active-status gate both live in the conditional insert.
func (h *SocialHandler) BetOnPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		Wallet string `json:"wallet"`
		Side   string `json:"side"`
		Amount int64  `json:"amount"`
		TxID   string `json:"txId"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	side := domain.PredictionSide(input.Side)
	if side != domain.SideYes && side != domain.SideNo {
		RespondError(w, domain.ErrValidation("INVALID_SIDE", "side must be yes or no"))
		return
	}
	if input.Amount <= 0 || input.Wallet == "" || input.TxID == "" {
		RespondError(w, domain.ErrValidation("MISSING_FIELDS", "wallet, positive amount and txId are required"))
		return
	}

	bet := &domain.SocialPredictionBet{
		PredictionID: id,
		Wallet:       domain.NormalizeWallet(input.Wallet),
		Side:         side,
		Amount:       input.Amount,
		TxID:         input.TxID,
	}
	if err := h.predictions.AddBet(r.Context(), h.db, bet); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, bet)
}

// ResolvePrediction handles POST /api/social/predictions/{id}/resolve, the
// manual trigger for the same path the worker runs.
func (h *SocialHandler) ResolvePrediction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.resolver.Resolve(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}

	prediction, err := h.predictions.FindByID(r.Context(), h.db, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, prediction)
}

// ListChallenges handles GET /api/social/challenges.
func (h *SocialHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challenges.ListOpen(r.Context(), h.db)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"challenges": challenges})
}

// CreateChallenge handles POST /api/social/challenges.
func (h *SocialHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Creator         string    `json:"creator"`
		Title           string    `json:"title"`
		Description     string    `json:"description"`
		StakeAmount     int64     `json:"stakeAmount"`
		MaxParticipants int       `json:"maxParticipants"`
		ExpiresAt       time.Time `json:"expiresAt"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}
	if input.Creator == "" || input.Title == "" || input.StakeAmount <= 0 {
		RespondError(w, domain.ErrValidation("MISSING_FIELDS", "creator, title and a positive stake are required"))
		return
	}
	if input.MaxParticipants <= 0 {
		input.MaxParticipants = 1
	}
	if !input.ExpiresAt.After(time.Now()) {
		RespondError(w, domain.ErrValidation("INVALID_EXPIRY", "expiry must be in the future"))
		return
	}

	challenge := &domain.Challenge{
		Creator:         domain.NormalizeWallet(input.Creator),
		Title:           input.Title,
		Description:     input.Description,
		StakeAmount:     input.StakeAmount,
		MaxParticipants: input.MaxParticipants,
		ExpiresAt:       input.ExpiresAt.UTC(),
		Status:          domain.ChallengeOpen,
	}
	if err := h.challenges.Insert(r.Context(), h.db, challenge); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, challenge)
}

// JoinChallenge handles POST /api/social/challenges/{id}/join.
func (h *SocialHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		Wallet string `json:"wallet"`
		Side   string `json:"side"`
		TxHash string `json:"txHash"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}
	if input.Wallet == "" || input.TxHash == "" {
		RespondError(w, domain.ErrValidation("MISSING_FIELDS", "wallet and txHash are required"))
		return
	}

	participant := &domain.ChallengeParticipant{
		ChallengeID: id,
		Wallet:      domain.NormalizeWallet(input.Wallet),
		Side:        input.Side,
		TxHash:      input.TxHash,
	}
	if err := h.challenges.Join(r.Context(), h.db, participant); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, participant)
}

// SettleChallenge handles POST /api/social/challenges/{id}/settle.
func (h *SocialHandler) SettleChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input struct {
		Caller     string `json:"caller"`
		WinnerSide string `json:"winnerSide"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondBadBody(w)
		return
	}

	if err := h.settler.Settle(r.Context(), id, input.Caller, input.WinnerSide); err != nil {
		RespondError(w, err)
		return
	}

	challenge, err := h.challenges.FindByID(r.Context(), h.db, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, challenge)
}
