package admission

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/wurlus/platform/internal/domain"
)

// ParlayRequest carries a multi-leg wager through admission.
type ParlayRequest struct {
	Wallet       string          `json:"wallet"`
	Legs         []Request       `json:"selections"`
	Stake        float64         `json:"betAmount"`
	Currency     domain.Currency `json:"feeCurrency"`
	TxHash       string          `json:"txHash,omitempty"`
	OnChainBetID string          `json:"onChainBetId,omitempty"`
}

// PlaceParlay admits a parlay. Every single-bet gate runs per leg; legs may
// not share an event, and the combined odds must be a finite positive
// product.
func (p *Pipeline) PlaceParlay(ctx context.Context, req ParlayRequest) (*domain.Parlay, error) {
	now := time.Now().UTC()
	wallet := domain.NormalizeWallet(req.Wallet)

	if len(req.Legs) < 2 {
		return nil, p.reject(domain.ErrValidation(domain.CodeInvalidParlayEvent,
			"a parlay needs at least two selections"))
	}
	if req.Stake <= 0 {
		return nil, p.reject(domain.ErrValidation(domain.CodeInvalidEvent, "stake must be positive"))
	}

	seen := make(map[string]bool, len(req.Legs))
	combined := 1.0
	for i := range req.Legs {
		leg := &req.Legs[i]
		leg.Wallet = wallet
		leg.Stake = req.Stake
		leg.Currency = req.Currency

		if leg.EventID == "" {
			return nil, p.reject(domain.ErrValidation(domain.CodeInvalidParlayEvent,
				"every selection needs an eventId"))
		}
		if seen[leg.EventID] {
			return nil, p.reject(domain.ErrValidation(domain.CodeDuplicateEventParlay,
				"multiple selections on the same match"))
		}
		seen[leg.EventID] = true

		if err := p.policyGates(leg, wallet); err != nil {
			return nil, err
		}
		lookup, err := p.freshLookup(leg.EventID)
		if err != nil {
			return nil, err
		}
		if leg.HomeTeam == "" {
			leg.HomeTeam = lookup.HomeTeam
		}
		if leg.AwayTeam == "" {
			leg.AwayTeam = lookup.AwayTeam
		}
		if err := p.marketGates(*leg, lookup); err != nil {
			return nil, err
		}
		if IsMatchWinnerMarket(leg.MarketID) && SuspiciousOdds(lookup, leg.OutcomeID, leg.Prediction, leg.Odds) {
			return nil, p.reject(domain.ErrValidation(domain.CodeSuspiciousOdds,
				"odds inconsistent with the current score"))
		}
		combined *= leg.Odds
	}

	if combined <= 0 || math.IsInf(combined, 0) || math.IsNaN(combined) {
		return nil, p.reject(domain.ErrValidation(domain.CodeInvalidParlayEvent,
			"combined odds out of range"))
	}

	if err := p.rateGates(ctx, wallet, req.Legs[0].EventID, now); err != nil {
		return nil, err
	}

	usd := p.valuer.USD(req.Stake, req.Currency)
	if err := p.limits.Check(ctx, wallet, usd, now); err != nil {
		if appErr, ok := err.(*domain.AppError); ok {
			return nil, p.reject(appErr)
		}
		return nil, err
	}

	parlayID := req.OnChainBetID
	if parlayID == "" {
		parlayID = uuid.New().String()
	}
	status := domain.BetPending
	if req.TxHash != "" {
		status = domain.BetConfirmed
	}

	legs := make([]domain.Bet, len(req.Legs))
	for i, leg := range req.Legs {
		legs[i] = *p.buildBet(leg, wallet, now, "")
		legs[i].ParlayID = parlayID
		legs[i].Status = status
	}

	parlay := &domain.Parlay{
		ID:           parlayID,
		Wallet:       wallet,
		Legs:         legs,
		CombinedOdds: combined,
		Stake:        req.Stake,
		Currency:     req.Currency,
		Payout:       domain.ComputePayout(req.Stake, combined),
		Status:       status,
		TxHash:       req.TxHash,
		OnChainBetID: req.OnChainBetID,
		PlacedAt:     now,
	}
	if err := p.parlays.Insert(ctx, p.db, parlay); err != nil {
		return nil, domain.ErrInternal("parlay insert failed", err)
	}

	p.limits.Record(ctx, wallet, usd, now)
	p.metrics.BetsAdmitted.WithLabelValues(string(req.Currency)).Inc()
	return parlay, nil
}
