package admission

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/policy"
	"github.com/wurlus/platform/internal/repository"
)

// Freshness thresholds consumed from the registry. A cache age at or past
// its threshold rejects the bet. The free tier refreshes on a daily cadence,
// so its bound only trips when the refresher has been failing for a day.
const (
	liveMaxAge     = 90 * time.Second
	upcomingMaxAge = 15 * time.Minute
	freeMaxAge     = 24 * time.Hour
)

// EventLookuper is the slice of the registry the pipeline needs.
type EventLookuper interface {
	Lookup(eventID string) domain.EventLookup
}

// Request carries one bet through the pipeline.
type Request struct {
	Wallet       string          `json:"wallet"`
	EventID      string          `json:"eventId"`
	EventName    string          `json:"eventName"`
	HomeTeam     string          `json:"homeTeam"`
	AwayTeam     string          `json:"awayTeam"`
	MarketID     string          `json:"marketId"`
	OutcomeID    string          `json:"outcomeId"`
	Prediction   string          `json:"prediction"`
	Odds         float64         `json:"odds"`
	Stake        float64         `json:"stake"`
	Currency     domain.Currency `json:"currency"`
	IsLive       bool            `json:"isLive"`
	MatchMinute  int             `json:"matchMinute,omitempty"`
	TxHash       string          `json:"txHash,omitempty"`
	OnChainBetID string          `json:"onChainBetId,omitempty"`
	UseBonus     bool            `json:"useBonus,omitempty"`
	UseFreeBet   bool            `json:"useFreeBet,omitempty"`
}

// Pipeline is the sole authority admitting new bets. Checks are ordered so
// free gates reject before event lookup and event lookup rejects before
// persistence; in many flows the chain has already moved money by the time
// the request arrives.
type Pipeline struct {
	cfg       *infra.Config
	db        repository.DBTX
	bets      repository.BetRepository
	parlays   repository.ParlayRepository
	users     repository.UserRepository
	referrals repository.ReferralRepository
	outbox    repository.OutboxRepository
	limits    *policy.Limits
	valuer    policy.Valuer
	registry  EventLookuper
	metrics   *infra.Metrics
	logger    *slog.Logger

	suiPaused atomic.Bool

	blockMu   sync.RWMutex
	blocklist map[string]bool
}

func NewPipeline(
	cfg *infra.Config,
	db repository.DBTX,
	bets repository.BetRepository,
	parlays repository.ParlayRepository,
	users repository.UserRepository,
	referrals repository.ReferralRepository,
	outbox repository.OutboxRepository,
	limits *policy.Limits,
	reg EventLookuper,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		db:        db,
		bets:      bets,
		parlays:   parlays,
		users:     users,
		referrals: referrals,
		outbox:    outbox,
		limits:    limits,
		valuer:    policy.NewValuer(cfg),
		registry:  reg,
		metrics:   metrics,
		logger:    logger.With("component", "admission"),
		blocklist: make(map[string]bool),
	}
	p.suiPaused.Store(cfg.SuiBettingPaused)
	return p
}

// SetSuiPaused flips the runtime SUI betting pause flag.
func (p *Pipeline) SetSuiPaused(paused bool) { p.suiPaused.Store(paused) }

// SuiPaused reports the current pause flag.
func (p *Pipeline) SuiPaused() bool { return p.suiPaused.Load() }

// BlockWallet adds a wallet to the admission blocklist.
func (p *Pipeline) BlockWallet(wallet string) {
	p.blockMu.Lock()
	defer p.blockMu.Unlock()
	p.blocklist[domain.NormalizeWallet(wallet)] = true
}

// UnblockWallet removes a wallet from the blocklist.
func (p *Pipeline) UnblockWallet(wallet string) {
	p.blockMu.Lock()
	defer p.blockMu.Unlock()
	delete(p.blocklist, domain.NormalizeWallet(wallet))
}

func (p *Pipeline) blocked(wallet string) bool {
	p.blockMu.RLock()
	defer p.blockMu.RUnlock()
	return p.blocklist[wallet]
}

func (p *Pipeline) reject(err *domain.AppError) error {
	p.metrics.BetsRejected.WithLabelValues(err.Code).Inc()
	return err
}

// Place runs the full pipeline and persists the bet on success.
func (p *Pipeline) Place(ctx context.Context, req Request) (*domain.Bet, error) {
	now := time.Now().UTC()
	wallet := domain.NormalizeWallet(req.Wallet)

	// step 1: O(1) policy gates
	if err := p.policyGates(&req, wallet); err != nil {
		return nil, err
	}

	// step 2: durable rate gates, fail-open on repository error
	if err := p.rateGates(ctx, wallet, req.EventID, now); err != nil {
		return nil, err
	}

	// step 3: duplicate detection
	dup, err := p.bets.HasOpenDuplicate(ctx, p.db, wallet, req.EventID, req.MarketID, req.OutcomeID)
	if err != nil {
		return nil, domain.ErrInternal("duplicate check failed", err)
	}
	if dup {
		return nil, p.reject(domain.ErrValidation(domain.CodeDuplicateBet,
			"an open bet on this outcome already exists"))
	}

	// step 4: registry lookup, fail-closed
	lookup, err := p.freshLookup(req.EventID)
	if err != nil {
		return nil, err
	}

	// enrich team names from the registry when the caller omitted them
	if req.HomeTeam == "" && lookup.HomeTeam != "" {
		req.HomeTeam = lookup.HomeTeam
	}
	if req.AwayTeam == "" && lookup.AwayTeam != "" {
		req.AwayTeam = lookup.AwayTeam
	}
	if req.HomeTeam == "" || req.AwayTeam == "" {
		if req.TxHash == "" {
			return nil, p.reject(domain.ErrValidation(domain.CodeInvalidTeams, "team names unresolved"))
		}
		// funds already moved on chain; synthesize rather than strand them
		p.logger.Warn("synthesizing team names for on-chain bet",
			"wallet", wallet, "event", req.EventID, "tx", req.TxHash)
		if req.HomeTeam == "" {
			req.HomeTeam = "Home"
		}
		if req.AwayTeam == "" {
			req.AwayTeam = "Away"
		}
	}

	// step 5: market-time rules
	if err := p.marketGates(req, lookup); err != nil {
		return nil, err
	}

	// step 6: anti-cheat
	if IsMatchWinnerMarket(req.MarketID) && SuspiciousOdds(lookup, req.OutcomeID, req.Prediction, req.Odds) {
		return nil, p.reject(domain.ErrValidation(domain.CodeSuspiciousOdds,
			"odds inconsistent with the current score"))
	}

	// step 7: limits and promotion
	usd := p.valuer.USD(req.Stake, req.Currency)
	if err := p.limits.Check(ctx, wallet, usd, now); err != nil {
		if appErr, ok := err.(*domain.AppError); ok {
			return nil, p.reject(appErr)
		}
		return nil, err
	}
	paymentMethod := ""
	if req.UseFreeBet && req.Currency == domain.CurrencySBETS {
		used, err := p.bets.HasUsedFreeBet(ctx, p.db, wallet)
		if err != nil {
			return nil, domain.ErrInternal("free bet history check failed", err)
		}
		if used {
			return nil, p.reject(domain.ErrValidation(domain.CodeFreeBetAlreadyUsed,
				"free bet already used"))
		}
		ok, err := p.users.ConsumeFreeBet(ctx, p.db, wallet)
		if err != nil {
			return nil, domain.ErrInternal("free bet consume failed", err)
		}
		if !ok {
			return nil, p.reject(domain.ErrValidation(domain.CodeFreeBetAlreadyUsed,
				"no free bets available"))
		}
		paymentMethod = domain.PaymentFreeBet
	}
	if req.UseBonus {
		consumed, err := p.users.ConsumeBonus(ctx, p.db, wallet, usd)
		if err != nil {
			p.logger.Warn("bonus consume failed", "wallet", wallet, "error", err)
		} else if consumed > 0 {
			p.logger.Info("bonus applied", "wallet", wallet, "usd", consumed)
		}
	}

	// step 8: persist
	bet := p.buildBet(req, wallet, now, paymentMethod)
	if err := p.bets.Insert(ctx, p.db, bet); err != nil {
		return nil, domain.ErrInternal("bet insert failed", err)
	}

	// step 9: best-effort side effects
	p.sideEffects(ctx, bet, wallet, usd, now)
	p.metrics.BetsAdmitted.WithLabelValues(string(bet.Currency)).Inc()
	return bet, nil
}

func (p *Pipeline) policyGates(req *Request, wallet string) error {
	if wallet == "" {
		return p.reject(domain.ErrValidation(domain.CodeInvalidEvent, "wallet is required"))
	}
	if p.blocked(wallet) {
		return p.reject(domain.ErrForbidden(domain.CodeWalletBlocked, "wallet is blocked"))
	}
	if req.Currency != domain.CurrencySUI && req.Currency != domain.CurrencySBETS {
		return p.reject(domain.ErrValidation(domain.CodeInvalidEvent, "unknown currency"))
	}
	if req.Currency == domain.CurrencySUI && p.suiPaused.Load() {
		return p.reject(domain.ErrValidation(domain.CodeSuiBettingPaused, "SUI betting is paused"))
	}
	if req.EventID == "" {
		return p.reject(domain.ErrValidation(domain.CodeMissingEventID, "eventId is required"))
	}
	if req.EventName == "" || req.EventName == "Unknown" {
		return p.reject(domain.ErrValidation(domain.CodeInvalidEvent, "event name unresolved"))
	}
	if req.Odds <= 1.0 || math.IsInf(req.Odds, 0) || math.IsNaN(req.Odds) {
		return p.reject(domain.ErrValidation(domain.CodeInvalidEvent, "odds must exceed 1.0"))
	}
	if req.Stake <= 0 {
		return p.reject(domain.ErrValidation(domain.CodeInvalidEvent, "stake must be positive"))
	}
	maxStake := p.cfg.MaxStakeSUI
	if req.Currency == domain.CurrencySBETS {
		maxStake = p.cfg.MaxStakeSBETS
	}
	if req.Stake > maxStake {
		return p.reject(domain.ErrValidation(domain.CodeMaxStakeExceeded, "stake exceeds the per-bet maximum"))
	}
	return nil
}

func (p *Pipeline) rateGates(ctx context.Context, wallet, eventID string, now time.Time) error {
	count, err := p.bets.CountSince(ctx, p.db, wallet, now.Add(-24*time.Hour))
	if err != nil {
		p.logger.Warn("daily count gate failed open", "wallet", wallet, "error", err)
	} else if count >= p.cfg.MaxBetsPerDay {
		return p.reject(domain.ErrRateLimited(domain.CodeRateLimitExceeded,
			"daily bet limit reached"))
	}

	last, err := p.bets.LastPlacedAt(ctx, p.db, wallet)
	if err != nil {
		p.logger.Warn("cooldown gate failed open", "wallet", wallet, "error", err)
	} else if last != nil && now.Sub(*last) < time.Duration(p.cfg.BetCooldownSec)*time.Second {
		return p.reject(domain.ErrRateLimited(domain.CodeBetCooldown,
			"wait before placing another bet"))
	}

	onEvent, err := p.bets.CountOnEvent(ctx, p.db, wallet, eventID)
	if err != nil {
		p.logger.Warn("event limit gate failed open", "wallet", wallet, "error", err)
	} else if onEvent >= p.cfg.MaxBetsPerEvent {
		return p.reject(domain.ErrValidation(domain.CodeEventBetLimit,
			"bet limit for this event reached"))
	}
	return nil
}

// freshLookup resolves the event and applies the fail-closed freshness rules.
func (p *Pipeline) freshLookup(eventID string) (domain.EventLookup, error) {
	lookup := p.registry.Lookup(eventID)
	if !lookup.Found {
		return lookup, p.reject(domain.ErrValidation(domain.CodeEventNotFound, "event not found in any cache"))
	}
	switch lookup.Source {
	case domain.SourceLive:
		if lookup.CacheAge >= liveMaxAge {
			return lookup, p.reject(domain.ErrValidation(domain.CodeStaleEventData, "live event data is stale"))
		}
		if !lookup.HasMinute {
			return lookup, p.reject(domain.ErrValidation(domain.CodeUnverifiableMatchTime,
				"live event has no minute data"))
		}
		if lookup.Minute >= 45 {
			return lookup, p.reject(domain.ErrValidation(domain.CodeMatchCutoff,
				"betting closes after the first half"))
		}
	case domain.SourceUpcoming:
		if lookup.CacheAge >= upcomingMaxAge {
			return lookup, p.reject(domain.ErrValidation(domain.CodeStaleEventData, "upcoming event data is stale"))
		}
		if lookup.ShouldBeLive {
			return lookup, p.reject(domain.ErrValidation(domain.CodeEventStatusUncertain,
				"event should have started; state uncertain"))
		}
	case domain.SourceFree:
		if lookup.CacheAge >= freeMaxAge {
			return lookup, p.reject(domain.ErrValidation(domain.CodeStaleEventData, "event data is stale"))
		}
		if lookup.ShouldBeLive {
			return lookup, p.reject(domain.ErrValidation(domain.CodeMatchStarted, "match already started"))
		}
	default:
		return lookup, p.reject(domain.ErrValidation(domain.CodeEventNotFound, "event not found in any cache"))
	}
	return lookup, nil
}

func (p *Pipeline) marketGates(req Request, lookup domain.EventLookup) error {
	if req.IsLive && !IsMatchWinnerMarket(req.MarketID) {
		return p.reject(domain.ErrValidation(domain.CodeMarketClosedLive,
			"only match-winner markets accept live bets"))
	}
	if IsFirstHalfMarket(req.MarketID) && lookup.HasMinute && lookup.Minute > 45 {
		return p.reject(domain.ErrValidation(domain.CodeMarketClosedHalfTime,
			"first-half market closed"))
	}
	return nil
}

func (p *Pipeline) buildBet(req Request, wallet string, now time.Time, paymentMethod string) *domain.Bet {
	id := req.OnChainBetID
	if id == "" {
		id = uuid.New().String()
	}
	status := domain.BetPending
	fee := domain.Round2(req.Stake * 0.01)
	if req.TxHash != "" {
		// the contract already took its fee on the wallet-signed path
		status = domain.BetConfirmed
		fee = 0
	}
	return &domain.Bet{
		ID:              id,
		Wallet:          wallet,
		EventID:         req.EventID,
		EventName:       req.EventName,
		HomeTeam:        req.HomeTeam,
		AwayTeam:        req.AwayTeam,
		MarketID:        req.MarketID,
		OutcomeID:       req.OutcomeID,
		Prediction:      req.Prediction,
		Odds:            req.Odds,
		Stake:           req.Stake,
		Currency:        req.Currency,
		PotentialPayout: domain.ComputePayout(req.Stake, req.Odds),
		Status:          status,
		IsLive:          req.IsLive,
		MatchMinute:     req.MatchMinute,
		PlatformFee:     fee,
		PaymentMethod:   paymentMethod,
		TxHash:          req.TxHash,
		OnChainBetID:    req.OnChainBetID,
		PlacedAt:        now,
	}
}

func (p *Pipeline) sideEffects(ctx context.Context, bet *domain.Bet, wallet string, usd float64, now time.Time) {
	p.limits.Record(ctx, wallet, usd, now)

	if points := policy.LoyaltyPoints(usd); points > 0 {
		if err := p.users.AddLoyaltyPoints(ctx, p.db, wallet, points); err != nil {
			p.logger.Warn("loyalty points not added", "wallet", wallet, "error", err)
		}
	}
	if err := p.users.AddVolumeUSD(ctx, p.db, wallet, usd); err != nil {
		p.logger.Warn("volume not tracked", "wallet", wallet, "error", err)
	}

	p.rewardReferrerOnFirstBet(ctx, wallet)

	if err := p.outbox.Insert(ctx, p.db, domain.NewBetPlacedEvent(bet)); err != nil {
		p.logger.Warn("outbox insert failed", "bet", bet.ID, "error", err)
	}
}

// rewardReferrerOnFirstBet fires once: the conditional pending→rewarded
// update is the dedup, not the bet count.
func (p *Pipeline) rewardReferrerOnFirstBet(ctx context.Context, wallet string) {
	count, err := p.bets.CountSince(ctx, p.db, wallet, time.Time{})
	if err != nil || count != 1 {
		return
	}
	ref, err := p.referrals.FindPendingByReferred(ctx, p.db, wallet)
	if err != nil || ref == nil {
		return
	}
	changed, err := p.referrals.MarkRewarded(ctx, p.db, ref.ID)
	if err != nil || !changed {
		return
	}
	if err := p.users.CreditBalance(ctx, p.db, ref.Referrer, domain.CurrencySBETS, policy.ReferralRewardSBETS); err != nil {
		p.logger.Error("referral reward credit failed", "referrer", ref.Referrer, "error", err)
		return
	}
	p.logger.Info("referral rewarded", "referrer", ref.Referrer, "referred", wallet)
}

// ValidateEvent answers POST /api/bets/validate: the registry freshness
// rules without the per-wallet gates.
func (p *Pipeline) ValidateEvent(eventID string, isLive bool) (domain.EventLookup, error) {
	if eventID == "" {
		return domain.EventLookup{}, p.reject(domain.ErrValidation(domain.CodeMissingEventID, "eventId is required"))
	}
	return p.freshLookup(eventID)
}
