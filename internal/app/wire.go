package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wurlus/platform/internal/admission"
	"github.com/wurlus/platform/internal/auth"
	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/handler"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/policy"
	"github.com/wurlus/platform/internal/provider"
	"github.com/wurlus/platform/internal/registry"
	"github.com/wurlus/platform/internal/repository"
	"github.com/wurlus/platform/internal/revenue"
	"github.com/wurlus/platform/internal/scheduler"
	"github.com/wurlus/platform/internal/settlement"
	"github.com/wurlus/platform/internal/social"
	"github.com/wurlus/platform/internal/staking"
	"github.com/wurlus/platform/internal/ws"
)

// Worker cadences.
const (
	settlementInterval   = time.Minute
	socialInterval       = 2 * time.Minute
	stakingInterval      = time.Hour
	oddsPrefetchInterval = 5 * time.Minute
	freeSportsInterval   = 12 * time.Hour
	wsBroadcastInterval  = 5 * time.Second
)

// App is the assembled service: router plus the background workers main
// starts through the supervisor.
type App struct {
	Cfg     *infra.Config
	Logger  *slog.Logger
	Metrics *infra.Metrics
	Router  chi.Router

	Gateway    chain.Gateway
	Registry   *registry.Registry
	FreeSports *provider.FreeSports
	Pipeline   *admission.Pipeline
	Settlement *settlement.Worker
	Resolver   *social.Resolver
	Settler    *social.Settler
	Accruer    *staking.Accruer
	Admin      *auth.Admin
	Hub        *ws.Hub
}

// New wires every component against the pool and returns the ready service.
func New(cfg *infra.Config, pool *pgxpool.Pool, logger *slog.Logger) *App {
	metrics := infra.NewDefaultMetrics()

	// Repositories
	betRepo := repository.NewBetRepository()
	parlayRepo := repository.NewParlayRepository()
	userRepo := repository.NewUserRepository()
	limitsRepo := repository.NewLimitsRepository()
	referralRepo := repository.NewReferralRepository()
	depositRepo := repository.NewDepositRepository()
	settledRepo := repository.NewSettledEventRepository()
	predictionRepo := repository.NewPredictionRepository()
	challengeRepo := repository.NewChallengeRepository()
	stakeRepo := repository.NewStakeRepository()
	claimRepo := repository.NewRevenueClaimRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Chain and sports data
	gateway := chain.NewSuiGateway(cfg, logger)
	football := provider.NewAPIFootball(cfg, logger)
	freeSports := provider.NewFreeSports(cfg, logger)
	reg := registry.New(football, freeSports, metrics, logger)

	// Core engines
	limits := policy.NewLimits(limitsRepo, pool, logger)
	pipeline := admission.NewPipeline(cfg, pool, betRepo, parlayRepo, userRepo,
		referralRepo, outboxRepo, limits, reg, metrics, logger)
	settlementWorker := settlement.NewWorker(pool, betRepo, userRepo, settledRepo,
		outboxRepo, football, gateway, metrics, logger)
	resolver := social.NewResolver(pool, predictionRepo, gateway, metrics, logger)
	settler := social.NewSettler(pool, challengeRepo, gateway, metrics, logger)

	holders := revenue.NewHolderSource(cfg.HoldersAPIURL, cfg.HoldersAPIKey,
		cfg.SbetsCoinType, []string{cfg.AdminWallet, cfg.TreasuryObject},
		pool, userRepo, gateway, logger)
	revenueEngine := revenue.NewEngine(pool, betRepo, claimRepo, holders, gateway,
		revenueCutoff(cfg, logger), metrics, logger)

	stakingService := staking.NewService(pool, stakeRepo, userRepo, gateway, metrics, logger)
	accruer := staking.NewAccruer(pool, stakeRepo, metrics, logger)

	admin := auth.NewAdmin(cfg.AdminPassword, logger)
	hub := ws.NewHub(reg, metrics, logger)

	// Handlers
	eventsHandler := handler.NewEventsHandler(reg, football)
	betsHandler := handler.NewBetsHandler(pipeline, settlementWorker, betRepo, parlayRepo, pool)
	userHandler := handler.NewUserHandler(pool, userRepo, depositRepo, referralRepo, limits, gateway, logger)
	socialHandler := handler.NewSocialHandler(pool, predictionRepo, challengeRepo, resolver, settler)
	stakingHandler := handler.NewStakingHandler(stakingService)
	revenueHandler := handler.NewRevenueHandler(revenueEngine)
	adminHandler := handler.NewAdminHandler(admin, pipeline, settlementWorker, betRepo, gateway, pool)

	// Router
	r := chi.NewRouter()
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", handler.HealthHandler(pool))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", hub.Serve)

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/api/sports", eventsHandler.ListSports)
		r.Get("/api/events", eventsHandler.ListEvents)
		r.Get("/api/events/results", eventsHandler.Results)
		r.Get("/api/events/{eventID}/odds", eventsHandler.EventOdds)

		r.Route("/api/bets", func(r chi.Router) {
			r.Get("/", betsHandler.ListByWallet)
			r.Post("/", betsHandler.Place)
			r.Post("/validate", betsHandler.Validate)
			r.Post("/parlay", betsHandler.PlaceParlay)
			r.Post("/{betID}/cash-out", betsHandler.CashOut)
			r.With(admin.Middleware).Post("/{betID}/settle", adminHandler.SettleBet)
		})
		r.Route("/api/parlays", func(r chi.Router) {
			r.Get("/", betsHandler.ListParlaysByWallet)
			r.Post("/", betsHandler.PlaceParlay)
		})

		r.Route("/api/user", func(r chi.Router) {
			r.Get("/balance", userHandler.Balance)
			r.Post("/deposit", userHandler.Deposit)
			r.Post("/withdraw", userHandler.Withdraw)
			r.Post("/referral", userHandler.RegisterReferral)
			r.Post("/limits", userHandler.SetLimits)
			r.Post("/self-exclude", userHandler.SelfExclude)
		})

		r.Route("/api/social", func(r chi.Router) {
			r.Route("/predictions", func(r chi.Router) {
				r.Get("/", socialHandler.ListPredictions)
				r.Post("/", socialHandler.CreatePrediction)
				r.Post("/{id}/bet", socialHandler.BetOnPrediction)
				r.Post("/{id}/resolve", socialHandler.ResolvePrediction)
			})
			r.Route("/challenges", func(r chi.Router) {
				r.Get("/", socialHandler.ListChallenges)
				r.Post("/", socialHandler.CreateChallenge)
				r.Post("/{id}/join", socialHandler.JoinChallenge)
				r.Post("/{id}/settle", socialHandler.SettleChallenge)
			})
		})

		r.Route("/api/staking", func(r chi.Router) {
			r.Get("/info", stakingHandler.Info)
			r.Post("/stake", stakingHandler.Stake)
			r.Post("/unstake", stakingHandler.Unstake)
			r.Post("/claim-rewards", stakingHandler.ClaimRewards)
		})

		r.Route("/api/revenue", func(r chi.Router) {
			r.Get("/stats", revenueHandler.Stats)
			r.Get("/claimable/{wallet}", revenueHandler.Claimable)
			r.Post("/claim", revenueHandler.Claim)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(admin.Middleware)
				r.Post("/pause", adminHandler.SetPause)
				r.Post("/block-wallet", adminHandler.BlockWallet)
				r.Post("/settle-cycle", adminHandler.RunSettlement)
				r.Get("/reconcile", adminHandler.Reconcile)
			})
		})
	})

	return &App{
		Cfg:        cfg,
		Logger:     logger,
		Metrics:    metrics,
		Router:     r,
		Gateway:    gateway,
		Registry:   reg,
		FreeSports: freeSports,
		Pipeline:   pipeline,
		Settlement: settlementWorker,
		Resolver:   resolver,
		Settler:    settler,
		Accruer:    accruer,
		Admin:      admin,
		Hub:        hub,
	}
}

// StartWorkers registers every background loop with the supervisor. The free
// sports cache is warmed synchronously so the first catalogue request has
// data.
func (a *App) StartWorkers(ctx context.Context, sup *scheduler.Supervisor) {
	a.FreeSports.Refresh(ctx)

	sup.Every(ctx, "settlement", settlementInterval, a.Settlement.Cycle)
	sup.Every(ctx, "prediction_resolver", socialInterval, a.Resolver.Cycle)
	sup.Every(ctx, "challenge_settler", socialInterval, a.Settler.Cycle)
	sup.Every(ctx, "stake_accruer", stakingInterval, a.Accruer.Cycle)
	sup.Every(ctx, "odds_prefetch", oddsPrefetchInterval, a.Registry.PrefetchOdds)
	sup.Every(ctx, "free_sports_refresh", freeSportsInterval, a.FreeSports.Refresh)

	go a.Admin.Sweep(ctx)
	go a.Hub.Run(ctx, wsBroadcastInterval)
}

func revenueCutoff(cfg *infra.Config, logger *slog.Logger) time.Time {
	cutoff, err := time.Parse(time.RFC3339, cfg.RevenueCutoff)
	if err != nil {
		logger.Warn("invalid REVENUE_CUTOFF, using zero cutoff", "value", cfg.RevenueCutoff, "error", err)
		return time.Time{}
	}
	return cutoff
}
