package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across components.
type Metrics struct {
	BetsAdmitted      *prometheus.CounterVec // currency
	BetsRejected      *prometheus.CounterVec // code
	SettlementCycles  prometheus.Counter
	BetsSettled       *prometheus.CounterVec // status
	PayoutsSent       *prometheus.CounterVec // currency
	PayoutFailures    prometheus.Counter
	PredictionsClosed *prometheus.CounterVec // status
	ChallengesClosed  *prometheus.CounterVec // status
	RevenueClaims     prometheus.Counter
	StakesAccrued     prometheus.Counter
	WSConnections     prometheus.Gauge
	RegistryFallbacks prometheus.Counter
}

// NewMetrics registers all instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BetsAdmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wurlus_bets_admitted_total",
			Help: "Bets accepted by the admission pipeline.",
		}, []string{"currency"}),
		BetsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wurlus_bets_rejected_total",
			Help: "Bets rejected by the admission pipeline, by error code.",
		}, []string{"code"}),
		SettlementCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "wurlus_settlement_cycles_total",
			Help: "Settlement worker cycles executed.",
		}),
		BetsSettled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wurlus_bets_settled_total",
			Help: "Bets moved to a terminal status, by status.",
		}, []string{"status"}),
		PayoutsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wurlus_payouts_sent_total",
			Help: "On-chain payouts sent, by currency.",
		}, []string{"currency"}),
		PayoutFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "wurlus_payout_failures_total",
			Help: "On-chain payout attempts that failed.",
		}),
		PredictionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wurlus_predictions_closed_total",
			Help: "Social predictions moved to a terminal status.",
		}, []string{"status"}),
		ChallengesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wurlus_challenges_closed_total",
			Help: "Challenges moved to a terminal status.",
		}, []string{"status"}),
		RevenueClaims: f.NewCounter(prometheus.CounterOpts{
			Name: "wurlus_revenue_claims_total",
			Help: "Weekly revenue claims recorded.",
		}),
		StakesAccrued: f.NewCounter(prometheus.CounterOpts{
			Name: "wurlus_stakes_accrued_total",
			Help: "Stake rows advanced by the accrual worker.",
		}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "wurlus_ws_connections",
			Help: "Active WebSocket connections.",
		}),
		RegistryFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "wurlus_registry_snapshot_fallbacks_total",
			Help: "Listing requests served from the snapshot after an upstream failure.",
		}),
	}
}

// NewDefaultMetrics registers on the default Prometheus registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}
