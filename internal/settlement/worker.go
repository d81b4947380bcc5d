package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/guard"
	"github.com/wurlus/platform/internal/infra"
	"github.com/wurlus/platform/internal/provider"
	"github.com/wurlus/platform/internal/repository"
)

// payoutGap paces consecutive on-chain payouts; a single admin signing key
// backs them all.
const payoutGap = 2500 * time.Millisecond

// Worker moves bets from pending/confirmed to a terminal status exactly
// once, credits platform accounting, and drives on-chain payouts.
type Worker struct {
	db       repository.DBTX
	bets     repository.BetRepository
	users    repository.UserRepository
	settled  repository.SettledEventRepository
	outbox   repository.OutboxRepository
	provider provider.SportsProvider
	executor chain.PayoutExecutor
	guards   *guard.KeySet[string]
	metrics  *infra.Metrics
	logger   *slog.Logger

	// sleep is swappable for tests
	sleep func(ctx context.Context, d time.Duration)
}

func NewWorker(
	db repository.DBTX,
	bets repository.BetRepository,
	users repository.UserRepository,
	settled repository.SettledEventRepository,
	outbox repository.OutboxRepository,
	results provider.SportsProvider,
	executor chain.PayoutExecutor,
	metrics *infra.Metrics,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		db:       db,
		bets:     bets,
		users:    users,
		settled:  settled,
		outbox:   outbox,
		provider: results,
		executor: executor,
		guards:   guard.NewKeySet[string](),
		metrics:  metrics,
		logger:   logger.With("component", "settlement"),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Cycle runs one settlement pass: snapshot resolvable bets, group by event,
// and settle each finished event under its single-flight guard.
func (w *Worker) Cycle(ctx context.Context) {
	w.metrics.SettlementCycles.Inc()

	open, err := w.bets.ListSettleable(ctx, w.db)
	if err != nil {
		w.logger.Error("settleable snapshot failed", "error", err)
		return
	}
	if len(open) == 0 {
		return
	}

	byEvent := make(map[string][]domain.Bet)
	for _, b := range open {
		byEvent[b.EventID] = append(byEvent[b.EventID], b)
	}

	results := w.finishedEvents(ctx)
	for eventID := range byEvent {
		res, finished := results[eventID]
		if !finished {
			continue
		}
		if err := w.SettleEvent(ctx, res); err != nil {
			w.logger.Error("event settlement failed", "event", eventID, "error", err)
		}
	}
}

// finishedEvents merges fresh provider results with recently settled events,
// so stragglers on an already-settled event still resolve.
func (w *Worker) finishedEvents(ctx context.Context) map[string]EventResult {
	out := make(map[string]EventResult)

	finished, err := w.provider.Results(ctx, provider.SportFootball, 2)
	if err != nil {
		w.logger.Warn("results fetch failed", "error", err)
	}
	for _, e := range finished {
		if !e.HasScore {
			continue
		}
		out[e.ID] = EventResult{
			EventID:   e.ID,
			HomeTeam:  e.HomeTeam,
			AwayTeam:  e.AwayTeam,
			HomeScore: e.HomeScore,
			AwayScore: e.AwayScore,
		}
	}

	past, err := w.settled.ListSince(ctx, w.db, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		w.logger.Warn("settled events read failed", "error", err)
		return out
	}
	for _, se := range past {
		if _, ok := out[se.EventID]; ok {
			continue
		}
		out[se.EventID] = EventResult{
			EventID:   se.EventID,
			HomeTeam:  se.HomeTeam,
			AwayTeam:  se.AwayTeam,
			HomeScore: se.HomeScore,
			AwayScore: se.AwayScore,
		}
	}
	return out
}

// SettleEvent settles every open bet on one finished event. Safe to call
// concurrently and repeatedly: the guard dedupes cheaply, the conditional
// status updates are the correctness boundary.
func (w *Worker) SettleEvent(ctx context.Context, res EventResult) error {
	if !w.guards.Acquire(res.EventID) {
		return nil
	}
	defer w.guards.Release(res.EventID)

	bets, err := w.bets.ListSettleableByEvent(ctx, w.db, res.EventID)
	if err != nil {
		return fmt.Errorf("reload bets: %w", err)
	}

	settledCount := 0
	for i := range bets {
		bet := &bets[i]
		status, gross := SettleOne(bet, res)
		changed, err := w.applyOutcome(ctx, bet, status, gross)
		if err != nil {
			return err
		}
		// a lost CAS race means another settler owns this bet; its count too
		if changed {
			settledCount++
		}
	}

	err = w.settled.Insert(ctx, w.db, &domain.SettledEvent{
		EventID:     res.EventID,
		HomeTeam:    res.HomeTeam,
		AwayTeam:    res.AwayTeam,
		HomeScore:   res.HomeScore,
		AwayScore:   res.AwayScore,
		Winner:      res.Winner(),
		BetsSettled: settledCount,
		SettledAt:   time.Now().UTC(),
	})
	if err != nil {
		if appErr, ok := err.(*domain.AppError); ok && appErr.Status == 409 {
			return nil
		}
		return fmt.Errorf("record settled event: %w", err)
	}

	se := &domain.SettledEvent{EventID: res.EventID, HomeScore: res.HomeScore, AwayScore: res.AwayScore, Winner: res.Winner()}
	if err := w.outbox.Insert(ctx, w.db, domain.NewEventSettledEvent(se)); err != nil {
		w.logger.Warn("outbox insert failed", "event", res.EventID, "error", err)
	}
	return nil
}

// applyOutcome performs the atomic transition and the won-path accounting.
// Returns whether this call won the transition.
func (w *Worker) applyOutcome(ctx context.Context, bet *domain.Bet, status domain.BetStatus, gross float64) (bool, error) {
	from := []domain.BetStatus{domain.BetPending, domain.BetConfirmed}
	var payout *float64
	if status == domain.BetWon {
		payout = &gross
	}
	changed, err := w.bets.UpdateStatus(ctx, w.db, bet.ID, from, status, payout)
	if err != nil {
		return false, fmt.Errorf("transition bet %s: %w", bet.ID, err)
	}
	if !changed {
		// another settler got here first
		return false, nil
	}
	w.metrics.BetsSettled.WithLabelValues(string(status)).Inc()

	if err := w.outbox.Insert(ctx, w.db, domain.NewBetSettledEvent(bet, status, gross)); err != nil {
		w.logger.Warn("outbox insert failed", "bet", bet.ID, "error", err)
	}

	switch status {
	case domain.BetWon:
		return true, w.payWinner(ctx, bet, gross)
	case domain.BetLost:
		w.logger.Info("bet lost", "bet", bet.ID, "revenue", bet.Stake, "currency", bet.Currency)
	case domain.BetVoid:
		// voided funds stay in the treasury; the contract already holds them
		w.logger.Info("bet voided", "bet", bet.ID, "currency", bet.Currency)
	}
	return true, nil
}

// payWinner credits the net amount, reverting the transition when the credit
// fails, then attempts the on-chain payout. A failed payout leaves the bet
// won for a later retry; it is never paid twice.
func (w *Worker) payWinner(ctx context.Context, bet *domain.Bet, gross float64) error {
	profit := gross - bet.Stake
	if profit < 0 {
		profit = 0
	}
	fee := domain.Round2(profit * 0.01)
	net := domain.Round2(gross - fee)

	if err := w.users.CreditBalance(ctx, w.db, bet.Wallet, bet.Currency, net); err != nil {
		if _, revertErr := w.bets.UpdateStatus(ctx, w.db, bet.ID,
			[]domain.BetStatus{domain.BetWon}, domain.BetPending, nil); revertErr != nil {
			w.logger.Error("credit revert failed", "bet", bet.ID, "error", revertErr)
		}
		return fmt.Errorf("settlement reverted: credit failed for bet %s: %w", bet.ID, err)
	}
	w.logger.Info("winner credited", "bet", bet.ID, "net", net, "fee", fee, "currency", bet.Currency)

	txHash, err := w.executor.Send(ctx, bet.Wallet, net, bet.Currency)
	if err != nil {
		w.metrics.PayoutFailures.Inc()
		w.logger.Error("payout failed, bet stays won for retry", "bet", bet.ID, "error", err)
		return nil
	}
	changed, err := w.bets.MarkPaidOut(ctx, w.db, bet.ID, txHash)
	if err != nil {
		w.logger.Error("paid_out flip failed", "bet", bet.ID, "tx", txHash, "error", err)
		return nil
	}
	if changed {
		w.metrics.PayoutsSent.WithLabelValues(string(bet.Currency)).Inc()
		if err := w.outbox.Insert(ctx, w.db, domain.NewPayoutSentEvent(bet.Wallet, txHash, net, bet.Currency)); err != nil {
			w.logger.Warn("outbox insert failed", "bet", bet.ID, "error", err)
		}
	}
	w.sleep(ctx, payoutGap)
	return nil
}

// SettleBet is the admin path: force one bet to an outcome. Refuses when the
// bet is already terminal.
func (w *Worker) SettleBet(ctx context.Context, betID string, outcome domain.BetStatus) (*domain.Bet, error) {
	switch outcome {
	case domain.BetWon, domain.BetLost, domain.BetVoid:
	default:
		return nil, domain.ErrValidation("INVALID_OUTCOME", "outcome must be won, lost, or void")
	}

	bet, err := w.bets.FindByID(ctx, w.db, betID)
	if err != nil {
		return nil, err
	}
	if bet == nil {
		return nil, domain.ErrNotFound("bet", betID)
	}
	if bet.Status.Terminal() || bet.Status == domain.BetWon {
		return nil, domain.ErrConflict(fmt.Sprintf("bet %s already settled", betID))
	}

	gross := 0.0
	if outcome == domain.BetWon {
		gross = bet.PotentialPayout
	}
	changed, err := w.applyOutcome(ctx, bet, outcome, gross)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, domain.ErrConflict(fmt.Sprintf("bet %s already settled", betID))
	}
	return w.bets.FindByID(ctx, w.db, betID)
}

// CashOut partial-settles a live bet at its current value minus the 1% fee.
func (w *Worker) CashOut(ctx context.Context, betID string, currentOdds, percentageWinning float64) (*domain.Bet, float64, error) {
	bet, err := w.bets.FindByID(ctx, w.db, betID)
	if err != nil {
		return nil, 0, err
	}
	if bet == nil {
		return nil, 0, domain.ErrNotFound("bet", betID)
	}
	if bet.Status != domain.BetPending {
		return nil, 0, domain.ErrConflict(fmt.Sprintf("bet %s is not open for cash-out", betID))
	}
	if currentOdds <= 0 || percentageWinning < 0 || percentageWinning > 1 {
		return nil, 0, domain.ErrValidation("INVALID_CASH_OUT", "bad cash-out parameters")
	}

	value := domain.Round2(bet.Stake * currentOdds * percentageWinning)
	fee := domain.Round2(value * 0.01)
	net := domain.Round2(value - fee)

	changed, err := w.bets.UpdateStatus(ctx, w.db, betID,
		[]domain.BetStatus{domain.BetPending}, domain.BetCashedOut, &value)
	if err != nil {
		return nil, 0, err
	}
	if !changed {
		return nil, 0, domain.ErrConflict(fmt.Sprintf("bet %s already settled", betID))
	}
	w.metrics.BetsSettled.WithLabelValues(string(domain.BetCashedOut)).Inc()

	if err := w.users.CreditBalance(ctx, w.db, bet.Wallet, bet.Currency, net); err != nil {
		if _, revertErr := w.bets.UpdateStatus(ctx, w.db, betID,
			[]domain.BetStatus{domain.BetCashedOut}, domain.BetPending, nil); revertErr != nil {
			w.logger.Error("cash-out revert failed", "bet", betID, "error", revertErr)
		}
		return nil, 0, domain.ErrInternal("settlement reverted", err)
	}

	updated, err := w.bets.FindByID(ctx, w.db, betID)
	if err != nil {
		return nil, 0, err
	}
	return updated, net, nil
}
