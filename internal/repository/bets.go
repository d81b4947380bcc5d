package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wurlus/platform/internal/domain"
)

type betRepo struct{}

// NewBetRepository returns a pgx-backed BetRepository.
func NewBetRepository() BetRepository {
	return &betRepo{}
}

const betColumns = `
	id, wallet_address, event_id, event_name, home_team, away_team,
	market_id, outcome_id, prediction, odds, stake, currency,
	potential_payout, status, is_live, match_minute, platform_fee,
	payment_method, tx_hash, on_chain_bet_id, settlement_tx, parlay_id,
	created_at, settled_at`

func scanBet(row interface{ Scan(...any) error }) (*domain.Bet, error) {
	var b domain.Bet
	var minute *int
	var paymentMethod, txHash, onChainBetID, settlementTx, parlayID *string
	err := row.Scan(
		&b.ID, &b.Wallet, &b.EventID, &b.EventName, &b.HomeTeam, &b.AwayTeam,
		&b.MarketID, &b.OutcomeID, &b.Prediction, &b.Odds, &b.Stake, &b.Currency,
		&b.PotentialPayout, &b.Status, &b.IsLive, &minute, &b.PlatformFee,
		&paymentMethod, &txHash, &onChainBetID, &settlementTx, &parlayID,
		&b.PlacedAt, &b.SettledAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if minute != nil {
		b.MatchMinute = *minute
	}
	if paymentMethod != nil {
		b.PaymentMethod = *paymentMethod
	}
	if txHash != nil {
		b.TxHash = *txHash
	}
	if onChainBetID != nil {
		b.OnChainBetID = *onChainBetID
	}
	if settlementTx != nil {
		b.SettlementTx = *settlementTx
	}
	if parlayID != nil {
		b.ParlayID = *parlayID
	}
	return &b, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *betRepo) Insert(ctx context.Context, db DBTX, bet *domain.Bet) error {
	var minute *int
	if bet.IsLive {
		minute = &bet.MatchMinute
	}
	_, err := db.Exec(ctx, `
		INSERT INTO bets (`+betColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		bet.ID, bet.Wallet, bet.EventID, bet.EventName, bet.HomeTeam, bet.AwayTeam,
		bet.MarketID, bet.OutcomeID, bet.Prediction, bet.Odds, bet.Stake, bet.Currency,
		bet.PotentialPayout, bet.Status, bet.IsLive, minute, bet.PlatformFee,
		nullStr(bet.PaymentMethod), nullStr(bet.TxHash), nullStr(bet.OnChainBetID),
		nullStr(bet.SettlementTx), nullStr(bet.ParlayID),
		bet.PlacedAt, bet.SettledAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict(fmt.Sprintf("bet %s already exists", bet.ID))
	}
	return err
}

func (r *betRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Bet, error) {
	return scanBet(db.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id))
}

func (r *betRepo) ListByWallet(ctx context.Context, db DBTX, wallet string, status *domain.BetStatus) ([]domain.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE wallet_address = $1`
	args := []any{wallet}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC LIMIT 200`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (r *betRepo) CountSince(ctx context.Context, db DBTX, wallet string, since time.Time) (int, error) {
	var n int
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM bets
		WHERE wallet_address = $1 AND created_at >= $2 AND status <> 'void'`,
		wallet, since).Scan(&n)
	return n, err
}

func (r *betRepo) LastPlacedAt(ctx context.Context, db DBTX, wallet string) (*time.Time, error) {
	var t time.Time
	err := db.QueryRow(ctx, `
		SELECT created_at FROM bets
		WHERE wallet_address = $1
		ORDER BY created_at DESC LIMIT 1`, wallet).Scan(&t)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *betRepo) CountOnEvent(ctx context.Context, db DBTX, wallet, eventID string) (int, error) {
	var n int
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM bets
		WHERE wallet_address = $1 AND event_id = $2 AND status <> 'void'`,
		wallet, eventID).Scan(&n)
	return n, err
}

func (r *betRepo) HasOpenDuplicate(ctx context.Context, db DBTX, wallet, eventID, marketID, outcomeID string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bets
			WHERE wallet_address = $1 AND event_id = $2
			  AND market_id = $3 AND outcome_id = $4
			  AND status IN ('pending','confirmed'))`,
		wallet, eventID, marketID, outcomeID).Scan(&exists)
	return exists, err
}

func (r *betRepo) HasUsedFreeBet(ctx context.Context, db DBTX, wallet string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bets
			WHERE wallet_address = $1 AND payment_method = $2)`,
		wallet, domain.PaymentFreeBet).Scan(&exists)
	return exists, err
}

func (r *betRepo) ListSettleable(ctx context.Context, db DBTX) ([]domain.Bet, error) {
	return r.listByStatuses(ctx, db, `status IN ('pending','confirmed')`)
}

func (r *betRepo) ListSettleableByEvent(ctx context.Context, db DBTX, eventID string) ([]domain.Bet, error) {
	rows, err := db.Query(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE event_id = $1 AND status IN ('pending','confirmed')`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (r *betRepo) listByStatuses(ctx context.Context, db DBTX, where string) ([]domain.Bet, error) {
	rows, err := db.Query(ctx, `SELECT `+betColumns+` FROM bets WHERE `+where)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (r *betRepo) UpdateStatus(ctx context.Context, db DBTX, id string, from []domain.BetStatus, to domain.BetStatus, payout *float64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE bets
		SET status = $1,
		    potential_payout = COALESCE($2, potential_payout),
		    settled_at = CASE WHEN $1 IN ('won','lost','void','paid_out','cashed_out') THEN now() ELSE settled_at END
		WHERE id = $3 AND status = ANY($4)`,
		to, payout, id, statusStrings(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *betRepo) MarkPaidOut(ctx context.Context, db DBTX, id, txHash string) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE bets SET status = 'paid_out', settlement_tx = $2, settled_at = now()
		WHERE id = $1 AND status = 'won'`, id, txHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *betRepo) ListSettledBetween(ctx context.Context, db DBTX, from, to, cutoff time.Time) ([]domain.Bet, error) {
	lo := from
	if cutoff.After(lo) {
		lo = cutoff
	}
	rows, err := db.Query(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE settled_at >= $1 AND settled_at < $2
		  AND status IN ('won','lost','paid_out')`, lo, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (r *betRepo) SumOpenLiabilities(ctx context.Context, db DBTX) (map[domain.Currency]float64, error) {
	rows, err := db.Query(ctx, `
		SELECT currency, COALESCE(sum(potential_payout), 0)
		FROM bets WHERE status IN ('pending','confirmed')
		GROUP BY currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Currency]float64)
	for rows.Next() {
		var c domain.Currency
		var sum float64
		if err := rows.Scan(&c, &sum); err != nil {
			return nil, err
		}
		out[c] = sum
	}
	return out, rows.Err()
}

func statusStrings(statuses []domain.BetStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
