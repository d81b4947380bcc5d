package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wurlus/platform/internal/domain"
)

type parlayRepo struct{}

// NewParlayRepository returns a pgx-backed ParlayRepository.
func NewParlayRepository() ParlayRepository {
	return &parlayRepo{}
}

const parlayColumns = `
	id, wallet_address, legs, combined_odds, stake, currency,
	potential_payout, status, tx_hash, on_chain_bet_id, created_at, settled_at`

func scanParlay(row interface{ Scan(...any) error }) (*domain.Parlay, error) {
	var p domain.Parlay
	var legs []byte
	var txHash, onChainBetID *string
	err := row.Scan(
		&p.ID, &p.Wallet, &legs, &p.CombinedOdds, &p.Stake, &p.Currency,
		&p.Payout, &p.Status, &txHash, &onChainBetID, &p.PlacedAt, &p.SettledAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(legs, &p.Legs); err != nil {
		return nil, fmt.Errorf("decode parlay legs: %w", err)
	}
	if txHash != nil {
		p.TxHash = *txHash
	}
	if onChainBetID != nil {
		p.OnChainBetID = *onChainBetID
	}
	return &p, nil
}

func (r *parlayRepo) Insert(ctx context.Context, db DBTX, parlay *domain.Parlay) error {
	legs, err := json.Marshal(parlay.Legs)
	if err != nil {
		return fmt.Errorf("encode parlay legs: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO parlays (`+parlayColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		parlay.ID, parlay.Wallet, legs, parlay.CombinedOdds, parlay.Stake, parlay.Currency,
		parlay.Payout, parlay.Status, nullStr(parlay.TxHash), nullStr(parlay.OnChainBetID),
		parlay.PlacedAt, parlay.SettledAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict(fmt.Sprintf("parlay %s already exists", parlay.ID))
	}
	return err
}

func (r *parlayRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Parlay, error) {
	return scanParlay(db.QueryRow(ctx, `SELECT `+parlayColumns+` FROM parlays WHERE id = $1`, id))
}

func (r *parlayRepo) ListByWallet(ctx context.Context, db DBTX, wallet string) ([]domain.Parlay, error) {
	rows, err := db.Query(ctx, `
		SELECT `+parlayColumns+` FROM parlays
		WHERE wallet_address = $1 ORDER BY created_at DESC LIMIT 100`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parlays []domain.Parlay
	for rows.Next() {
		p, err := scanParlay(rows)
		if err != nil {
			return nil, err
		}
		parlays = append(parlays, *p)
	}
	return parlays, rows.Err()
}

func (r *parlayRepo) UpdateStatus(ctx context.Context, db DBTX, id string, from []domain.BetStatus, to domain.BetStatus, payout *float64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE parlays
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
