package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wurlus/platform/internal/domain"
)

type revenueClaimRepo struct{}

// NewRevenueClaimRepository returns a pgx-backed RevenueClaimRepository.
func NewRevenueClaimRepository() RevenueClaimRepository {
	return &revenueClaimRepo{}
}

func (r *revenueClaimRepo) Insert(ctx context.Context, db DBTX, claim *domain.RevenueClaim) error {
	err := db.QueryRow(ctx, `
		INSERT INTO revenue_claims
			(wallet_address, week_start, holder_balance, share_pct, amount_sui, amount_sbets)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, claimed_at`,
		domain.NormalizeWallet(claim.Wallet), claim.WeekStart, claim.Balance,
		claim.SharePct, claim.AmountSUI, claim.AmountSBETS,
	).Scan(&claim.ID, &claim.ClaimedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict(fmt.Sprintf("wallet %s already claimed this week", claim.Wallet))
	}
	return err
}

func (r *revenueClaimRepo) Find(ctx context.Context, db DBTX, wallet string, weekStart time.Time) (*domain.RevenueClaim, error) {
	var c domain.RevenueClaim
	var txSUI, txSBETS *string
	err := db.QueryRow(ctx, `
		SELECT id, wallet_address, week_start, holder_balance, share_pct,
		       amount_sui, amount_sbets, tx_hash_sui, tx_hash_sbets, claimed_at
		FROM revenue_claims
		WHERE wallet_address = $1 AND week_start = $2`,
		domain.NormalizeWallet(wallet), weekStart).Scan(
		&c.ID, &c.Wallet, &c.WeekStart, &c.Balance, &c.SharePct,
		&c.AmountSUI, &c.AmountSBETS, &txSUI, &txSBETS, &c.ClaimedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if txSUI != nil {
		c.TxHashSUI = *txSUI
	}
	if txSBETS != nil {
		c.TxHashSBETS = *txSBETS
	}
	return &c, nil
}

func (r *revenueClaimRepo) SetTxHashes(ctx context.Context, db DBTX, id int64, txSUI, txSBETS string) error {
	_, err := db.Exec(ctx, `
		UPDATE revenue_claims
		SET tx_hash_sui = NULLIF($2,''), tx_hash_sbets = NULLIF($3,'')
		WHERE id = $1`, id, txSUI, txSBETS)
	return err
}
