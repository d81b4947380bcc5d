package repository

import (
	"context"
	"fmt"

	"github.com/wurlus/platform/internal/domain"
)

type referralRepo struct{}

// NewReferralRepository returns a pgx-backed ReferralRepository.
func NewReferralRepository() ReferralRepository {
	return &referralRepo{}
}

func (r *referralRepo) Insert(ctx context.Context, db DBTX, ref *domain.Referral) error {
	err := db.QueryRow(ctx, `
		INSERT INTO referrals (referrer_wallet, referred_wallet, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		domain.NormalizeWallet(ref.Referrer), domain.NormalizeWallet(ref.Referred), ref.Status,
	).Scan(&ref.ID, &ref.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict(fmt.Sprintf("wallet %s already referred", ref.Referred))
	}
	return err
}

func (r *referralRepo) FindPendingByReferred(ctx context.Context, db DBTX, referred string) (*domain.Referral, error) {
	var ref domain.Referral
	err := db.QueryRow(ctx, `
		SELECT id, referrer_wallet, referred_wallet, status, created_at
		FROM referrals
		WHERE referred_wallet = $1 AND status = 'pending'`,
		domain.NormalizeWallet(referred)).Scan(
		&ref.ID, &ref.Referrer, &ref.Referred, &ref.Status, &ref.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

func (r *referralRepo) MarkRewarded(ctx context.Context, db DBTX, id int64) (bool, error) {
	tag, err := db.Exec(ctx,
		`UPDATE referrals SET status = 'rewarded' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type depositRepo struct{}

// NewDepositRepository returns a pgx-backed DepositRepository.
func NewDepositRepository() DepositRepository {
	return &depositRepo{}
}

func (r *depositRepo) Insert(ctx context.Context, db DBTX, d *domain.Deposit) error {
	err := db.QueryRow(ctx, `
		INSERT INTO deposits (wallet_address, amount, currency, tx_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		domain.NormalizeWallet(d.Wallet), d.Amount, d.Currency, d.TxHash,
	).Scan(&d.ID, &d.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict(fmt.Sprintf("deposit tx %s already credited", d.TxHash))
	}
	return err
}

func (r *depositRepo) Exists(ctx context.Context, db DBTX, txHash string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deposits WHERE tx_hash = $1)`, txHash).Scan(&exists)
	return exists, err
}
