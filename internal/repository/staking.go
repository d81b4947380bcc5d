package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wurlus/platform/internal/domain"
)

type stakeRepo struct{}

// NewStakeRepository returns a pgx-backed StakeRepository.
func NewStakeRepository() StakeRepository {
	return &stakeRepo{}
}

const stakeColumns = `
	id, wallet_address, amount, staked_at, locked_until, active, accumulated, tx_hash, unstaking_at`

func scanStake(row interface{ Scan(...any) error }) (*domain.Stake, error) {
	var s domain.Stake
	err := row.Scan(
		&s.ID, &s.Wallet, &s.Amount, &s.StakedAt, &s.LockedUntil,
		&s.Active, &s.Accumulated, &s.TxHash, &s.UnstakingAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *stakeRepo) Insert(ctx context.Context, db DBTX, s *domain.Stake) error {
	err := db.QueryRow(ctx, `
		INSERT INTO wurlus_staking (wallet_address, amount, staked_at, locked_until, active, tx_hash)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		domain.NormalizeWallet(s.Wallet), s.Amount, s.StakedAt, s.LockedUntil, s.Active, s.TxHash,
	).Scan(&s.ID)
	if isUniqueViolation(err) {
		return domain.ErrConflict(fmt.Sprintf("stake tx %s already recorded", s.TxHash))
	}
	return err
}

func (r *stakeRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.Stake, error) {
	return scanStake(db.QueryRow(ctx,
		`SELECT `+stakeColumns+` FROM wurlus_staking WHERE id = $1`, id))
}

func (r *stakeRepo) listWhere(ctx context.Context, db DBTX, where string, args ...any) ([]domain.Stake, error) {
	rows, err := db.Query(ctx,
		`SELECT `+stakeColumns+` FROM wurlus_staking WHERE `+where+` ORDER BY staked_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stakes []domain.Stake
	for rows.Next() {
		s, err := scanStake(rows)
		if err != nil {
			return nil, err
		}
		stakes = append(stakes, *s)
	}
	return stakes, rows.Err()
}

func (r *stakeRepo) ListActive(ctx context.Context, db DBTX) ([]domain.Stake, error) {
	return r.listWhere(ctx, db, `active = true`)
}

func (r *stakeRepo) ListByWallet(ctx context.Context, db DBTX, wallet string) ([]domain.Stake, error) {
	return r.listWhere(ctx, db, `wallet_address = $1`, domain.NormalizeWallet(wallet))
}

func (r *stakeRepo) AdvanceAccumulated(ctx context.Context, db DBTX, id int64, value int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE wurlus_staking SET accumulated = $2
		WHERE id = $1 AND active = true AND accumulated < $2`, id, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *stakeRepo) Deactivate(ctx context.Context, db DBTX, id int64, at time.Time, accumulated int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE wurlus_staking
		SET active = false, unstaking_at = $2, accumulated = $3
		WHERE id = $1 AND active = true`, id, at, accumulated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *stakeRepo) ResetAccrual(ctx context.Context, db DBTX, id int64, now time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE wurlus_staking
		SET accumulated = 0, staked_at = $2
		WHERE id = $1 AND active = true`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
