package repository

import (
	"context"
	"fmt"

	"github.com/wurlus/platform/internal/domain"
)

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

const userColumns = `
	wallet_address, display_name, free_bets, welcome_claimed, loyalty_points,
	total_volume_usd, balance_sui, balance_sbets, bonus_balance, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	var displayName *string
	err := row.Scan(
		&u.Wallet, &displayName, &u.FreeBets, &u.WelcomeClaimed, &u.LoyaltyPoints,
		&u.TotalVolumeUSD, &u.BalanceSUI, &u.BalanceSBETS, &u.BonusBalance, &u.CreatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	return &u, nil
}

func (r *userRepo) GetOrCreate(ctx context.Context, db DBTX, wallet string) (*domain.User, error) {
	wallet = domain.NormalizeWallet(wallet)
	row := db.QueryRow(ctx, `
		INSERT INTO users (wallet_address)
		VALUES ($1)
		ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		RETURNING `+userColumns, wallet)
	return scanUser(row)
}

func (r *userRepo) FindByWallet(ctx context.Context, db DBTX, wallet string) (*domain.User, error) {
	wallet = domain.NormalizeWallet(wallet)
	return scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, wallet))
}

func (r *userRepo) ListWallets(ctx context.Context, db DBTX) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT wallet_address FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func balanceColumn(currency domain.Currency) (string, error) {
	switch currency {
	case domain.CurrencySUI:
		return "balance_sui", nil
	case domain.CurrencySBETS:
		return "balance_sbets", nil
	}
	return "", fmt.Errorf("unknown currency %q", currency)
}

func (r *userRepo) CreditBalance(ctx context.Context, db DBTX, wallet string, currency domain.Currency, amount float64) error {
	col, err := balanceColumn(currency)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx,
		`UPDATE users SET `+col+` = `+col+` + $1 WHERE wallet_address = $2`,
		amount, domain.NormalizeWallet(wallet))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit balance: user %s not found", wallet)
	}
	return nil
}

func (r *userRepo) DebitBalance(ctx context.Context, db DBTX, wallet string, currency domain.Currency, amount float64) (bool, error) {
	col, err := balanceColumn(currency)
	if err != nil {
		return false, err
	}
	tag, err := db.Exec(ctx,
		`UPDATE users SET `+col+` = `+col+` - $1 WHERE wallet_address = $2 AND `+col+` >= $1`,
		amount, domain.NormalizeWallet(wallet))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepo) AddLoyaltyPoints(ctx context.Context, db DBTX, wallet string, points float64) error {
	_, err := db.Exec(ctx,
		`UPDATE users SET loyalty_points = loyalty_points + $1 WHERE wallet_address = $2`,
		points, domain.NormalizeWallet(wallet))
	return err
}

func (r *userRepo) AddVolumeUSD(ctx context.Context, db DBTX, wallet string, usd float64) error {
	_, err := db.Exec(ctx,
		`UPDATE users SET total_volume_usd = total_volume_usd + $1 WHERE wallet_address = $2`,
		usd, domain.NormalizeWallet(wallet))
	return err
}

func (r *userRepo) ConsumeFreeBet(ctx context.Context, db DBTX, wallet string) (bool, error) {
	tag, err := db.Exec(ctx,
		`UPDATE users SET free_bets = free_bets - 1 WHERE wallet_address = $1 AND free_bets > 0`,
		domain.NormalizeWallet(wallet))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepo) ConsumeBonus(ctx context.Context, db DBTX, wallet string, max float64) (float64, error) {
	var consumed float64
	err := db.QueryRow(ctx, `
		WITH prev AS (
			SELECT bonus_balance FROM users WHERE wallet_address = $2
		)
		UPDATE users u
		SET bonus_balance = u.bonus_balance - LEAST(u.bonus_balance, $1)
		FROM prev
		WHERE u.wallet_address = $2
		RETURNING LEAST(prev.bonus_balance, $1)`,
		max, domain.NormalizeWallet(wallet)).Scan(&consumed)
	if err != nil {
		if noRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return consumed, nil
}
