package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wurlus/platform/internal/domain"
)

type predictionRepo struct{}

// NewPredictionRepository returns a pgx-backed PredictionRepository.
func NewPredictionRepository() PredictionRepository {
	return &predictionRepo{}
}

const predictionColumns = `
	id, creator_wallet, title, description, category, end_date,
	yes_total, no_total, participants, status, resolved_outcome, resolved_at, created_at`

func scanPrediction(row interface{ Scan(...any) error }) (*domain.SocialPrediction, error) {
	var p domain.SocialPrediction
	var description, category *string
	err := row.Scan(
		&p.ID, &p.Creator, &p.Title, &description, &category, &p.EndDate,
		&p.YesTotal, &p.NoTotal, &p.Participants, &p.Status,
		&p.ResolvedOutcome, &p.ResolvedAt, &p.CreatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if description != nil {
		p.Description = *description
	}
	if category != nil {
		p.Category = *category
	}
	return &p, nil
}

func (r *predictionRepo) Insert(ctx context.Context, db DBTX, p *domain.SocialPrediction) error {
	return db.QueryRow(ctx, `
		INSERT INTO social_predictions
			(creator_wallet, title, description, category, end_date, status)
		VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6)
		RETURNING id, created_at`,
		domain.NormalizeWallet(p.Creator), p.Title, p.Description, p.Category, p.EndDate, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *predictionRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.SocialPrediction, error) {
	return scanPrediction(db.QueryRow(ctx,
		`SELECT `+predictionColumns+` FROM social_predictions WHERE id = $1`, id))
}

func (r *predictionRepo) listWhere(ctx context.Context, db DBTX, where string, args ...any) ([]domain.SocialPrediction, error) {
	rows, err := db.Query(ctx,
		`SELECT `+predictionColumns+` FROM social_predictions WHERE `+where+` ORDER BY end_date ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var preds []domain.SocialPrediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		preds = append(preds, *p)
	}
	return preds, rows.Err()
}

func (r *predictionRepo) ListActive(ctx context.Context, db DBTX) ([]domain.SocialPrediction, error) {
	return r.listWhere(ctx, db, `status = 'active'`)
}

func (r *predictionRepo) ListExpiredActive(ctx context.Context, db DBTX, now time.Time) ([]domain.SocialPrediction, error) {
	return r.listWhere(ctx, db, `status = 'active' AND end_date < $1`, now)
}

func (r *predictionRepo) AddBet(ctx context.Context, db DBTX, bet *domain.SocialPredictionBet) error {
	err := db.QueryRow(ctx, `
		INSERT INTO social_prediction_bets (prediction_id, wallet_address, side, amount, tx_id)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM social_predictions WHERE id = $1 AND status = 'active')
		RETURNING id, created_at`,
		bet.PredictionID, domain.NormalizeWallet(bet.Wallet), bet.Side, bet.Amount, bet.TxID,
	).Scan(&bet.ID, &bet.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict(fmt.Sprintf("tx %s already used", bet.TxID))
		}
		if noRows(err) {
			return domain.ErrValidation("PREDICTION_CLOSED", "prediction is not accepting bets")
		}
		return err
	}

	column := "yes_total"
	if bet.Side == domain.SideNo {
		column = "no_total"
	}
	_, err = db.Exec(ctx, `
		UPDATE social_predictions
		SET `+column+` = `+column+` + $1, participants = participants + 1
		WHERE id = $2 AND status = 'active'`,
		bet.Amount, bet.PredictionID)
	return err
}

func (r *predictionRepo) ListBets(ctx context.Context, db DBTX, predictionID int64) ([]domain.SocialPredictionBet, error) {
	rows, err := db.Query(ctx, `
		SELECT id, prediction_id, wallet_address, side, amount, tx_id, created_at
		FROM social_prediction_bets WHERE prediction_id = $1`, predictionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.SocialPredictionBet
	for rows.Next() {
		var b domain.SocialPredictionBet
		if err := rows.Scan(&b.ID, &b.PredictionID, &b.Wallet, &b.Side, &b.Amount, &b.TxID, &b.CreatedAt); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (r *predictionRepo) Resolve(ctx context.Context, db DBTX, id int64, status domain.PredictionStatus, outcome *domain.PredictionSide, at time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE social_predictions
		SET status = $1, resolved_outcome = $2, resolved_at = $3
		WHERE id = $4 AND status = 'active'`,
		status, outcome, at, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *predictionRepo) SetStatus(ctx context.Context, db DBTX, id int64, status domain.PredictionStatus) error {
	_, err := db.Exec(ctx,
		`UPDATE social_predictions SET status = $1 WHERE id = $2`, status, id)
	return err
}

type challengeRepo struct{}

// NewChallengeRepository returns a pgx-backed ChallengeRepository.
func NewChallengeRepository() ChallengeRepository {
	return &challengeRepo{}
}

const challengeColumns = `
	id, creator_wallet, title, description, stake_amount, max_participants,
	current_participants, expires_at, status, winner_side, created_at`

func scanChallenge(row interface{ Scan(...any) error }) (*domain.Challenge, error) {
	var c domain.Challenge
	var description, winnerSide *string
	err := row.Scan(
		&c.ID, &c.Creator, &c.Title, &description, &c.StakeAmount, &c.MaxParticipants,
		&c.CurrentParticipants, &c.ExpiresAt, &c.Status, &winnerSide, &c.CreatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if description != nil {
		c.Description = *description
	}
	if winnerSide != nil {
		c.WinnerSide = *winnerSide
	}
	return &c, nil
}

func (r *challengeRepo) Insert(ctx context.Context, db DBTX, c *domain.Challenge) error {
	return db.QueryRow(ctx, `
		INSERT INTO social_challenges
			(creator_wallet, title, description, stake_amount, max_participants, expires_at, status)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7)
		RETURNING id, created_at`,
		domain.NormalizeWallet(c.Creator), c.Title, c.Description, c.StakeAmount,
		c.MaxParticipants, c.ExpiresAt, c.Status,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *challengeRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.Challenge, error) {
	return scanChallenge(db.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM social_challenges WHERE id = $1`, id))
}

func (r *challengeRepo) listWhere(ctx context.Context, db DBTX, where string, args ...any) ([]domain.Challenge, error) {
	rows, err := db.Query(ctx,
		`SELECT `+challengeColumns+` FROM social_challenges WHERE `+where+` ORDER BY expires_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challenges []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (r *challengeRepo) ListOpen(ctx context.Context, db DBTX) ([]domain.Challenge, error) {
	return r.listWhere(ctx, db, `status = 'open'`)
}

func (r *challengeRepo) ListExpiredOpen(ctx context.Context, db DBTX, now time.Time) ([]domain.Challenge, error) {
	return r.listWhere(ctx, db, `status = 'open' AND expires_at < $1`, now)
}

func (r *challengeRepo) Join(ctx context.Context, db DBTX, p *domain.ChallengeParticipant) error {
	err := db.QueryRow(ctx, `
		INSERT INTO social_challenge_participants (challenge_id, wallet_address, side, tx_hash)
		SELECT $1, $2, NULLIF($3,''), $4
		WHERE EXISTS (
			SELECT 1 FROM social_challenges
			WHERE id = $1 AND status = 'open'
			  AND current_participants < max_participants
			  AND creator_wallet <> $2)
		RETURNING id, joined_at`,
		p.ChallengeID, domain.NormalizeWallet(p.Wallet), p.Side, p.TxHash,
	).Scan(&p.ID, &p.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict(fmt.Sprintf("tx %s already used", p.TxHash))
		}
		if noRows(err) {
			return domain.ErrValidation("CHALLENGE_CLOSED", "challenge is full, closed, or own")
		}
		return err
	}

	_, err = db.Exec(ctx, `
		UPDATE social_challenges
		SET current_participants = current_participants + 1
		WHERE id = $1 AND status = 'open'`, p.ChallengeID)
	return err
}

func (r *challengeRepo) ListParticipants(ctx context.Context, db DBTX, challengeID int64) ([]domain.ChallengeParticipant, error) {
	rows, err := db.Query(ctx, `
		SELECT id, challenge_id, wallet_address, COALESCE(side,''), tx_hash, joined_at
		FROM social_challenge_participants WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []domain.ChallengeParticipant
	for rows.Next() {
		var p domain.ChallengeParticipant
		if err := rows.Scan(&p.ID, &p.ChallengeID, &p.Wallet, &p.Side, &p.TxHash, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *challengeRepo) Close(ctx context.Context, db DBTX, id int64, status domain.ChallengeStatus, winnerSide string) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE social_challenges
		SET status = $1, winner_side = NULLIF($2,'')
		WHERE id = $3 AND status = 'open'`,
		status, winnerSide, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *challengeRepo) SetStatus(ctx context.Context, db DBTX, id int64, status domain.ChallengeStatus) error {
	_, err := db.Exec(ctx,
		`UPDATE social_challenges SET status = $1 WHERE id = $2`, status, id)
	return err
}
