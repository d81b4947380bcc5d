package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wurlus/platform/internal/domain"
)

type settledEventRepo struct{}

// NewSettledEventRepository returns a pgx-backed SettledEventRepository.
func NewSettledEventRepository() SettledEventRepository {
	return &settledEventRepo{}
}

func (r *settledEventRepo) Exists(ctx context.Context, db DBTX, eventID string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM settled_events WHERE event_id = $1)`, eventID).Scan(&exists)
	return exists, err
}

func (r *settledEventRepo) Insert(ctx context.Context, db DBTX, e *domain.SettledEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO settled_events
			(event_id, home_team, away_team, home_score, away_score, winner, bets_settled, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.EventID, e.HomeTeam, e.AwayTeam, e.HomeScore, e.AwayScore, e.Winner, e.BetsSettled, e.SettledAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict(fmt.Sprintf("event %s already settled", e.EventID))
	}
	return err
}

func (r *settledEventRepo) ListSince(ctx context.Context, db DBTX, since time.Time) ([]domain.SettledEvent, error) {
	rows, err := db.Query(ctx, `
		SELECT event_id, home_team, away_team, home_score, away_score, winner, bets_settled, settled_at
		FROM settled_events WHERE settled_at >= $1
		ORDER BY settled_at DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SettledEvent
	for rows.Next() {
		var e domain.SettledEvent
		if err := rows.Scan(&e.EventID, &e.HomeTeam, &e.AwayTeam, &e.HomeScore, &e.AwayScore,
			&e.Winner, &e.BetsSettled, &e.SettledAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
