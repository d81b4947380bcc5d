package repository

import (
	"context"

	"github.com/wurlus/platform/internal/domain"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_outbox (event_id, aggregate_type, aggregate_id, event_type, payload, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		draft.EventID, draft.AggregateType, draft.AggregateID, draft.EventType,
		draft.Payload, draft.OccurredAt)
	return err
}
