package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxDraft is an event staged in the transactional outbox for later
// publication to Kafka.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func newDraft(aggregateType, aggregateID, eventType string, payload any) OutboxDraft {
	raw, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		OccurredAt:    time.Now().UTC(),
	}
}

// NewBetPlacedEvent stages a bet_placed event.
func NewBetPlacedEvent(b *Bet) OutboxDraft {
	return newDraft("bet", b.ID, "bet_placed", b)
}

// NewBetSettledEvent stages a bet_settled event.
func NewBetSettledEvent(b *Bet, status BetStatus, payout float64) OutboxDraft {
	return newDraft("bet", b.ID, "bet_settled", map[string]any{
		"betId":   b.ID,
		"wallet":  b.Wallet,
		"eventId": b.EventID,
		"status":  status,
		"payout":  payout,
	})
}

// NewPayoutSentEvent stages a payout_sent event.
func NewPayoutSentEvent(wallet, txHash string, amount float64, currency Currency) OutboxDraft {
	return newDraft("payout", wallet, "payout_sent", map[string]any{
		"wallet":   wallet,
		"txHash":   txHash,
		"amount":   amount,
		"currency": currency,
	})
}

// NewEventSettledEvent stages an event_settled event.
func NewEventSettledEvent(se *SettledEvent) OutboxDraft {
	return newDraft("event", se.EventID, "event_settled", se)
}
