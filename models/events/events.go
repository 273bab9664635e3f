package events

import (
	"Quizrace/models/postgres"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type EventType string

const (
	RoundCreated   EventType = "round_created"
	RoundFull      EventType = "round_full"
	RoundCompleted EventType = "round_completed"
	RoundCancelled EventType = "round_cancelled"
	RefundIntent   EventType = "refund_intent"
)

type RoundCreatedPayload struct {
	RoundNumber int       `json:"round_number"`
	StartedAt   time.Time `json:"started_at"`
}

type RoundFullPayload struct {
	RoundNumber          int       `json:"round_number"`
	PaidParticipantCount int       `json:"paid_participant_count"`
	FullAt               time.Time `json:"full_at"`
}

type RoundCompletedPayload struct {
	RoundNumber         int       `json:"round_number"`
	WinnerParticipantID *uint     `json:"winner_participant_id"`
	WinnerTotalTimeMs   *int64    `json:"winner_total_time_ms,omitempty"`
	CompletedAt         time.Time `json:"completed_at"`
}

type RoundCancelledPayload struct {
	RoundNumber int       `json:"round_number"`
	Reason      string    `json:"reason"`
	Refunds     int       `json:"refunds"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// RefundIntentPayload asks the payment provider to refund one participant.
type RefundIntentPayload struct {
	ParticipantID uint            `json:"participant_id"`
	Email         string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

// New builds an outbox row for round r.
func New(t EventType, r *postgres.Round, payload any, at time.Time) (postgres.RoundEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return postgres.RoundEvent{}, fmt.Errorf("error marshaling %s payload: %v", t, err)
	}
	return postgres.RoundEvent{
		ID:        uuid.NewString(),
		GameID:    r.GameID,
		RoundID:   r.ID,
		Type:      string(t),
		Payload:   datatypes.JSON(data),
		CreatedAt: at,
	}, nil
}

// Envelope is the wire shape published to subscribers.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	GameID    uint            `json:"game_id"`
	RoundID   uint            `json:"round_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func ToEnvelope(e postgres.RoundEvent) Envelope {
	return Envelope{
		ID:        e.ID,
		Type:      e.Type,
		GameID:    e.GameID,
		RoundID:   e.RoundID,
		Payload:   json.RawMessage(e.Payload),
		CreatedAt: e.CreatedAt,
	}
}

func Marshal(e postgres.RoundEvent) ([]byte, error) {
	return json.Marshal(ToEnvelope(e))
}
