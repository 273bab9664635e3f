package events

import (
	"Quizrace/models/postgres"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndMarshal(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &postgres.Round{ID: 4, GameID: 2, RoundNumber: 3}

	e, err := New(RefundIntent, r, RefundIntentPayload{
		ParticipantID: 11,
		Email:         "ana@example.com",
		Amount:        decimal.RequireFromString("2.50"),
		Currency:      "EUR",
		Reason:        "round_cancelled",
	}, at)
	require.NoError(t, err)
	assert.Len(t, e.ID, 36)
	assert.Equal(t, uint(2), e.GameID)
	assert.Equal(t, uint(4), e.RoundID)
	assert.Equal(t, "refund_intent", e.Type)
	assert.Nil(t, e.PublishedAt)

	data, err := Marshal(e)
	require.NoError(t, err)

	var decoded struct {
		Type    string `json:"type"`
		RoundID uint   `json:"round_id"`
		Payload struct {
			ParticipantID uint   `json:"participant_id"`
			Amount        string `json:"amount"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "refund_intent", decoded.Type)
	assert.Equal(t, uint(4), decoded.RoundID)
	assert.Equal(t, uint(11), decoded.Payload.ParticipantID)
	assert.Equal(t, "2.5", decoded.Payload.Amount)
}
