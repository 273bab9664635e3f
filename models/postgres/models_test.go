package postgres_test

import (
	"Quizrace/apperrors"
	"Quizrace/models/postgres"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validGame() postgres.Game {
	return postgres.Game{
		Name:                   "Friday quiz",
		MaxPlayers:             5,
		TotalQuestions:         3,
		FreeQuestions:          1,
		QuestionTimeoutSeconds: 10,
		EntryFee:               decimal.RequireFromString("2.50"),
		Currency:               "EUR",
	}
}

func TestGameValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *postgres.Game)
		valid  bool
	}{
		{"valid", func(g *postgres.Game) {}, true},
		{"last question free", func(g *postgres.Game) { g.FreeQuestions = 2 }, true},
		{"all questions free", func(g *postgres.Game) { g.FreeQuestions = 3 }, false},
		{"no free questions", func(g *postgres.Game) { g.FreeQuestions = 0 }, true},
		{"zero capacity", func(g *postgres.Game) { g.MaxPlayers = 0 }, false},
		{"no questions", func(g *postgres.Game) { g.TotalQuestions = 0 }, false},
		{"too many free questions", func(g *postgres.Game) { g.FreeQuestions = 4 }, false},
		{"zero timeout", func(g *postgres.Game) { g.QuestionTimeoutSeconds = 0 }, false},
		{"negative fee", func(g *postgres.Game) { g.EntryFee = decimal.NewFromInt(-1) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGame()
			tt.mutate(&g)
			err := g.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			}
		})
	}
}

func TestGameQuestionHelpers(t *testing.T) {
	g := validGame()
	assert.Equal(t, 10*time.Second, g.QuestionTimeout())
	assert.True(t, g.IsFree(1))
	assert.False(t, g.IsFree(2))
}

func TestEligibleForWin(t *testing.T) {
	total := 4 * time.Second
	admitted := time.Now()
	base := postgres.Participant{
		AdmittedAt:    &admitted,
		PaymentStatus: postgres.PaymentPaid,
		GameStatus:    postgres.GameCompleted,
		TotalTime:     &total,
	}
	assert.True(t, base.EligibleForWin())

	unpaid := base
	unpaid.PaymentStatus = postgres.PaymentRefunded
	assert.False(t, unpaid.EligibleForWin())

	fraud := base
	fraud.IsFraudulent = true
	assert.False(t, fraud.EligibleForWin())

	failed := base
	failed.GameStatus = postgres.GameFailed
	assert.False(t, failed.EligibleForWin())

	noTime := base
	noTime.TotalTime = nil
	assert.False(t, noTime.EligibleForWin())

	notAdmitted := base
	notAdmitted.AdmittedAt = nil
	assert.False(t, notAdmitted.EligibleForWin())
}

func TestFinishedBeforeBreaksTiesOnID(t *testing.T) {
	fast, slow := 3*time.Second, 5*time.Second
	a := postgres.Participant{ID: 7, TotalTime: &fast}
	b := postgres.Participant{ID: 2, TotalTime: &slow}
	c := postgres.Participant{ID: 9, TotalTime: &fast}

	assert.True(t, a.FinishedBefore(&b))
	assert.False(t, b.FinishedBefore(&a))
	assert.True(t, a.FinishedBefore(&c))
	assert.False(t, c.FinishedBefore(&a))
}

func TestGuardMatches(t *testing.T) {
	p := postgres.Participant{
		RoundID:         1,
		CurrentQuestion: 2,
		GameStatus:      postgres.GameInProgress,
		PaymentStatus:   postgres.PaymentPending,
	}
	g := p.Guard()
	assert.True(t, g.Matches(&p))

	p.CurrentQuestion = 3
	assert.False(t, g.Matches(&p))
}

func TestGameStatusTerminal(t *testing.T) {
	assert.False(t, postgres.GameNotStarted.Terminal())
	assert.False(t, postgres.GameInProgress.Terminal())
	assert.True(t, postgres.GameCompleted.Terminal())
	assert.True(t, postgres.GameFailed.Terminal())
	assert.True(t, postgres.GameAbandoned.Terminal())
}
