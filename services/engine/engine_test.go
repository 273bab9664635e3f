package engine

import (
	"Quizrace/models/postgres"
	"Quizrace/services/fraud"
	"Quizrace/services/notify"
	"Quizrace/services/participant"
	"Quizrace/services/questions"
	"Quizrace/services/store"
	"Quizrace/utils/clock"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	st   *store.MemoryStore
	clk  *clock.Fake
	rec  *notify.Recorder
	pub  *switchable
	eng  *Engine
	game *postgres.Game
}

type switchable struct {
	down bool
	next notify.Publisher
}

func (s *switchable) Publish(ctx context.Context, evs ...postgres.RoundEvent) error {
	if s.down {
		return errors.New("publisher down")
	}
	return s.next.Publish(ctx, evs...)
}

func newHarness(t *testing.T, maxPlayers int) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 9, 1, 20, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	st.Now = clk.Now
	game := &postgres.Game{
		Name:                   "evening quiz",
		MaxPlayers:             maxPlayers,
		TotalQuestions:         3,
		FreeQuestions:          1,
		QuestionTimeoutSeconds: 10,
		AutoRestart:            true,
		EntryFee:               decimal.RequireFromString("1.99"),
		Currency:               "EUR",
	}
	require.NoError(t, st.SaveGame(context.Background(), game))
	bank := questions.NewStaticBank()
	bank.Set(game.ID, "A", "B", "C")

	rec := &notify.Recorder{}
	pub := &switchable{next: rec}
	eng, err := New(Options{Store: st, Bank: bank, Publisher: pub, Now: clk.Now})
	require.NoError(t, err)
	return &harness{st: st, clk: clk, rec: rec, pub: pub, eng: eng, game: game}
}

func identity(name string) fraud.Identity {
	return fraud.Identity{SessionID: "sess-" + name, DeviceFingerprint: "dev-" + name}
}

func (h *harness) join(t *testing.T, name string) *postgres.Participant {
	t.Helper()
	p, err := h.eng.Register(context.Background(), participant.Registration{
		GameID:   h.game.ID,
		Email:    name + "@example.com",
		Identity: identity(name),
	})
	require.NoError(t, err)
	out, err := h.eng.Start(context.Background(), p.ID, identity(name))
	require.NoError(t, err)
	require.Equal(t, participant.Accepted, out.Kind)
	return p
}

func (h *harness) answer(t *testing.T, p *postgres.Participant, name string, q int, a string, after time.Duration) participant.Outcome {
	t.Helper()
	h.clk.Advance(after)
	out, err := h.eng.SubmitAnswer(context.Background(), p.ID, q, a, identity(name))
	require.NoError(t, err)
	return out
}

func (h *harness) count(eventType string) int {
	n := 0
	for _, et := range h.rec.Types() {
		if et == eventType {
			n++
		}
	}
	return n
}

func TestFastestPaidCompletionWins(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	a := h.join(t, "a")
	require.Equal(t, participant.AwaitingPayment, h.answer(t, a, "a", 1, "A", 4*time.Second).Kind)
	_, _, err := h.eng.ConfirmPayment(ctx, a.ID)
	require.NoError(t, err)
	h.answer(t, a, "a", 2, "B", 4*time.Second)
	outA := h.answer(t, a, "a", 3, "C", 4500*time.Millisecond)
	require.Equal(t, participant.Completed, outA.Kind)
	assert.Equal(t, 12500*time.Millisecond, *outA.Participant.TotalTime)

	b := h.join(t, "b")
	assert.Equal(t, a.RoundID, b.RoundID)
	h.answer(t, b, "b", 1, "A", 3*time.Second)
	_, round, err := h.eng.ConfirmPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundFull, round.Status)
	h.answer(t, b, "b", 2, "B", 3*time.Second)
	outB := h.answer(t, b, "b", 3, "C", 3*time.Second)
	require.Equal(t, participant.Completed, outB.Kind)
	assert.Equal(t, 9*time.Second, *outB.Participant.TotalTime)

	got, err := h.eng.Round(ctx, a.RoundID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundCompleted, got.Status)
	require.NotNil(t, got.WinnerParticipantID)
	assert.Equal(t, b.ID, *got.WinnerParticipantID)

	rowA, err := h.eng.Participant(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, rowA.IsWinner)

	rounds, err := h.eng.Rounds(ctx, h.game.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, postgres.RoundActive, rounds[1].Status)

	assert.Equal(t, 2, h.count("round_created"))
	assert.Equal(t, 1, h.count("round_full"))
	assert.Equal(t, 1, h.count("round_completed"))
}

func TestPaymentIntoFullRoundMovesParticipant(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	a := h.join(t, "a")
	b := h.join(t, "b")
	require.Equal(t, a.RoundID, b.RoundID)
	h.answer(t, a, "a", 1, "A", 2*time.Second)
	h.answer(t, b, "b", 1, "A", time.Second)

	_, first, err := h.eng.ConfirmPayment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundFull, first.Status)

	paidB, second, err := h.eng.ConfirmPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, paidB.RoundID)
	assert.NotNil(t, paidB.AdmittedAt)
	assert.Nil(t, paidB.PausedAt)
	assert.Equal(t, 1, second.PaidParticipantCount)

	// B keeps playing in the new round.
	assert.Equal(t, participant.Accepted, h.answer(t, b, "b", 2, "B", time.Second).Kind)

	// A replayed confirmation is harmless.
	_, again, err := h.eng.ConfirmPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, again.ID)
	assert.Equal(t, 1, again.PaidParticipantCount)
}

func TestRefundReleasesSlot(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	a := h.join(t, "a")
	h.answer(t, a, "a", 1, "A", time.Second)
	_, round, err := h.eng.ConfirmPayment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, round.PaidParticipantCount)

	p, err := h.eng.RefundPayment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.PaymentRefunded, p.PaymentStatus)
	assert.Equal(t, postgres.GameAbandoned, p.GameStatus)

	got, err := h.eng.Round(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PaidParticipantCount)
}

func TestPaymentAfterCancellationIsRefunded(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	a := h.join(t, "a")
	_, err := h.eng.CancelRound(ctx, a.RoundID, "operator")
	require.NoError(t, err)
	assert.Equal(t, 0, h.count("refund_intent"))

	h.clk.Advance(time.Second)
	p, round, err := h.eng.ConfirmPayment(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, round)
	assert.Equal(t, postgres.PaymentPaid, p.PaymentStatus)
	assert.Nil(t, p.AdmittedAt)
	assert.Equal(t, 1, h.count("refund_intent"))
}

func TestFailedPaymentAbandons(t *testing.T) {
	h := newHarness(t, 2)
	a := h.join(t, "a")
	h.answer(t, a, "a", 1, "A", time.Second)

	p, err := h.eng.FailPayment(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.PaymentFailed, p.PaymentStatus)
	assert.Equal(t, postgres.GameAbandoned, p.GameStatus)
}

func TestSweepAbandonsIdleParticipants(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	running := h.join(t, "a")
	waiting, err := h.eng.Register(ctx, participant.Registration{GameID: h.game.ID, Email: "w@example.com", Identity: identity("w")})
	require.NoError(t, err)

	// Past the question deadline plus grace, but not the idle limit.
	h.clk.Advance(41 * time.Second)
	report, err := h.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Abandoned)

	p, err := h.eng.Participant(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.GameAbandoned, p.GameStatus)
	assert.Equal(t, "idle", p.FailureReason)

	h.clk.Advance(15 * time.Minute)
	report, err = h.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Abandoned)
	p, err = h.eng.Participant(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.GameAbandoned, p.GameStatus)
}

func TestSweepCompletesStuckRound(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	a := h.join(t, "a")
	h.answer(t, a, "a", 1, "A", time.Second)
	_, round, err := h.eng.ConfirmPayment(ctx, a.ID)
	require.NoError(t, err)

	// The completion write landed but the resolution call was lost.
	p, err := h.st.GetParticipant(ctx, a.ID)
	require.NoError(t, err)
	guard := p.Guard()
	total := 7 * time.Second
	p.GameStatus = postgres.GameCompleted
	p.TotalTime = &total
	require.NoError(t, h.st.UpdateParticipant(ctx, p, guard))

	report, err := h.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	got, err := h.eng.Round(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundCompleted, got.Status)
	require.NotNil(t, got.WinnerParticipantID)
	assert.Equal(t, a.ID, *got.WinnerParticipantID)

	report, err = h.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Completed)
}

func TestSweepCreatesMissingRoundsAndRelaysOutbox(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	h.pub.down = true
	report, err := h.eng.Sweep(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, h.rec.Events())

	h.pub.down = false
	report, err = h.eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Equal(t, 1, report.Relayed)
	assert.Equal(t, []string{"round_created"}, h.rec.Types())
}

func TestNewRequiresStoreAndBank(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
