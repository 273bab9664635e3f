package rounds

import (
	"Quizrace/apperrors"
	game_constants "Quizrace/constants/game"
	"Quizrace/models/events"
	"Quizrace/models/postgres"
	"Quizrace/services/store"
	"Quizrace/services/winner"
	"Quizrace/utils/clock"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	evs []postgres.RoundEvent
}

func (r *recorder) Dispatch(ctx context.Context, evs []postgres.RoundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, evs...)
}

func (r *recorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.evs {
		if e.Type == string(t) {
			n++
		}
	}
	return n
}

type env struct {
	st   *store.MemoryStore
	clk  *clock.Fake
	rec  *recorder
	c    *Controller
	game *postgres.Game
}

func newEnv(t *testing.T, maxPlayers int, autoRestart bool) *env {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	st.Now = clk.Now
	game := &postgres.Game{
		Name:                   "rounds",
		MaxPlayers:             maxPlayers,
		TotalQuestions:         3,
		QuestionTimeoutSeconds: 10,
		AutoRestart:            autoRestart,
		EntryFee:               decimal.RequireFromString("2.50"),
		Currency:               "EUR",
	}
	require.NoError(t, st.SaveGame(context.Background(), game))
	rec := &recorder{}
	return &env{st: st, clk: clk, rec: rec, c: NewController(st, winner.NewSelector(), rec, clk.Now), game: game}
}

func (e *env) activeRound(t *testing.T) *postgres.Round {
	t.Helper()
	r, err := e.c.GetOrCreateActiveRound(context.Background(), e.game.ID)
	require.NoError(t, err)
	return r
}

func (e *env) paidParticipant(t *testing.T, roundID uint, email string) *postgres.Participant {
	t.Helper()
	now := e.clk.Now()
	p := &postgres.Participant{
		RoundID:       roundID,
		GameID:        e.game.ID,
		Email:         email,
		PaymentStatus: postgres.PaymentPaid,
		GameStatus:    postgres.GameInProgress,
		PaidAt:        &now,
	}
	require.NoError(t, e.st.CreateParticipant(context.Background(), p))
	return p
}

func (e *env) admitted(t *testing.T, roundID uint, email string) *postgres.Participant {
	t.Helper()
	p := e.paidParticipant(t, roundID, email)
	_, err := e.c.AdmitPaidParticipant(context.Background(), roundID, p.ID)
	require.NoError(t, err)
	return p
}

func (e *env) finish(t *testing.T, id uint, status postgres.GameStatus, total time.Duration) {
	t.Helper()
	p, err := e.st.GetParticipant(context.Background(), id)
	require.NoError(t, err)
	guard := p.Guard()
	p.GameStatus = status
	if status == postgres.GameCompleted {
		p.TotalTime = &total
	}
	require.NoError(t, e.st.UpdateParticipant(context.Background(), p, guard))
}

func TestConcurrentAdmissionRespectsCapacity(t *testing.T) {
	const capacity, contenders = 5, 20
	e := newEnv(t, capacity, true)
	r := e.activeRound(t)

	ids := make([]uint, contenders)
	for i := range ids {
		ids[i] = e.paidParticipant(t, r.ID, "p@example.com").ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		full     int
		other    []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := e.c.AdmitPaidParticipant(context.Background(), r.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, apperrors.ErrRoundFull):
				full++
			default:
				other = append(other, err)
			}
		}(id)
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, capacity, admitted)
	assert.Equal(t, contenders-capacity, full)

	got, err := e.c.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundFull, got.Status)
	assert.Equal(t, capacity, got.PaidParticipantCount)
	assert.NotNil(t, got.FullAt)

	rounds, err := e.c.ListRounds(context.Background(), e.game.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 2, rounds[1].RoundNumber)
	assert.Equal(t, postgres.RoundActive, rounds[1].Status)
	assert.Equal(t, 1, e.rec.count(events.RoundFull))
	assert.Equal(t, 2, e.rec.count(events.RoundCreated))
}

func TestAdmitIsIdempotent(t *testing.T) {
	e := newEnv(t, 3, true)
	r := e.activeRound(t)
	p := e.admitted(t, r.ID, "a@example.com")

	got, err := e.c.AdmitPaidParticipant(context.Background(), r.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PaidParticipantCount)
}

func TestAdmitRejections(t *testing.T) {
	e := newEnv(t, 3, false)
	r := e.activeRound(t)

	unpaid := &postgres.Participant{RoundID: r.ID, GameID: e.game.ID, Email: "u@example.com"}
	require.NoError(t, e.st.CreateParticipant(context.Background(), unpaid))
	_, err := e.c.AdmitPaidParticipant(context.Background(), r.ID, unpaid.ID)
	assert.ErrorIs(t, err, apperrors.ErrPaymentRequired)

	p := e.paidParticipant(t, r.ID, "late@example.com")
	_, err = e.c.CancelRound(context.Background(), r.ID, "maintenance")
	require.NoError(t, err)
	_, err = e.c.AdmitPaidParticipant(context.Background(), r.ID, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrRoundClosed)
}

func TestFullRoundWaitsForAllParticipants(t *testing.T) {
	e := newEnv(t, 2, true)
	r := e.activeRound(t)
	fast := e.admitted(t, r.ID, "fast@example.com")
	slow := e.admitted(t, r.ID, "slow@example.com")

	e.finish(t, slow.ID, postgres.GameCompleted, 12*time.Second)
	done, err := e.c.TryComplete(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, done, "fast is still playing")

	e.finish(t, fast.ID, postgres.GameCompleted, 9*time.Second)
	done, err = e.c.TryComplete(context.Background(), r.ID)
	require.NoError(t, err)
	assert.True(t, done)

	got, err := e.c.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundCompleted, got.Status)
	require.NotNil(t, got.WinnerParticipantID)
	assert.Equal(t, fast.ID, *got.WinnerParticipantID)

	winnerRow, err := e.st.GetParticipant(context.Background(), fast.ID)
	require.NoError(t, err)
	assert.True(t, winnerRow.IsWinner)

	done, err = e.c.TryComplete(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, e.rec.count(events.RoundCompleted))
}

func TestRoundWithoutEligibleWinner(t *testing.T) {
	e := newEnv(t, 2, false)
	r := e.activeRound(t)
	a := e.admitted(t, r.ID, "a@example.com")
	b := e.admitted(t, r.ID, "b@example.com")

	e.finish(t, a.ID, postgres.GameFailed, 0)
	e.finish(t, b.ID, postgres.GameAbandoned, 0)
	done, err := e.c.TryComplete(context.Background(), r.ID)
	require.NoError(t, err)
	assert.True(t, done)

	got, err := e.c.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundCompleted, got.Status)
	assert.Nil(t, got.WinnerParticipantID)
}

func TestReleaseReopensLatestRound(t *testing.T) {
	e := newEnv(t, 2, false)
	r := e.activeRound(t)
	e.admitted(t, r.ID, "a@example.com")
	b := e.admitted(t, r.ID, "b@example.com")

	require.NoError(t, e.c.ReleasePaidParticipant(context.Background(), r.ID, b.ID))
	got, err := e.c.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundActive, got.Status)
	assert.Equal(t, 1, got.PaidParticipantCount)
	assert.Nil(t, got.FullAt)

	// Releasing twice changes nothing.
	require.NoError(t, e.c.ReleasePaidParticipant(context.Background(), r.ID, b.ID))
	got, err = e.c.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PaidParticipantCount)
}

func TestReleaseKeepsRoundFullWhenSuccessorExists(t *testing.T) {
	e := newEnv(t, 2, true)
	r := e.activeRound(t)
	e.admitted(t, r.ID, "a@example.com")
	b := e.admitted(t, r.ID, "b@example.com")

	require.NoError(t, e.c.ReleasePaidParticipant(context.Background(), r.ID, b.ID))
	got, err := e.c.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundFull, got.Status)
	assert.Equal(t, 1, got.PaidParticipantCount)
}

func TestReleaseAfterCompletionKeepsCounts(t *testing.T) {
	e := newEnv(t, 1, false)
	r := e.activeRound(t)
	a := e.admitted(t, r.ID, "a@example.com")
	e.finish(t, a.ID, postgres.GameCompleted, 4*time.Second)
	_, err := e.c.TryComplete(context.Background(), r.ID)
	require.NoError(t, err)

	require.NoError(t, e.c.ReleasePaidParticipant(context.Background(), r.ID, a.ID))
	got, err := e.c.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundCompleted, got.Status)
	assert.Equal(t, 1, got.PaidParticipantCount)
}

func TestCancelRound(t *testing.T) {
	e := newEnv(t, 3, true)
	r := e.activeRound(t)
	a := e.admitted(t, r.ID, "a@example.com")
	e.admitted(t, r.ID, "b@example.com")
	pending := &postgres.Participant{RoundID: r.ID, GameID: e.game.ID, Email: "c@example.com"}
	require.NoError(t, e.st.CreateParticipant(context.Background(), pending))

	got, err := e.c.CancelRound(context.Background(), r.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, postgres.RoundCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Equal(t, 2, e.rec.count(events.RefundIntent))
	assert.Equal(t, 1, e.rec.count(events.RoundCancelled))

	row, err := e.st.GetParticipant(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.GameAbandoned, row.GameStatus)
	assert.Equal(t, "round_cancelled", row.FailureReason)

	// A replacement round opens for auto-restarting games.
	active, err := e.c.GetOrCreateActiveRound(context.Background(), e.game.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, active.RoundNumber)

	// Cancelling again is a no-op.
	_, err = e.c.CancelRound(context.Background(), r.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, 2, e.rec.count(events.RefundIntent))
}

func TestCancelCompletedRoundFails(t *testing.T) {
	e := newEnv(t, 1, false)
	r := e.activeRound(t)
	a := e.admitted(t, r.ID, "a@example.com")
	e.finish(t, a.ID, postgres.GameCompleted, time.Second)
	_, err := e.c.TryComplete(context.Background(), r.ID)
	require.NoError(t, err)

	_, err = e.c.CancelRound(context.Background(), r.ID, "operator")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestEnsureActiveRoundIsIdempotent(t *testing.T) {
	e := newEnv(t, 2, true)

	var wg sync.WaitGroup
	created := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := e.c.EnsureActiveRound(context.Background(), e.game.ID)
			assert.NoError(t, err)
			created <- ok
		}()
	}
	wg.Wait()
	close(created)

	n := 0
	for ok := range created {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestRequestRefund(t *testing.T) {
	e := newEnv(t, 2, false)
	r := e.activeRound(t)
	p := e.paidParticipant(t, r.ID, "a@example.com")

	require.NoError(t, e.c.RequestRefund(context.Background(), p.ID, "fraud"))
	assert.Equal(t, 1, e.rec.count(events.RefundIntent))
}

func TestAdmitWithRetryRefundsEndedParticipants(t *testing.T) {
	for _, status := range []postgres.GameStatus{postgres.GameFailed, postgres.GameAbandoned} {
		t.Run(string(status), func(t *testing.T) {
			e := newEnv(t, 1, true)
			r := e.activeRound(t)
			p := e.paidParticipant(t, r.ID, "late@example.com")
			e.finish(t, p.ID, status, 0)

			got, err := e.c.AdmitWithRetry(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Equal(t, 1, e.rec.count(events.RefundIntent))

			round, err := e.c.GetRound(context.Background(), r.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, round.PaidParticipantCount)
			assert.Equal(t, postgres.RoundActive, round.Status)

			row, err := e.st.GetParticipant(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Nil(t, row.AdmittedAt)
		})
	}
}

// staleMoves makes every participant move lose its race.
type staleMoves struct {
	store.Store
	moves atomic.Int32
}

func (s *staleMoves) MoveParticipant(ctx context.Context, p *postgres.Participant, guard postgres.Guard, roundID uint) error {
	s.moves.Add(1)
	return fmt.Errorf("%w: participant %d", apperrors.ErrStaleState, p.ID)
}

func TestAdmitWithRetryBacksOffOnLostRaces(t *testing.T) {
	e := newEnv(t, 1, true)
	r := e.activeRound(t)
	e.admitted(t, r.ID, "first@example.com")
	late := e.paidParticipant(t, r.ID, "late@example.com")

	st := &staleMoves{Store: e.st}
	c := NewController(st, winner.NewSelector(), e.rec, e.clk.Now)
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	_, err := c.AdmitWithRetry(ctx, late.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, st.moves.Load(), int32(3), "50ms then 100ms between attempts")
	assert.GreaterOrEqual(t, st.moves.Load(), int32(1))
}

func TestNextBackoffIsCapped(t *testing.T) {
	d := game_constants.ADMIT_BACKOFF_BASE
	for range 10 {
		d = nextBackoff(d)
	}
	assert.Equal(t, game_constants.ADMIT_BACKOFF_MAX, d)
	assert.Equal(t, 2*game_constants.ADMIT_BACKOFF_BASE, nextBackoff(game_constants.ADMIT_BACKOFF_BASE))
}
