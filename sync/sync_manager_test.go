package sync

import (
	"Quizrace/models/events"
	"Quizrace/models/postgres"
	"Quizrace/services/notify"
	"Quizrace/services/store"
	"Quizrace/utils/clock"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flaky struct {
	fail bool
	rec  notify.Recorder
}

func (f *flaky) Publish(ctx context.Context, evs ...postgres.RoundEvent) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	return f.rec.Publish(ctx, evs...)
}

func seedEvents(t *testing.T, st *store.MemoryStore, n int) []postgres.RoundEvent {
	t.Helper()
	game := postgres.Game{Name: "g", MaxPlayers: 2, TotalQuestions: 1, QuestionTimeoutSeconds: 5}
	require.NoError(t, st.SaveGame(context.Background(), &game))
	var out []postgres.RoundEvent
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		r := &postgres.Round{GameID: game.ID, RoundNumber: 1, Status: postgres.RoundActive, StartedAt: time.Now()}
		if err := tx.CreateRound(r); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			e, err := events.New(events.RoundCreated, r, events.RoundCreatedPayload{RoundNumber: 1}, time.Now())
			if err != nil {
				return err
			}
			if err := tx.AppendEvent(&e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestDispatchMarksPublished(t *testing.T) {
	st := store.NewMemoryStore()
	evs := seedEvents(t, st, 2)
	pub := &flaky{}
	sm := NewSyncManager(st, pub, clock.System)

	sm.Dispatch(context.Background(), evs)

	assert.Len(t, pub.rec.Events(), 2)
	pending, err := st.UnpublishedEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFailedDispatchIsRelayedLater(t *testing.T) {
	st := store.NewMemoryStore()
	evs := seedEvents(t, st, 3)
	pub := &flaky{fail: true}
	sm := NewSyncManager(st, pub, clock.System)

	sm.Dispatch(context.Background(), evs)
	_, err := sm.SyncPendingEvents(context.Background())
	assert.Error(t, err)

	pub.fail = false
	n, err := sm.SyncPendingEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = sm.SyncPendingEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.rec.Events(), 3)
}
