package sync

import (
	game_constants "Quizrace/constants/game"
	"Quizrace/models/postgres"
	"Quizrace/services/notify"
	"Quizrace/services/store"
	"Quizrace/utils/clock"
	"Quizrace/utils/logger"
	"context"
	"fmt"
)

// SyncManager relays committed outbox events from PostgreSQL to the
// publishers (Redis history, RabbitMQ, socket.io dashboards).
type SyncManager struct {
	store     store.Store
	publisher notify.Publisher
	now       clock.Func
}

// NewSyncManager creates a new instance of the synchronization manager
func NewSyncManager(st store.Store, publisher notify.Publisher, now clock.Func) *SyncManager {
	return &SyncManager{
		store:     st,
		publisher: publisher,
		now:       now,
	}
}

// Dispatch publishes events right after the transaction that wrote them
// commits. Events that fail stay unpublished and SyncPendingEvents retries
// them.
func (sm *SyncManager) Dispatch(ctx context.Context, evs []postgres.RoundEvent) {
	if err := sm.publish(ctx, evs); err != nil {
		logger.Errorf("[SYNC-ERROR] %v", err)
	}
}

// SyncPendingEvents relays one batch of unpublished outbox events and
// returns how many were delivered.
func (sm *SyncManager) SyncPendingEvents(ctx context.Context) (int, error) {
	if sm.publisher == nil {
		return 0, nil
	}
	evs, err := sm.store.UnpublishedEvents(ctx, game_constants.OUTBOX_BATCH)
	if err != nil {
		return 0, fmt.Errorf("error reading outbox: %v", err)
	}
	if len(evs) == 0 {
		return 0, nil
	}
	if err := sm.publish(ctx, evs); err != nil {
		return 0, err
	}
	logger.Debugf("[SYNC] Relayed %d pending events", len(evs))
	return len(evs), nil
}

func (sm *SyncManager) publish(ctx context.Context, evs []postgres.RoundEvent) error {
	if len(evs) == 0 || sm.publisher == nil {
		return nil
	}
	if err := sm.publisher.Publish(ctx, evs...); err != nil {
		return fmt.Errorf("error publishing %d events: %v", len(evs), err)
	}
	ids := make([]string, 0, len(evs))
	for _, e := range evs {
		ids = append(ids, e.ID)
	}
	if err := sm.store.MarkEventsPublished(ctx, ids, sm.now()); err != nil {
		return fmt.Errorf("error marking events published: %v", err)
	}
	return nil
}
