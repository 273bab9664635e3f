// Package notify delivers round events to subscribers.
package notify

import (
	"Quizrace/models/postgres"
	"context"
	"errors"
	"sync"
)

// Publisher delivers committed round events. Delivery is at least once;
// subscribers deduplicate on the event id.
type Publisher interface {
	Publish(ctx context.Context, evs ...postgres.RoundEvent) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evs ...postgres.RoundEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []postgres.RoundEvent
}

func (r *Recorder) Publish(ctx context.Context, evs ...postgres.RoundEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return nil
}

func (r *Recorder) Events() []postgres.RoundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]postgres.RoundEvent(nil), r.events...)
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
