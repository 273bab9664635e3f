package notify

import (
	"Quizrace/models/events"
	"Quizrace/models/postgres"
	"context"
)

// EventPusher is the Redis operation the sink needs.
type EventPusher interface {
	PushRoundEvent(ctx context.Context, gameID uint, data []byte) error
}

// RedisSink keeps a per-game event history and feeds the live channel.
type RedisSink struct {
	client EventPusher
}

func NewRedisSink(client EventPusher) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Publish(ctx context.Context, evs ...postgres.RoundEvent) error {
	for _, e := range evs {
		data, err := events.Marshal(e)
		if err != nil {
			return err
		}
		if err := s.client.PushRoundEvent(ctx, e.GameID, data); err != nil {
			return err
		}
	}
	return nil
}
