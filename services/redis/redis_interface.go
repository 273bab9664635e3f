package redis

import (
	game_constants "Quizrace/constants/game"
	"Quizrace/models/events"
	redis_utils "Quizrace/services/redis/utils"
	"Quizrace/utils/logger"
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient handles Redis operations
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client instance. Addr is either a
// host:port pair or a redis:// URL.
func NewRedisClient(Addr string, DB int) (*RedisClient, error) {
	var client *redis.Client
	if Addr != "localhost:6379" {
		logger.Info("Connecting to remote Redis...")
		opt, err := redis.ParseURL(Addr)
		if err != nil {
			return nil, fmt.Errorf("error parsing Redis URL: %v", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: Addr,
			DB:   DB,
		})
	}
	return &RedisClient{
		client: client,
		ctx:    context.Background(),
	}, nil
}

// PushRoundEvent appends an event to the game's history and publishes it
// on the game's channel.
// Key format: "game:{gameID}:events"
// Channel: "game:{gameID}:live"
func (rc *RedisClient) PushRoundEvent(ctx context.Context, gameID uint, data []byte) error {
	key := redis_utils.FormatGameEventsKey(gameID)
	pipe := rc.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -game_constants.EVENT_HISTORY_LEN, -1)
	pipe.Expire(ctx, key, game_constants.EVENT_HISTORY_TTL)
	pipe.Publish(ctx, redis_utils.FormatGameChannel(gameID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error pushing event for game %d: %v", gameID, err)
	}
	return nil
}

// RecentRoundEvents returns up to n of the game's latest events, oldest first.
func (rc *RedisClient) RecentRoundEvents(ctx context.Context, gameID uint, n int64) ([]events.Envelope, error) {
	key := redis_utils.FormatGameEventsKey(gameID)
	raw, err := rc.client.LRange(ctx, key, -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading events of game %d: %v", gameID, err)
	}
	out := make([]events.Envelope, 0, len(raw))
	for _, item := range raw {
		var e events.Envelope
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("error unmarshaling event: %v", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// SubscribeGame listens on the game's live channel.
func (rc *RedisClient) SubscribeGame(ctx context.Context, gameID uint) *redis.PubSub {
	return rc.client.Subscribe(ctx, redis_utils.FormatGameChannel(gameID))
}
