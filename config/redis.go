package config

import (
	"Quizrace/services/redis"
	"Quizrace/utils/logger"
)

// Connect to Redis
func Connect_redis(cfg *Config) (*redis.RedisClient, error) {
	redisClient, err := redis.InitRedis(cfg.RedisURL, 0)
	if err != nil {
		logger.Errorf("Error connecting to Redis: %v", err)
		return nil, err
	}
	logger.Info("Redis connection established")
	return redisClient, nil
}
