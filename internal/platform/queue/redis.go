package queue

import (
	"context"
	"fmt"

	"agt_platform/internal/platform/config"
	"agt_platform/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis: %w", err)
	}
	logger.Get().Info().Str("addr", cfg.RedisAddr).Msg("Successfully connected to Redis")
	return rdb, nil
}

func CloseRedis(rdb *redis.Client) {
	if rdb != nil {
		rdb.Close()
		logger.Get().Info().Msg("Redis connection closed")
	}
}
