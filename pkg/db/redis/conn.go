package redis

import (
	"context"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/go-redis/redis/v8"
)

func NewRedisClient(ctx context.Context, config *config.Config) (*redis.Client, error) {
	redisHost := config.Redis.RedisAddr

	if redisHost == "" {
		redisHost = ":6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        redisHost,
		Password:    config.Redis.RedisPassword,
		DB:          config.Redis.DB,
		PoolSize:    config.Redis.PoolSize,
		PoolTimeout: time.Duration(config.Redis.PoolTimeout) * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
