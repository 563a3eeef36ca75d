package repository

import (
	"context"

	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/internal/models"
	"github.com/go-redis/redis/v8"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type resultRedisRepo struct {
	client  publisher
	channel string
}

// NewResultRedisRepo publishes every result document on channel for live subscribers.
func NewResultRedisRepo(redisClient *redis.Client, channel string) detection.ResultMirror {
	return &resultRedisRepo{
		client:  redisClient,
		channel: channel,
	}
}

func (r *resultRedisRepo) Name() string {
	return "redis"
}

func (r *resultRedisRepo) Mirror(ctx context.Context, result *models.DetectionResult, document []byte) error {
	if err := r.client.Publish(ctx, r.channel, document).Err(); err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "publish %s to %s", result.Video, r.channel)
	}
	return nil
}
