package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"manifest-relay/internal/config"
	"manifest-relay/internal/model"

	"github.com/go-redis/redis/v8"
)

type Producer struct {
	client *redis.Client
	queue  string
}

func NewProducer(redisClient *RedisClient, cfg *config.Config) *Producer {
	return &Producer{
		client: redisClient.Client(),
		queue:  cfg.Redis.RunQueue,
	}
}

func (p *Producer) EnqueueRun(ctx context.Context, job model.RunJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal run job: %w", err)
	}

	return p.client.LPush(ctx, p.queue, data).Err()
}
