package queue

import (
	"context"
	"errors"
	"time"

	"manifest-relay/internal/config"
	"manifest-relay/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Consumer struct {
	client      *redis.Client
	queue       string
	dlq         string
	pollTimeout time.Duration
	log         zerolog.Logger
}

type MessageHandler = func(ctx context.Context, data []byte) error

func NewConsumer(redisClient *RedisClient, cfg *config.Config) *Consumer {
	poll := cfg.Workers.Relay.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Consumer{
		client:      redisClient.Client(),
		queue:       cfg.Redis.RunQueue,
		dlq:         cfg.Redis.RunQueue + cfg.Redis.DLQSuffix,
		pollTimeout: poll,
		log:         logger.Component("consumer"),
	}
}

// ConsumeRuns hands queued run jobs to handler one at a time, oldest first.
// A job whose handler fails is pushed onto the dead-letter list.
func (c *Consumer) ConsumeRuns(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := c.client.BRPop(ctx, c.pollTimeout, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error().Err(err).Str("queue", c.queue).Msg("Failed to consume message")
			time.Sleep(time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		message := result[1]
		if err := handler(ctx, []byte(message)); err != nil {
			c.log.Error().Err(err).Str("queue", c.queue).Msg("Failed to process message")
			// the job may have been cut short by shutdown; LPush still needs a live context
			if dlqErr := c.client.LPush(context.WithoutCancel(ctx), c.dlq, message).Err(); dlqErr != nil {
				c.log.Error().Err(dlqErr).Str("dlq", c.dlq).Msg("Failed to move message to DLQ")
			}
		}
	}
}
