package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"manifest-relay/internal/config"
	"manifest-relay/internal/model"
	apperrors "manifest-relay/pkg/errors"

	"github.com/go-redis/redis/v8"
)

// StatusStore keeps run state in Redis so the API can report progress of
// runs executed by the worker. Entries expire after the configured TTL.
type StatusStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStatusStore(redisClient *RedisClient, cfg *config.Config) *StatusStore {
	return &StatusStore{
		client: redisClient.Client(),
		prefix: cfg.Redis.RunQueue + ":status:",
		ttl:    cfg.Redis.StatusTTL,
	}
}

func (s *StatusStore) Save(ctx context.Context, run model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	return s.client.Set(ctx, s.prefix+run.ID, data, s.ttl).Err()
}

func (s *StatusStore) Get(ctx context.Context, id string) (*model.Run, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &run, nil
}
