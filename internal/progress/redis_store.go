package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
)

const redisKeyPrefix = "quill:job:"

// RedisStore keeps jobs in Redis as JSON so several API replicas share status.
// Compare-and-swap uses WATCH/MULTI on the job key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. ttl bounds how long jobs stay queryable (0 = no expiry).
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisStoreFromURL parses a redis:// URL and creates a store.
func NewRedisStoreFromURL(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return NewRedisStore(redis.NewClient(opts), ttl), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}

	return nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Insert implements Store.
func (s *RedisStore) Insert(ctx context.Context, job models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis insert job: %w", err)
	}

	if !ok {
		return quillerrors.NewConflictError("job " + job.ID + " already exists")
	}

	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (models.Job, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Job{}, quillerrors.NewNotFoundError("job", "")
	}

	if err != nil {
		return models.Job{}, fmt.Errorf("redis get job: %w", err)
	}

	return decodeJob(data)
}

// CompareAndSwap implements Store.
func (s *RedisStore) CompareAndSwap(ctx context.Context, id string, expected uint64, next models.Job) (bool, error) {
	key := redisKey(id)
	swapped := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return quillerrors.NewNotFoundError("job", "")
		}

		if err != nil {
			return fmt.Errorf("redis get job: %w", err)
		}

		current, err := decodeJob(data)
		if err != nil {
			return err
		}

		if current.Version != expected {
			return nil
		}

		next.ID = id
		next.Version = expected + 1

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)

			return nil
		})
		if err != nil {
			return err //nolint:wrapcheck // TxFailedErr is matched below
		}

		swapped = true

		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}

	if err != nil {
		return false, err //nolint:wrapcheck // already wrapped or a quillerrors value
	}

	return swapped, nil
}

func decodeJob(data []byte) (models.Job, error) {
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return models.Job{}, fmt.Errorf("decode job: %w", err)
	}

	return job, nil
}
