package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig contains configuration options for the Redis store
type RedisConfig struct {
	// Client is the Redis client instance
	Client redis.UniversalClient

	// KeyPrefix namespaces the key, e.g. per user or per device.
	// Default: "chatbot:"
	KeyPrefix string

	// TTL expires an abandoned session id. Zero keeps it forever.
	TTL time.Duration
}

// RedisStore keeps the identifier in Redis so several processes of the same
// user can share one server session.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "chatbot:"
	}

	return &RedisStore{
		client: config.Client,
		key:    config.KeyPrefix + Key,
		ttl:    config.TTL,
	}, nil
}

// Key returns the fully qualified Redis key
func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Load(ctx context.Context) (string, bool, error) {
	id, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", s.key, err)
	}
	return id, true, nil
}

func (s *RedisStore) Save(ctx context.Context, id string) error {
	if err := s.client.Set(ctx, s.key, id, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", s.key, err)
	}
	return nil
}
