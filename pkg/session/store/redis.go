package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dialpilot/pkg/config"
	"dialpilot/pkg/identity"
)

const (
	contextKeyPrefix = "context:"
	defaultTTL       = 24 * time.Hour
)

// RedisStore keeps the sender-to-context mapping in redis so conversations
// survive process restarts. Keys expire after a TTL; an expired mapping just
// means the next message starts a fresh context.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg config.ContextsConfig) (*RedisStore, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("contexts.redis_addr is required for the redis driver")
	}

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		}),
		ttl: ttl,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key identity.Key) (*Context, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get context mapping: %w", err)
	}

	var value Context
	if err := json.Unmarshal([]byte(val), &value); err != nil {
		return nil, fmt.Errorf("decode context mapping: %w", err)
	}

	// Refresh TTL on read so active conversations stay mapped.
	if err := s.client.Expire(ctx, s.key(key), s.ttl).Err(); err != nil {
		_ = err
	}

	return &value, nil
}

func (s *RedisStore) Put(ctx context.Context, key identity.Key, value *Context) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode context mapping: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("put context mapping: %w", err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key identity.Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete context mapping: %w", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(key identity.Key) string {
	return contextKeyPrefix + string(key)
}
