package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
)

const keyPrefix = "portal"

// Store is a KeyValue backed by Redis.
// Key format: portal:<namespace>:<key>
type Store struct {
	client    redis.Cmdable
	namespace string
	ttl       time.Duration
}

// NewStore wraps client for one namespace. A positive ttl makes every write
// expire, which bounds how long an abandoned session lingers.
var _ ports.Toucher = (*Store)(nil)

func NewStore(client redis.Cmdable, namespace string, ttl time.Duration) *Store {
	return &Store{client: client, namespace: namespace, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Touch restarts the expiry of keys that exist. It does nothing without a ttl.
func (s *Store) Touch(ctx context.Context, keys ...string) error {
	if s.ttl <= 0 {
		return nil
	}
	for _, k := range keys {
		if err := s.client.Expire(ctx, s.key(k), s.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Store) key(k string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, s.namespace, k)
}
