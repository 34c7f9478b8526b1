// Package rate implements the multi-dimensional login rate limiter and its
// counter stores.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps counter-store transport failures. It never
// reaches callers of [Limiter]: the failover store absorbs it and switches
// to the in-process fallback.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// Store is the shared attempt-counter abstraction. One key per
// (dimension, identifier, window). Incr must be an atomic single-round-trip
// increment-and-get at the store; read-modify-write loses updates under
// concurrent requests for the same key.
type Store interface {
	// Incr increments the counter and returns the new value. The TTL is
	// applied only when the increment created the key, giving fixed-window
	// semantics.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the current count, zero for missing keys.
	Get(ctx context.Context, key string) (int64, error)
	// TTL returns the remaining window for a key, zero for missing keys.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Clear deletes counters. Used on successful login.
	Clear(ctx context.Context, keys ...string) error
	// AddToSet adds a member to a TTL-bounded set and returns the new
	// cardinality. Used for the distinct-IP attack signal.
	AddToSet(ctx context.Context, key, member string, ttl time.Duration) (int64, error)
}

// RedisStore implements Store on a shared Redis, so enforcement spans all
// server instances.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return count, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return count, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}

	return ttl, nil
}

func (s *RedisStore) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func (s *RedisStore) AddToSet(ctx context.Context, key, member string, ttl time.Duration) (int64, error) {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	card, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return card, nil
}
