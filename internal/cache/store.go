package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the cache-aside layer: JSON values under namespaced keys,
// with every availability failure absorbed by the client underneath.
// Only two kinds of error leave this type: a stored entry that does not
// decode, and a failed compute callback.
type Store struct {
	client *Client
	log    *slog.Logger
}

func NewStore(client *Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, log: log}
}

// Client exposes the underlying connection for callers that need raw
// commands with the same fallback discipline.
func (s *Store) Client() *Client { return s.client }

// Available mirrors the client's availability snapshot.
func (s *Store) Available() bool { return s.client != nil && s.client.Available() }

// Get loads and decodes the value at key. ok is false on a miss or an
// unavailable cache. A value that is present but does not decode comes
// back as an error: a corrupt entry is a bug, not a miss.
func Get[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var zero T
	raw := Execute(ctx, s.client, []byte(nil), func(ctx context.Context, rdb *redis.Client) ([]byte, error) {
		b, err := rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if raw == nil {
		return zero, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("cache: corrupt entry at %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores v at key for ttl. Failures are absorbed; a write path is
// never blocked by the cache.
func (s *Store) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache: marshal failed", "key", key, "err", err)
		return
	}
	Execute(ctx, s.client, false, func(ctx context.Context, rdb *redis.Client) (bool, error) {
		return true, rdb.Set(ctx, key, b, ttl).Err()
	})
}

// Delete removes keys. Absorbed on failure; entries then age out by TTL.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	Execute(ctx, s.client, int64(0), func(ctx context.Context, rdb *redis.Client) (int64, error) {
		return rdb.Del(ctx, keys...).Result()
	})
}

// DeleteByPattern removes every key matching a glob pattern. Used for
// bulk invalidation after writes that touch derived data.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) {
	Execute(ctx, s.client, int64(0), func(ctx context.Context, rdb *redis.Client) (int64, error) {
		keys, err := rdb.Keys(ctx, pattern).Result()
		if err != nil || len(keys) == 0 {
			return 0, err
		}
		return rdb.Del(ctx, keys...).Result()
	})
}

// GetOrCompute returns the cached value at key, or runs compute and
// caches the result for ttl. compute errors propagate unchanged; cache
// availability never does.
func GetOrCompute[T any](ctx context.Context, s *Store, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	v, ok, err := Get[T](ctx, s, key)
	if err != nil {
		return v, err
	}
	if ok {
		return v, nil
	}
	v, err = compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(ctx, key, v, ttl)
	return v, nil
}
