package cache

import (
	"context"
	"fmt"
)

// Key namespaces shared across the app. Everything the store writes
// lives under one of these prefixes so bulk invalidation stays scoped.

// UserKey holds one identity snapshot.
func UserKey(id uint64) string { return fmt.Sprintf("user:%d", id) }

// BlacklistKey marks one bearer token as revoked.
func BlacklistKey(token string) string { return "token:blacklist:" + token }

// RateLimitKey holds one fixed-window counter.
func RateLimitKey(k string) string { return "rate_limit:" + k }

// ClassKey caches one class record for the CRUD layer.
func ClassKey(id uint64) string { return fmt.Sprintf("class:%d", id) }

// InvalidateUser drops the identity snapshot so the next authenticated
// request re-reads the directory.
func (s *Store) InvalidateUser(ctx context.Context, id uint64) {
	s.Delete(ctx, UserKey(id))
}

// InvalidateClass drops a class record and everything derived from it.
func (s *Store) InvalidateClass(ctx context.Context, id uint64) {
	s.Delete(ctx, ClassKey(id))
	s.DeleteByPattern(ctx, fmt.Sprintf("class:%d:*", id))
}

// InvalidateStats drops all aggregate counters.
func (s *Store) InvalidateStats(ctx context.Context) {
	s.DeleteByPattern(ctx, "stats:*")
}
