package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campushub/campushub/internal/cache"
)

// revokedMarker is the stored sentinel; only key presence matters.
const revokedMarker = "1"

// RevocationList tracks logged-out bearer tokens in the cache. Markers
// carry the maximum token lifetime, so a marker never expires before
// its token does. With the cache unavailable the list fails open:
// every token reads as not revoked.
type RevocationList struct {
	store *cache.Store
	ttl   time.Duration

	// FailClosed flips the unavailable-cache answer to "revoked".
	// Set once at wiring time.
	FailClosed bool
}

func NewRevocationList(store *cache.Store, ttl time.Duration) *RevocationList {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RevocationList{store: store, ttl: ttl}
}

// Revoke blacklists one token. Best effort: with the cache down the
// marker is lost and the token stays valid until it expires.
func (r *RevocationList) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	r.store.Set(ctx, cache.BlacklistKey(token), revokedMarker, r.ttl)
}

// IsRevoked reports whether token has been blacklisted.
func (r *RevocationList) IsRevoked(ctx context.Context, token string) bool {
	if !r.store.Available() {
		return r.FailClosed
	}
	n := cache.Execute(ctx, r.store.Client(), int64(0), func(ctx context.Context, rdb *redis.Client) (int64, error) {
		return rdb.Exists(ctx, cache.BlacklistKey(token)).Result()
	})
	return n > 0
}
