package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushub/campushub/internal/cache"
	"github.com/campushub/campushub/internal/metrics"
	"github.com/campushub/campushub/internal/model"
)

// IdentityLookup is the directory the authenticator resolves token
// subjects against. Implementations return ErrUserNotFound, wrapped or
// not, when the id has no record.
type IdentityLookup interface {
	FindByID(ctx context.Context, id uint64) (*model.User, error)
}

// Authenticator turns a raw bearer token into a directory identity. The
// checks run in a fixed order: presence, configuration, revocation,
// signature, identity, suspension. The first failure wins, so a revoked
// token reads as revoked even when it is also expired.
type Authenticator struct {
	tokens  *TokenService
	revoked *RevocationList
	store   *cache.Store
	dir     IdentityLookup
	userTTL time.Duration
	log     *slog.Logger
}

func NewAuthenticator(tokens *TokenService, revoked *RevocationList, store *cache.Store, dir IdentityLookup, userTTL time.Duration, log *slog.Logger) *Authenticator {
	if userTTL <= 0 {
		userTTL = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{
		tokens:  tokens,
		revoked: revoked,
		store:   store,
		dir:     dir,
		userTTL: userTTL,
		log:     log,
	}
}

// Resolve authenticates token and returns the directory snapshot for
// its subject. Failures are one of the package sentinels; anything else
// means the directory itself failed.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if !a.tokens.Configured() {
		return nil, ErrNoSecret
	}
	if a.revoked.IsRevoked(ctx, token) {
		return nil, ErrTokenRevoked
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}
	u, err := cache.GetOrCompute(ctx, a.store, cache.UserKey(id), a.userTTL, func(ctx context.Context) (model.User, error) {
		metrics.DirectoryLookupsTotal.Inc()
		rec, err := a.dir.FindByID(ctx, id)
		if err != nil {
			return model.User{}, err
		}
		return *rec, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("resolve user %d: %w", id, err)
	}
	if u.Suspended {
		return nil, ErrSuspended
	}
	return &u, nil
}
