package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campushub/internal/cache"
	"github.com/campushub/campushub/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastClientConfig(addr string) cache.ClientConfig {
	return cache.ClientConfig{
		Addr:            addr,
		DialTimeout:     250 * time.Millisecond,
		OpTimeout:       250 * time.Millisecond,
		RetryBase:       10 * time.Millisecond,
		RetryCap:        50 * time.Millisecond,
		ConnectAttempts: 3,
		PingInterval:    20 * time.Millisecond,
	}
}

func newAuthStore(t *testing.T) (*miniredis.Miniredis, *cache.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewClient(fastClientConfig(mr.Addr()), discardLogger())
	t.Cleanup(func() { c.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, c.WaitReady(ctx))
	return mr, cache.NewStore(c, discardLogger())
}

func newDeadStore(t *testing.T) *cache.Store {
	t.Helper()
	c := cache.NewClient(fastClientConfig("127.0.0.1:1"), discardLogger())
	t.Cleanup(func() { c.Close() })
	return cache.NewStore(c, discardLogger())
}

type fakeDirectory struct {
	users map[uint64]model.User
	err   error
	calls int
}

func (f *fakeDirectory) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

type authEnv struct {
	mr      *miniredis.Miniredis
	store   *cache.Store
	tokens  *TokenService
	revoked *RevocationList
	dir     *fakeDirectory
	a       *Authenticator
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	mr, store := newAuthStore(t)
	return newAuthEnvWith(t, mr, store)
}

func newAuthEnvWith(t *testing.T, mr *miniredis.Miniredis, store *cache.Store) *authEnv {
	t.Helper()
	tokens := NewTokenService("unit-secret", time.Hour)
	revoked := NewRevocationList(store, time.Hour)
	dir := &fakeDirectory{users: map[uint64]model.User{
		7: {ID: 7, Email: "lin@campushub.test", Role: model.RoleStudent},
	}}
	a := NewAuthenticator(tokens, revoked, store, dir, 5*time.Minute, discardLogger())
	return &authEnv{mr: mr, store: store, tokens: tokens, revoked: revoked, dir: dir, a: a}
}

func TestResolveHappyPathCachesSnapshot(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	u := env.dir.users[7]
	raw, err := env.tokens.Issue(&u)
	require.NoError(t, err)

	got, err := env.a.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.ID)
	assert.Equal(t, model.RoleStudent, got.Role)

	for i := 0; i < 3; i++ {
		_, err := env.a.Resolve(ctx, raw)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.dir.calls)
	assert.True(t, env.mr.Exists(cache.UserKey(7)))
}

func TestResolveNoToken(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.a.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestResolveMalformedToken(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.a.Resolve(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 0, env.dir.calls)
}

func TestResolveMissingSecret(t *testing.T) {
	_, store := newAuthStore(t)
	a := NewAuthenticator(NewTokenService("", time.Hour), NewRevocationList(store, time.Hour), store, &fakeDirectory{}, time.Minute, discardLogger())

	_, err := a.Resolve(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestRevocationWinsOverValidity(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()

	// The exact string is blacklisted, so it must never reach the
	// signature check.
	env.revoked.Revoke(ctx, "garbage-token")
	_, err := env.a.Resolve(ctx, "garbage-token")
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestResolveUnknownSubject(t *testing.T) {
	env := newAuthEnv(t)
	ghost := model.User{ID: 404, Email: "ghost@campushub.test", Role: model.RoleStudent}
	raw, err := env.tokens.Issue(&ghost)
	require.NoError(t, err)

	_, err = env.a.Resolve(context.Background(), raw)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestResolveSuspended(t *testing.T) {
	env := newAuthEnv(t)
	env.dir.users[8] = model.User{ID: 8, Email: "kim@campushub.test", Role: model.RoleTeacher, Suspended: true}
	u := env.dir.users[8]
	raw, err := env.tokens.Issue(&u)
	require.NoError(t, err)

	_, err = env.a.Resolve(context.Background(), raw)
	assert.ErrorIs(t, err, ErrSuspended)
}

func TestResolveDirectoryFailure(t *testing.T) {
	env := newAuthEnv(t)
	u := env.dir.users[7]
	raw, err := env.tokens.Issue(&u)
	require.NoError(t, err)

	env.dir.err = errors.New("directory offline")
	_, err = env.a.Resolve(context.Background(), raw)
	require.Error(t, err)
	assert.ErrorContains(t, err, "directory offline")
	for _, sentinel := range []error{ErrNoToken, ErrInvalidToken, ErrTokenRevoked, ErrUserNotFound, ErrSuspended} {
		assert.NotErrorIs(t, err, sentinel)
	}
}

func TestResolveWithDeadCacheHitsDirectoryEachTime(t *testing.T) {
	env := newAuthEnvWith(t, nil, newDeadStore(t))
	ctx := context.Background()
	u := env.dir.users[7]
	raw, err := env.tokens.Issue(&u)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := env.a.Resolve(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), got.ID)
	}
	assert.Equal(t, 2, env.dir.calls)
}

func TestInvalidateUserForcesRefresh(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	u := env.dir.users[7]
	raw, err := env.tokens.Issue(&u)
	require.NoError(t, err)

	_, err = env.a.Resolve(ctx, raw)
	require.NoError(t, err)

	u.Suspended = true
	env.dir.users[7] = u
	env.store.InvalidateUser(ctx, 7)

	_, err = env.a.Resolve(ctx, raw)
	assert.ErrorIs(t, err, ErrSuspended)
	assert.Equal(t, 2, env.dir.calls)
}

func TestRevokeAfterUseIsRejected(t *testing.T) {
	env := newAuthEnv(t)
	ctx := context.Background()
	u := env.dir.users[7]
	raw, err := env.tokens.Issue(&u)
	require.NoError(t, err)

	_, err = env.a.Resolve(ctx, raw)
	require.NoError(t, err)

	env.revoked.Revoke(ctx, raw)
	_, err = env.a.Resolve(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
