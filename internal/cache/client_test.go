package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(addr string) ClientConfig {
	return ClientConfig{
		Addr:            addr,
		DialTimeout:     250 * time.Millisecond,
		OpTimeout:       250 * time.Millisecond,
		RetryBase:       10 * time.Millisecond,
		RetryCap:        50 * time.Millisecond,
		ConnectAttempts: 3,
		PingInterval:    20 * time.Millisecond,
	}
}

func TestClientBecomesReady(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewClient(fastConfig(mr.Addr()), testLogger())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, c.WaitReady(ctx))
	assert.Equal(t, StateReady, c.State())
	assert.True(t, c.Available())
}

func TestExecuteRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewClient(fastConfig(mr.Addr()), testLogger())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, c.WaitReady(ctx))

	got := Execute(ctx, c, "", func(ctx context.Context, rdb *redis.Client) (string, error) {
		if err := rdb.Set(ctx, "greeting", "hello", 0).Err(); err != nil {
			return "", err
		}
		return rdb.Get(ctx, "greeting").Result()
	})
	assert.Equal(t, "hello", got)
}

func TestExecuteFallsBackWhenUnreachable(t *testing.T) {
	c := NewClient(fastConfig("127.0.0.1:1"), testLogger())
	defer c.Close()

	got := Execute(context.Background(), c, 42, func(ctx context.Context, rdb *redis.Client) (int, error) {
		t.Error("operation must not run without a connection")
		return 0, nil
	})
	assert.Equal(t, 42, got)

	require.Eventually(t, func() bool {
		return c.State() == StateDegraded
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.False(t, c.WaitReady(ctx))
}

func TestClientRecoversAfterReconnect(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	c := NewClient(fastConfig(addr), testLogger())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, c.WaitReady(ctx))

	mr.Close()
	require.Eventually(t, func() bool {
		return c.State() == StateDegraded
	}, 3*time.Second, 10*time.Millisecond)

	back := miniredis.NewMiniRedis()
	require.NoError(t, back.StartAddr(addr))
	defer back.Close()

	c.Reconnect()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel2()
	require.True(t, c.WaitReady(ctx2))
	assert.True(t, c.Available())
}

func TestCloseIsTerminal(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewClient(fastConfig(mr.Addr()), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, c.WaitReady(ctx))

	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	got := Execute(context.Background(), c, "fallback", func(ctx context.Context, rdb *redis.Client) (string, error) {
		return "live", nil
	})
	assert.Equal(t, "fallback", got)
}
