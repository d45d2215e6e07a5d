// Package cache wraps a single Redis connection behind a small state
// machine so callers can treat the cache as optional. Every command goes
// through Execute, which resolves to a caller-supplied fallback whenever
// the connection is anything but ready.
package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campushub/campushub/internal/metrics"
)

// State describes the connection lifecycle. Transitions are owned by a
// single goroutine; everyone else reads snapshots.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClientConfig tunes the connection and its recovery behavior. Zero
// values are replaced with defaults by NewClient.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      *tls.Config

	DialTimeout     time.Duration // per connection attempt
	OpTimeout       time.Duration // per command issued through Execute
	RetryBase       time.Duration // first reconnect delay
	RetryCap        time.Duration // ceiling for the doubling delay
	ConnectAttempts int           // failed pings before giving up
	PingInterval    time.Duration // health check period while ready
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 500 * time.Millisecond
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 5 * time.Second
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 10
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 3 * time.Second
	}
	return cfg
}

// Client owns one Redis connection and its lifecycle. The connection is
// established lazily on first use; while it is down, Execute resolves to
// fallbacks and the lifecycle goroutine keeps retrying with a doubling
// delay until ConnectAttempts is exhausted. After that the client stays
// degraded until Reconnect or Close.
type Client struct {
	rdb *redis.Client
	cfg ClientConfig
	log *slog.Logger

	mu        sync.Mutex
	state     State
	lastReady bool // last lifecycle event was the ready transition

	startOnce sync.Once
	closeOnce sync.Once
	wake      chan struct{} // Reconnect nudge, consumed only while degraded
	checkNow  chan struct{} // early health check, consumed only while ready
	done      chan struct{}
}

// NewClient builds a client without touching the network. The go-redis
// retry machinery is disabled; recovery belongs to the lifecycle loop.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		TLSConfig:    cfg.TLS,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
		MaxRetries:   -1,
	})
	return &Client{
		rdb:      rdb,
		cfg:      cfg,
		log:      log,
		wake:     make(chan struct{}, 1),
		checkNow: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// State returns a snapshot of the lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Available reports whether commands should be attempted at all: the
// state must be ready and the most recent lifecycle event must have been
// the ready transition.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady && c.lastReady
}

// Reconnect nudges a degraded client back into the connect loop. It is a
// no-op in every other state.
func (c *Client) Reconnect() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// WaitReady blocks until the client is available, the client gives up,
// or ctx ends. It reports availability at return time.
func (c *Client) WaitReady(ctx context.Context) bool {
	c.ensure()
	t := time.NewTicker(25 * time.Millisecond)
	defer t.Stop()
	for {
		if c.Available() {
			return true
		}
		switch c.State() {
		case StateDegraded, StateClosed:
			return false
		}
		select {
		case <-ctx.Done():
			return c.Available()
		case <-t.C:
		}
	}
}

// Close stops the lifecycle goroutine and releases the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.lastReady = false
		c.mu.Unlock()
		close(c.done)
		metrics.SetCacheDown()
		err = c.rdb.Close()
	})
	return err
}

func (c *Client) ensure() {
	c.startOnce.Do(func() {
		go c.lifecycle()
	})
}

// transition is called from the lifecycle goroutine only. A closed
// client never leaves the closed state.
func (c *Client) transition(s State, readyEvent bool) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.lastReady = readyEvent
	c.mu.Unlock()
	if s == StateReady {
		metrics.SetCacheReady()
	} else {
		metrics.SetCacheDown()
	}
}

func (c *Client) lifecycle() {
	attempts := 0
	delay := c.cfg.RetryBase
	for {
		select {
		case <-c.done:
			return
		default:
		}
		if err := c.ping(); err == nil {
			attempts = 0
			delay = c.cfg.RetryBase
			c.transition(StateReady, true)
			c.log.Info("cache connected", "addr", c.cfg.Addr)
			if !c.watch() {
				return
			}
			c.transition(StateConnecting, false)
			c.log.Warn("cache connection lost", "addr", c.cfg.Addr)
			continue
		}
		attempts++
		if attempts >= c.cfg.ConnectAttempts {
			select {
			case <-c.wake: // drop stale nudges
			default:
			}
			c.transition(StateDegraded, false)
			c.log.Warn("cache unreachable, giving up until Reconnect",
				"addr", c.cfg.Addr, "attempts", attempts)
			select {
			case <-c.wake:
			case <-c.done:
				return
			}
			attempts = 0
			delay = c.cfg.RetryBase
			c.transition(StateConnecting, false)
			continue
		}
		select {
		case <-time.After(delay):
		case <-c.done:
			return
		}
		delay *= 2
		if delay > c.cfg.RetryCap {
			delay = c.cfg.RetryCap
		}
	}
}

// watch pings the server while the connection is ready. It returns false
// when the client is closing, true when the connection dropped and the
// connect loop should take over.
func (c *Client) watch() bool {
	t := time.NewTicker(c.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return false
		case <-c.checkNow:
		case <-t.C:
		}
		if err := c.ping(); err != nil {
			return true
		}
	}
}

func (c *Client) ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// nudge asks the watcher to re-check health ahead of schedule.
func (c *Client) nudge() {
	select {
	case c.checkNow <- struct{}{}:
	default:
	}
}

// Operation is one cache command executed against the live connection.
type Operation[T any] func(ctx context.Context, rdb *redis.Client) (T, error)

// Execute runs op when the client is available and resolves to fallback
// otherwise. Command errors never propagate: they are logged, counted,
// and answered with the fallback, so callers stay on their main path
// whether or not the cache is alive.
func Execute[T any](ctx context.Context, c *Client, fallback T, op Operation[T]) T {
	if c == nil {
		return fallback
	}
	c.ensure()
	if !c.Available() {
		metrics.CacheFallbacksTotal.Inc()
		return fallback
	}
	opCtx := ctx
	if c.cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, c.cfg.OpTimeout)
		defer cancel()
	}
	v, err := op(opCtx, c.rdb)
	if err != nil {
		metrics.CacheFallbacksTotal.Inc()
		if isTransient(err) {
			c.nudge()
			c.log.Debug("cache command failed, using fallback", "err", err)
		} else {
			c.log.Warn("cache command error suppressed", "err", err)
		}
		return fallback
	}
	return v
}

func isTransient(err error) bool {
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "connection refused") || strings.Contains(s, "connection reset")
}
