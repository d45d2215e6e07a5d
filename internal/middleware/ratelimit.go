package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/campushub/campushub/internal/cache"
	"github.com/campushub/campushub/internal/metrics"
)

// fixedWindowScript counts one hit and reports the window state in a
// single round trip. The first INCR of a window sets the expiry; the
// TTL comes back so Retry-After and Reset reflect the live window.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {count, ttl}
`)

// KeyFunc derives the client identity a counter is keyed by.
type KeyFunc func(c echo.Context) string

// RateLimitOptions configures one limited surface. Scope labels the
// metrics and prefixes the counter key, so two scopes never share
// windows.
type RateLimitOptions struct {
	Max    int
	Window time.Duration
	Scope  string
	Key    KeyFunc // nil means ClientIP

	// FailClosed answers 503 while the cache is unavailable instead
	// of letting requests through unlimited.
	FailClosed bool
}

// RateLimit rejects requests past Max hits per Window per key with 429
// plus the X-RateLimit-* headers. While the cache is unavailable the
// limiter lets requests through untouched and sets no headers;
// FailClosed flips that to 503.
func RateLimit(client *cache.Client, opts RateLimitOptions) echo.MiddlewareFunc {
	if opts.Max <= 0 {
		opts.Max = 100
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	keyFn := opts.Key
	if keyFn == nil {
		keyFn = ClientIP
	}
	scope := opts.Scope
	if scope == "" {
		scope = "global"
	}
	windowSecs := int64(opts.Window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cache.RateLimitKey(scope + ":" + keyFn(c))

			res := cache.Execute(c.Request().Context(), client, []interface{}(nil), func(ctx context.Context, rdb *redis.Client) ([]interface{}, error) {
				vals, err := fixedWindowScript.Run(ctx, rdb, []string{key}, windowSecs).Result()
				if err != nil {
					return nil, err
				}
				arr, ok := vals.([]interface{})
				if !ok || len(arr) != 2 {
					return nil, fmt.Errorf("unexpected script result %#v", vals)
				}
				return arr, nil
			})
			if res == nil {
				if opts.FailClosed {
					return c.JSON(http.StatusServiceUnavailable, echo.Map{
						"error":   "rate_limit_unavailable",
						"message": "rate limiting is required and currently unavailable",
					})
				}
				return next(c)
			}

			count := asInt64(res[0])
			ttl := time.Duration(asInt64(res[1])) * time.Second
			if ttl <= 0 {
				// key lost its expiry; assume a whole fresh window
				ttl = opts.Window
			}
			remaining := int64(opts.Max) - count
			if remaining < 0 {
				remaining = 0
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(opts.Max))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("X-RateLimit-Reset", time.Now().Add(ttl).UTC().Format(time.RFC3339))

			if count > int64(opts.Max) {
				secs := int64(ttl / time.Second)
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.FormatInt(secs, 10))
				metrics.RecordRateLimited(scope)
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

// ClientIP is the default limiter key: the echo-resolved client IP,
// then the first X-Forwarded-For hop, then "unknown".
func ClientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	if xff := c.Request().Header.Get(echo.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return "unknown"
}

// LoginKey throttles credential guessing per IP and account at once.
// The request body is restored so the handler can still bind it.
func LoginKey(c echo.Context) string {
	ip := ClientIP(c)
	req := c.Request()
	if req.Body == nil {
		return ip
	}
	body, _ := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	req.Body = io.NopCloser(bytes.NewReader(body))
	var probe struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return ip
	}
	email := strings.ToLower(strings.TrimSpace(probe.Email))
	if email == "" {
		return ip
	}
	return ip + ":" + email
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
