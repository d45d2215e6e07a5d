package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campushub/internal/cache"
)

func noContent(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	env := newMWEnv(t)
	h := RateLimit(env.client, RateLimitOptions{Max: 3, Window: time.Minute, Scope: "headers"})(noContent)

	for i := 1; i <= 3; i++ {
		rec := perform(env.e, h, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(3-i), rec.Header().Get("X-RateLimit-Remaining"))
		_, err := time.Parse(time.RFC3339, rec.Header().Get("X-RateLimit-Reset"))
		assert.NoError(t, err)
	}

	rec := perform(env.e, h, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.Contains(t, rec.Body.String(), "too_many_requests")
	assert.Contains(t, rec.Body.String(), "retry_after")
}

func TestRateLimitWindowExpires(t *testing.T) {
	env := newMWEnv(t)
	h := RateLimit(env.client, RateLimitOptions{Max: 1, Window: time.Minute, Scope: "expiry"})(noContent)

	rec := perform(env.e, h, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = perform(env.e, h, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	env.mr.FastForward(61 * time.Second)

	rec = perform(env.e, h, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitFailOpen(t *testing.T) {
	dead := cache.NewClient(fastClientConfig("127.0.0.1:1"), testLogger())
	t.Cleanup(func() { dead.Close() })
	e := echo.New()
	h := RateLimit(dead, RateLimitOptions{Max: 1, Window: time.Minute, Scope: "open"})(noContent)

	// far past the limit, every request still goes through
	for i := 0; i < 5; i++ {
		rec := perform(e, h, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitFailClosed(t *testing.T) {
	dead := cache.NewClient(fastClientConfig("127.0.0.1:1"), testLogger())
	t.Cleanup(func() { dead.Close() })
	e := echo.New()
	h := RateLimit(dead, RateLimitOptions{Max: 1, Window: time.Minute, Scope: "closed", FailClosed: true})(noContent)

	rec := perform(e, h, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limit_unavailable")
}

func TestLoginKeySeparatesAccounts(t *testing.T) {
	env := newMWEnv(t)
	h := RateLimit(env.client, RateLimitOptions{Max: 1, Window: 15 * time.Minute, Scope: "login", Key: LoginKey})(func(c echo.Context) error {
		// the body must survive the key peek
		b, err := io.ReadAll(c.Request().Body)
		require.NoError(t, err)
		require.NotEmpty(t, b)
		return c.NoContent(http.StatusOK)
	})

	post := func(email string) *httptest.ResponseRecorder {
		body := strings.NewReader(`{"email":"` + email + `","password":"pw"}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", body)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return perform(env.e, h, req)
	}

	require.Equal(t, http.StatusOK, post("a@campushub.test").Code)
	assert.Equal(t, http.StatusTooManyRequests, post("a@campushub.test").Code)
	assert.Equal(t, http.StatusOK, post("b@campushub.test").Code)
	// case and whitespace fold into the same bucket
	assert.Equal(t, http.StatusTooManyRequests, post(" B@Campushub.Test ").Code)
}

func TestClientIPUsesForwardedHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXForwardedFor, "203.0.113.9, 10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "203.0.113.9", ClientIP(c))
}
