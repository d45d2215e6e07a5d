package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campushub/campushub/internal/auth"
	"github.com/campushub/campushub/internal/metrics"
	"github.com/campushub/campushub/internal/model"
)

// Context keys for the resolved identity and the raw presented token.
const (
	identityKey = "identity"
	tokenKey    = "identity_token"
)

// Auth owns the request authentication middleware. Every decision is
// recorded in metrics under its wire error code.
type Auth struct {
	resolver *auth.Authenticator
	log      *slog.Logger
}

func NewAuth(resolver *auth.Authenticator, log *slog.Logger) *Auth {
	if log == nil {
		log = slog.Default()
	}
	return &Auth{resolver: resolver, log: log}
}

// CurrentUser returns the identity placed by Authenticate.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(identityKey).(*model.User)
	return u, ok
}

// CurrentToken returns the raw bearer token behind the current identity.
func CurrentToken(c echo.Context) string {
	s, _ := c.Get(tokenKey).(string)
	return s
}

// ReadToken extracts the bearer token: the token cookie first, then an
// Authorization: Bearer header for cookie-less API clients.
func ReadToken(c echo.Context) string {
	if ck, err := c.Cookie(auth.CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate resolves the request's bearer token into a directory
// identity and stores it on the context. Any failure ends the request
// with the matching wire error.
func (m *Auth) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := ReadToken(c)
		u, err := m.resolver.Resolve(c.Request().Context(), token)
		if err != nil {
			return m.reject(c, err)
		}
		metrics.RecordAuthDecision("accepted")
		c.Set(identityKey, u)
		c.Set(tokenKey, token)
		return next(c)
	}
}

// RequireAnyOf authenticates and then admits only the given roles. An
// empty list admits any authenticated identity.
func (m *Auth) RequireAnyOf(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.Authenticate(func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return m.reject(c, auth.ErrNoToken)
			}
			if len(allowed) > 0 {
				if _, ok := allowed[u.Role]; !ok {
					metrics.RecordAuthDecision("insufficient_role")
					return respond(c, http.StatusForbidden, "insufficient_role", "role is not allowed to access this resource")
				}
			}
			return next(c)
		})
	}
}

func (m *Auth) reject(c echo.Context, err error) error {
	var status int
	var code, msg string
	switch {
	case errors.Is(err, auth.ErrNoToken):
		status, code, msg = http.StatusUnauthorized, "no_token", "authentication required"
	case errors.Is(err, auth.ErrTokenRevoked):
		status, code, msg = http.StatusUnauthorized, "token_revoked", "session has been logged out"
	case errors.Is(err, auth.ErrInvalidToken):
		status, code, msg = http.StatusUnauthorized, "invalid_token", "token is invalid or expired"
	case errors.Is(err, auth.ErrUserNotFound):
		status, code, msg = http.StatusUnauthorized, "user_not_found", "account no longer exists"
	case errors.Is(err, auth.ErrSuspended):
		status, code, msg = http.StatusForbidden, "account_suspended", "account is suspended"
	case errors.Is(err, auth.ErrNoSecret):
		m.log.Error("authentication misconfigured: no signing secret")
		status, code, msg = http.StatusInternalServerError, "server_misconfigured", "authentication is not configured"
	default:
		m.log.Error("authentication failed", "err", err)
		status, code, msg = http.StatusInternalServerError, "internal_error", "authentication failed"
	}
	metrics.RecordAuthDecision(code)
	return respond(c, status, code, msg)
}

func respond(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}
