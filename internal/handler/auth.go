package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campushub/campushub/internal/auth"
	"github.com/campushub/campushub/internal/config"
	"github.com/campushub/campushub/internal/middleware"
	"github.com/campushub/campushub/internal/model"
	"github.com/campushub/campushub/internal/queue"
	"github.com/campushub/campushub/internal/service/audit"
	"github.com/campushub/campushub/internal/utils"
)

// dbTimeout bounds every directory call made from a handler.
const dbTimeout = 5 * time.Second

// Credentials is the slice of the user directory the login flow needs.
type Credentials interface {
	GetByEmail(ctx context.Context, email string) (*model.User, string, error)
}

// AuthHandler serves the session endpoints: login, logout, me.
type AuthHandler struct {
	cfg     config.Config
	users   Credentials
	tokens  *auth.TokenService
	revoked *auth.RevocationList
	audit   *audit.Publisher
	log     *slog.Logger
}

func NewAuthHandler(cfg config.Config, users Credentials, tokens *auth.TokenService, revoked *auth.RevocationList, audit *audit.Publisher, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{cfg: cfg, users: users, tokens: tokens, revoked: revoked, audit: audit, log: log}
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and starts a session by setting the token
// cookie. Lookup misses and bad passwords share one response so the
// endpoint does not leak which emails exist.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid_request", "body must be JSON with email and password")
	}
	if err := c.Validate(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid_request", "a valid email and a password are required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, hash, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return respond(c, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		}
		h.log.Error("login lookup failed", "email", email, "err", err)
		return respond(c, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
	if !utils.VerifyPassword(hash, req.Password) {
		return respond(c, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
	}
	if u.Suspended {
		return respond(c, http.StatusForbidden, "account_suspended", "this account is suspended")
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		if errors.Is(err, auth.ErrNoSecret) {
			h.log.Error("login misconfigured: no signing secret")
			return respond(c, http.StatusInternalServerError, "server_misconfigured", "authentication is not configured")
		}
		h.log.Error("issue token failed", "user_id", u.ID, "err", err)
		return respond(c, http.StatusInternalServerError, "internal_error", "something went wrong")
	}

	h.setTokenCookie(c, token, int(h.tokens.TTL().Seconds()))
	h.audit.Record(queue.EventLogin, u.ID, u.Email, c.RealIP())
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// Logout revokes the presented token and clears the cookie. Runs behind
// Authenticate, so the token in context has already passed every check.
func (h *AuthHandler) Logout(c echo.Context) error {
	if token := middleware.CurrentToken(c); token != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
		defer cancel()
		h.revoked.Revoke(ctx, token)
	}
	h.setTokenCookie(c, "", -1)
	if u, ok := middleware.CurrentUser(c); ok {
		h.audit.Record(queue.EventLogout, u.ID, u.Email, c.RealIP())
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated identity snapshot.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respond(c, http.StatusUnauthorized, "no_token", "authentication required")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

func (h *AuthHandler) setTokenCookie(c echo.Context, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	})
}

func respond(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}
