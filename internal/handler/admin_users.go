package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/campushub/campushub/internal/auth"
	"github.com/campushub/campushub/internal/cache"
	"github.com/campushub/campushub/internal/model"
	"github.com/campushub/campushub/internal/queue"
	"github.com/campushub/campushub/internal/repository"
	"github.com/campushub/campushub/internal/service/audit"
)

// UserAdmin is the slice of the user directory the admin endpoints need.
type UserAdmin interface {
	Create(ctx context.Context, email, password string, role model.Role) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	SetSuspended(ctx context.Context, id uint64, suspended bool) error
}

// AdminHandler manages directory records. Every write drops the affected
// cache entries so the change takes effect on the next request instead
// of after TTL expiry.
type AdminHandler struct {
	users UserAdmin
	store *cache.Store
	audit *audit.Publisher
	log   *slog.Logger
}

func NewAdminHandler(users UserAdmin, store *cache.Store, audit *audit.Publisher, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{users: users, store: store, audit: audit, log: log}
}

type createUserReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

// CreateUser registers a new account.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid_request", "body must be JSON")
	}
	if err := c.Validate(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid_request", "email, password (8+ chars) and role are required")
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return respond(c, http.StatusBadRequest, "invalid_role", "role must be admin, teacher or student")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.users.Create(ctx, req.Email, req.Password, role)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return respond(c, http.StatusConflict, "email_exists", "an account with this email already exists")
		}
		h.log.Error("create user failed", "err", err)
		return respond(c, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
	h.store.InvalidateStats(ctx)
	return c.JSON(http.StatusCreated, echo.Map{"user": u})
}

// Suspend locks an account out on its next request.
func (h *AdminHandler) Suspend(c echo.Context) error { return h.setSuspended(c, true) }

// Reinstate lifts a suspension.
func (h *AdminHandler) Reinstate(c echo.Context) error { return h.setSuspended(c, false) }

func (h *AdminHandler) setSuspended(c echo.Context, suspended bool) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return respond(c, http.StatusBadRequest, "invalid_request", "user id must be a positive integer")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return respond(c, http.StatusNotFound, "user_not_found", "no such user")
		}
		h.log.Error("load user failed", "user_id", id, "err", err)
		return respond(c, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
	if err := h.users.SetSuspended(ctx, id, suspended); err != nil {
		h.log.Error("set suspended failed", "user_id", id, "err", err)
		return respond(c, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
	h.store.InvalidateUser(ctx, id)
	h.store.InvalidateStats(ctx)

	evType := queue.EventSuspended
	if !suspended {
		evType = queue.EventReinstated
	}
	h.audit.Record(evType, u.ID, u.Email, c.RealIP())
	return c.NoContent(http.StatusNoContent)
}
