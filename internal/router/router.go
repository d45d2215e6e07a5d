// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campushub/campushub/internal/cache"
	"github.com/campushub/campushub/internal/config"
	"github.com/campushub/campushub/internal/handler"
	"github.com/campushub/campushub/internal/middleware"
	"github.com/campushub/campushub/internal/model"
)

// Deps carries everything the routes need.
type Deps struct {
	Cache      *cache.Client
	Auth       *middleware.Auth
	RateLimits config.RateLimitConfig
	Sessions   *handler.AuthHandler
	Admin      *handler.AdminHandler
}

// New builds the echo instance with all routes and middleware attached.
// Every /v1 route sits behind the global per-IP limiter; login carries a
// second, stricter per-credential window on top.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())

	e.GET("/healthz", handler.Health(d.Cache))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	if d.RateLimits.Enabled {
		v1.Use(middleware.RateLimit(d.Cache, middleware.RateLimitOptions{
			Max:        d.RateLimits.Max,
			Window:     d.RateLimits.Window,
			Scope:      "global",
			FailClosed: d.RateLimits.FailClosed,
		}))
	}

	var loginLimit []echo.MiddlewareFunc
	if d.RateLimits.Enabled {
		loginLimit = append(loginLimit, middleware.RateLimit(d.Cache, middleware.RateLimitOptions{
			Max:        d.RateLimits.LoginMax,
			Window:     d.RateLimits.LoginWindow,
			Scope:      "login",
			Key:        middleware.LoginKey,
			FailClosed: d.RateLimits.FailClosed,
		}))
	}

	sess := v1.Group("/auth")
	sess.POST("/login", d.Sessions.Login, loginLimit...)
	sess.POST("/logout", d.Sessions.Logout, d.Auth.Authenticate)

	v1.GET("/me", d.Sessions.Me, d.Auth.Authenticate)

	admin := v1.Group("/admin", d.Auth.RequireAnyOf(model.RoleAdmin))
	admin.POST("/users", d.Admin.CreateUser)
	admin.POST("/users/:id/suspend", d.Admin.Suspend)
	admin.DELETE("/users/:id/suspend", d.Admin.Reinstate)

	return e
}
