package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campushub/campushub/internal/cache"
)

// Health reports liveness plus the cache connection state. The service
// stays healthy with the cache degraded, so the status is always 200.
func Health(client *cache.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status": "ok",
			"cache":  client.State().String(),
		})
	}
}
