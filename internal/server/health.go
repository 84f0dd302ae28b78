package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness. It has no dependencies and cannot fail.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
