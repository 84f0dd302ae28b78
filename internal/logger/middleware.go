package logger

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware logs every HTTP request once it has been handled. Handler errors
// are passed to echo's error handler first so the logged status is final.
func Middleware(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			startTime := time.Now()
			req := c.Request()

			if err := next(c); err != nil {
				c.Error(err)
			}

			res := c.Response()
			requestID := res.Header().Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = req.Header.Get(echo.HeaderXRequestID)
			}

			level := slog.LevelInfo
			if res.Status >= 500 {
				level = slog.LevelError
			}

			log.Log(req.Context(), level, "Handled request",
				"method", req.Method,
				"path", req.URL.Path,
				"route", c.Path(),
				"status", res.Status,
				"bytes_out", res.Size,
				"remote_ip", c.RealIP(),
				"request_id", requestID,
				"duration", time.Since(startTime),
			)
			return nil
		}
	}
}
