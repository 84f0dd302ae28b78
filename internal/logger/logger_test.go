package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/getout/app/internal/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, logger.ParseLevel(in), in)
	}
}

func TestNewFormats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	logger.New(&jsonBuf, "info", "json").Info("hello", "key", "value")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "value", entry["key"])

	var textBuf bytes.Buffer
	logger.New(&textBuf, "info", "text").Info("hello", "key", "value")
	require.Contains(t, textBuf.String(), "msg=hello")
	require.Contains(t, textBuf.String(), "key=value")
}

func TestNewLevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, "warn", "text")
	log.Info("dropped")
	log.Warn("kept")

	require.NotContains(t, buf.String(), "dropped")
	require.Contains(t, buf.String(), "kept")
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, "debug", "json")

	e := echo.New()
	e.Use(logger.Middleware(log))
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	require.Equal(t, "Handled request", first["msg"])
	require.Equal(t, "GET", first["method"])
	require.Equal(t, "/ping", first["path"])
	require.EqualValues(t, http.StatusOK, first["status"])
	require.Equal(t, "req-1", first["request_id"])

	require.Equal(t, "/nowhere", second["path"])
	require.EqualValues(t, http.StatusNotFound, second["status"])
}

func TestGocronLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gl := logger.NewGocronLogger(logger.New(&buf, "debug", "text"))
	gl.Debug("d")
	gl.Info("i")
	gl.Warn("w")
	gl.Error("e", "job", "x")

	out := buf.String()
	require.Contains(t, out, "component=gocron")
	for _, lvl := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		require.Contains(t, out, "level="+lvl)
	}
	require.Contains(t, out, "job=x")
}
