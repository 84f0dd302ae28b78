package server_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getout/app/internal/config"
	"github.com/getout/app/internal/metrics"
	"github.com/getout/app/internal/server"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:            "127.0.0.1:0",
		ReadTimeout:     config.DefaultServerReadTimeout,
		WriteTimeout:    config.DefaultServerWriteTimeout,
		IdleTimeout:     config.DefaultServerIdleTimeout,
		ShutdownTimeout: config.DefaultServerShutdownTimeout,
		BodyLimit:       "1K",
	}
}

func newTestServer(metricsEnabled bool) *server.Server {
	return server.New(
		testServerConfig(),
		config.MetricsConfig{Enabled: metricsEnabled, Path: config.DefaultMetricsPath},
		nil,
		metrics.New(),
	)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	handler := newTestServer(true).Handler()

	tests := []struct {
		name    string
		headers map[string]string
		body    string
	}{
		{name: "bare request"},
		{name: "json accept", headers: map[string]string{"Accept": "application/json"}},
		{name: "garbage auth", headers: map[string]string{"Authorization": "Bearer nope"}},
		{name: "with body", headers: map[string]string{"Content-Type": "application/json"}, body: `{"ignored":true}`},
		{name: "body over limit", body: strings.Repeat("x", 4096)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(http.MethodGet, server.HealthPath, body)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "ok", rec.Body.String())
			require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
		})
	}
}

func TestUnknownRoutesReturn404(t *testing.T) {
	t.Parallel()
	handler := newTestServer(false).Handler()

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/messages"},
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/messages/6f1c1f9e-0000-4000-8000-000000000000"},
		{http.MethodPut, "/api/messages/6f1c1f9e-0000-4000-8000-000000000000"},
		{http.MethodDelete, "/api/messages/6f1c1f9e-0000-4000-8000-000000000000"},
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/users/6f1c1f9e-0000-4000-8000-000000000000"},
		{http.MethodDelete, "/api/users/6f1c1f9e-0000-4000-8000-000000000000"},
		{http.MethodGet, "/health"},
		{http.MethodGet, "/metrics"},
	}

	for _, p := range paths {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, "%s %s", p.method, p.path)
	}

	// Bodies larger than server.body_limit do not turn a missing route into 413.
	large := strings.Repeat("x", 4096)
	for _, p := range paths {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(p.method, p.path, strings.NewReader(large))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code, "%s %s with large body", p.method, p.path)
	}
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()
	handler := newTestServer(false).Handler()

	req := httptest.NewRequest(http.MethodGet, server.HealthPath, nil)
	req.Header.Set("Origin", "https://getout.cloud")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Origin", "https://getout.cloud")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouteTable(t *testing.T) {
	t.Parallel()

	routes := newTestServer(false).Routes()
	require.Len(t, routes, 1)
	require.Equal(t, http.MethodGet, routes[0].Method)
	require.Equal(t, server.HealthPath, routes[0].Path)

	require.Len(t, newTestServer(true).Routes(), 2)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	handler := newTestServer(true).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, server.HealthPath, nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, config.DefaultMetricsPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `getout_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestServeAndShutdown(t *testing.T) {
	t.Parallel()
	srv := newTestServer(false)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + server.HealthPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestListenAndServeBadAddr(t *testing.T) {
	t.Parallel()
	cfg := testServerConfig()
	cfg.Addr = "256.0.0.1:bad"

	srv := server.New(cfg, config.MetricsConfig{}, nil, nil)
	require.Error(t, srv.ListenAndServe())
}
