package core

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"barecourier/internal/config"
)

const testInternalKey = "internal-key-0123456789"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedRequest struct {
	method, route, status string
}

type mockMetricsCollector struct {
	mu    sync.Mutex
	calls []recordedRequest
}

func (m *mockMetricsCollector) RecordRequest(method, route, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedRequest{method, route, status})
}

func newTestServer(t *testing.T, logger *slog.Logger) *Server {
	t.Helper()
	if logger == nil {
		logger = discardLogger()
	}

	cfg := &config.Config{Environment: "local"}
	cfg.Server.InternalAPIKey = testInternalKey
	cfg.Build.Version = "1.2.3"

	srv, err := NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/ping/{id}", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"id": chi.URLParam(r, "id")}})
		})
		r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
		r.Get("/large", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, APIResponse{Data: strings.Repeat("courier ", 1000)})
		})
	})
	return srv
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testInternalKey)
	return req
}

func TestNewServer_Validation(t *testing.T) {
	if _, err := NewServer(nil, discardLogger()); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(&config.Config{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}

	srv, err := NewServer(&config.Config{}, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if srv.Validator == nil || srv.Router() == nil {
		t.Error("expected validator and router to be initialized")
	}
}

func TestMountRoutes_Health(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.MountRoutes()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Version != "1.2.3" {
		t.Errorf("unexpected body: %+v", body)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestMountRoutes_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newTestServer(t, nil)
	srv.Metrics = NewPrometheusCollector(reg)
	srv.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	srv.MountRoutes()

	srv.Handler().ServeHTTP(httptest.NewRecorder(), authed(httptest.NewRequest(http.MethodGet, "/v1/ping/abc", nil)))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `barecourier_api_requests_total{method="GET",route="/v1/ping/{id}",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", w.Body.String())
	}
}

func TestMountRoutes_NoMetricsHandler(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.MountRoutes()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a metrics handler, got %d", w.Code)
	}
}

func TestInternalAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.MountRoutes()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, "auth_token_missing"},
		{"wrong scheme", "Basic " + testInternalKey, http.StatusUnauthorized, "auth_token_missing"},
		{"wrong key", "Bearer not-the-key-at-all", http.StatusUnauthorized, "auth_token_invalid"},
		{"valid key", "Bearer " + testInternalKey, http.StatusOK, ""},
		{"case-insensitive scheme", "bearer " + testInternalKey, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/ping/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode == "" {
				return
			}
			var resp APIErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestInternalAuth_UnsetKeyRejects(t *testing.T) {
	srv, err := NewServer(&config.Config{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	srv.V1RouteRegistrars = []func(chi.Router){func(r chi.Router) {
		r.Get("/x", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}}
	srv.MountRoutes()

	req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	srv := newTestServer(t, slog.New(slog.NewJSONHandler(&buf, nil)))
	srv.MountRoutes()

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/panic", nil))
	req.Header.Set("X-Request-Id", "req-panic")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp APIErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("panic response is not valid JSON: %v", err)
	}
	if resp.Error.Code != "internal_unexpected_error" || resp.Error.RequestID != "req-panic" {
		t.Errorf("unexpected error body: %+v", resp.Error)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("expected panic to be logged")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.MountRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("expected propagated request ID, got %q", got)
	}
}

func TestRequestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	srv := newTestServer(t, slog.New(slog.NewJSONHandler(&buf, nil)))
	srv.MountRoutes()

	srv.Handler().ServeHTTP(httptest.NewRecorder(), authed(httptest.NewRequest(http.MethodGet, "/v1/ping/1", nil)))

	out := buf.String()
	if strings.Contains(out, testInternalKey) {
		t.Fatal("internal key leaked into logs")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected redacted Authorization header in logs")
	}
	if !strings.Contains(out, `"status":200`) {
		t.Error("expected status in request log")
	}
}

func TestCompression(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.MountRoutes()

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/large", nil))
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got headers %v", w.Header())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "courier courier") {
		t.Error("decompressed body does not match")
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	srv := newTestServer(t, nil)
	metrics := &mockMetricsCollector{}
	srv.Metrics = metrics
	srv.MountRoutes()

	srv.Handler().ServeHTTP(httptest.NewRecorder(), authed(httptest.NewRequest(http.MethodGet, "/v1/ping/42", nil)))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ping/43", nil))

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.calls) != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", len(metrics.calls))
	}
	if metrics.calls[0] != (recordedRequest{"GET", "/v1/ping/{id}", "200"}) {
		t.Errorf("unexpected first record: %+v", metrics.calls[0])
	}
	if metrics.calls[1].status != "401" {
		t.Errorf("expected 401 for unauthenticated call, got %+v", metrics.calls[1])
	}
}

func TestContextTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := ContextTimeoutMiddleware(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok || time.Until(deadline) > time.Second {
		t.Errorf("expected a deadline within 1s, got %v (set=%v)", deadline, ok)
	}
}

func TestShutdown_RunsClosers(t *testing.T) {
	srv := newTestServer(t, nil)
	var closed []string
	srv.Closers = []func(){
		func() { closed = append(closed, "db") },
		func() { closed = append(closed, "metrics") },
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(closed, ",") != "db,metrics" {
		t.Errorf("closers ran out of order: %v", closed)
	}
}

type stubProbe struct {
	name  string
	err   error
	delay time.Duration
	panic bool
}

func (p stubProbe) Name() string { return p.name }

func (p stubProbe) Check(ctx context.Context) error {
	if p.panic {
		panic("probe exploded")
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func TestHandleHealth_Probes(t *testing.T) {
	tests := []struct {
		name       string
		probes     []HealthProbe
		wantStatus int
		wantBody   string
	}{
		{
			name:       "all healthy",
			probes:     []HealthProbe{stubProbe{name: "database"}, PingProbe{Component: "queue", Ping: func(context.Context) error { return nil }}},
			wantStatus: http.StatusOK,
			wantBody:   `"database":{"status":"healthy"}`,
		},
		{
			name:       "one failing",
			probes:     []HealthProbe{stubProbe{name: "database", err: errors.New("connection refused")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "connection refused",
		},
		{
			name:       "panicking probe",
			probes:     []HealthProbe{stubProbe{name: "database", panic: true}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "probe panicked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			srv.HealthProbes = tt.probes

			w := httptest.NewRecorder()
			srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.HealthProbes = []HealthProbe{stubProbe{name: "slow", delay: 10 * time.Second}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	start := time.Now()
	srv.HandleHealth(w, req)
	if time.Since(start) > time.Second {
		t.Error("health check did not honour the deadline")
	}
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
