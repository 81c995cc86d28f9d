package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"SignalFlow/pkg/logger"
)

func healthz(t *testing.T, s *Server) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
	return rec.Code, body
}

func TestHealthzWithoutChecks(t *testing.T) {
	s := NewServer(logger.Nop(), nil, WithMetricsPath(""))
	code, body := healthz(t, s)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v", body["status"])
	}
	if _, ok := body["dependencies"]; ok {
		t.Fatalf("dependencies should be omitted without checks")
	}
}

func TestHealthzReportsFailingDependency(t *testing.T) {
	s := NewServer(logger.Nop(), nil,
		WithMetricsPath(""),
		WithHealthCheck("postgres", func(context.Context) error { return nil }),
		WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("connection refused") }),
	)
	code, body := healthz(t, s)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if body["status"] != "degraded" {
		t.Fatalf("status field = %v", body["status"])
	}
	deps, ok := body["dependencies"].(map[string]interface{})
	if !ok {
		t.Fatalf("dependencies missing: %v", body)
	}
	if deps["postgres"] != "ok" {
		t.Errorf("postgres = %v, want ok", deps["postgres"])
	}
	if deps["clickhouse"] != "connection refused" {
		t.Errorf("clickhouse = %v", deps["clickhouse"])
	}
}

func TestCORSDisabledOmitsHeaders(t *testing.T) {
	s := NewServer(logger.Nop(), nil, WithMetricsPath(""), WithCORS(false))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected CORS header %q", got)
	}
}
