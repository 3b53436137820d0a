package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "escuchas_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "escuchas_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestObserveBackendNormalizesIDs(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveBackend(http.MethodGet, "/api/advisor/sql/12345678", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveBackend(http.MethodGet, "/api/advisor/sql/87654321", http.StatusOK, 10*time.Millisecond)
	metrics.ObserveBackend(http.MethodPost, "/api/login", 0, time.Second)

	body := scrape(t, metrics)
	if !strings.Contains(body, `escuchas_backend_calls_total{code="200",method="GET",path="/api/advisor/sql/:id"} 2`) {
		t.Fatalf("expected normalized backend counter, got: %s", body)
	}
	if !strings.Contains(body, `escuchas_backend_calls_total{code="0",method="POST",path="/api/login"} 1`) {
		t.Fatalf("expected transport failure counter, got: %s", body)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/users/7/change_role": "/api/users/:id/change_role",
		"/api/records":             "/api/records",
		"/api/advisor/sheet/a12":   "/api/advisor/sheet/a12",
		"/":                        "/",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveBackend(http.MethodGet, "/api/records", 200, time.Millisecond)
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
