package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/ranks", "/ranks"},
		{"/ranks/batch", "/ranks/batch"},
		{"/ranks/42", "/ranks/{ref}"},
		{"/ranks/550e8400-e29b-41d4-a716-446655440000", "/ranks/{ref}"},
		{"/scores/42/delta", "/scores/{ref}/delta"},
		{"/scores/42/recompute", "/scores/{ref}/recompute"},
		{"/scores/42", "/scores/{ref}"},
		{"/healthz", "/healthz"},
		{"/ready", "/ready"},
		{"/metrics", "/metrics"},
		{"/unknown/route", "/unknown/route"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ranks/42", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ranks/77", nil))

	// Both requests land on the same normalized label
	if got := counterVecValue(t, metrics.httpRequestsTotal, "GET", "/ranks/{ref}", "200"); got != 2 {
		t.Errorf("http_requests_total = %v, want 2", got)
	}
}

func TestHTTPMetrics_CapturesStatus(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ranks/missing", nil))

	if got := counterVecValue(t, metrics.httpRequestsTotal, "GET", "/ranks/{ref}", "404"); got != 1 {
		t.Errorf("http_requests_total 404 = %v, want 1", got)
	}
}

func TestHTTPMetrics_SkipsProbeEndpoints(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	for _, path := range []string{"/healthz", "/ready"} {
		if got := counterVecValue(t, metrics.httpRequestsTotal, "GET", path, "200"); got != 0 {
			t.Errorf("probe endpoint %s recorded %v samples, want 0", path, got)
		}
	}
}

func TestHTTPMetrics_RequestSizeFromContentLength(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := strings.NewReader(`{"delta":10}`)
	req := httptest.NewRequest(http.MethodPost, "/scores/42/delta", body)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := counterVecValue(t, metrics.httpRequestsTotal, "POST", "/scores/{ref}/delta", "200"); got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}
}
