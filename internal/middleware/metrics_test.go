package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v) error = %v", labels, err)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}

	collectors := m.Collectors()
	if len(collectors) != 7 {
		t.Errorf("expected 7 collectors, got %d", len(collectors))
	}
}

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m.Register(reg); err != nil {
			t.Errorf("Register() returned error: %v", err)
		}

		// Record some samples so vectors show up in Gather()
		m.IncRateLimitRequests("/ranks/batch", "ip")
		m.IncRateLimitBlocked("/ranks/batch", "ip")
		m.IncRateLimitRedisErrors()
		m.ObserveHTTPRequest("GET", "/ranks/{ref}", "200", 0.05, 0, 128)

		families, err := reg.Gather()
		if err != nil {
			t.Errorf("Gather() returned error: %v", err)
		}

		expectedNames := map[string]bool{
			MetricRateLimitRequests:     false,
			MetricRateLimitBlocked:      false,
			MetricRateLimitRedisErrors:  false,
			MetricHTTPRequestDuration:   false,
			MetricHTTPRequestsTotal:     false,
			MetricHTTPRequestSizeBytes:  false,
			MetricHTTPResponseSizeBytes: false,
		}

		for _, family := range families {
			if _, ok := expectedNames[family.GetName()]; ok {
				expectedNames[family.GetName()] = true
			}
		}

		for name, found := range expectedNames {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		m1 := NewMetrics()
		m2 := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m1.Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}

		if err := m2.Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	m := NewMetrics()

	m.ObserveHTTPRequest("POST", "/scores/{ref}/delta", "200", 0.02, 64, 256)
	m.ObserveHTTPRequest("POST", "/scores/{ref}/delta", "200", 0.03, 64, 256)

	if got := counterVecValue(t, m.httpRequestsTotal, "POST", "/scores/{ref}/delta", "200"); got != 2 {
		t.Errorf("http_requests_total = %v, want 2", got)
	}
}
