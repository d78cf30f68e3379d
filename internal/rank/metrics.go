package rank

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankBatchTotal           = "rank_batch_total"
	MetricRankBatchErrors          = "rank_batch_errors_total"
	MetricRankBatchDuration        = "rank_batch_duration_seconds"
	MetricRankLastBatchTimestamp   = "rank_last_batch_timestamp"
	MetricRankLastBatchRankedCount = "rank_last_batch_ranked_count"
)

// Metrics contains Prometheus metrics for batch rank runs.
// All operations are thread-safe.
type Metrics struct {
	batchTotal           prometheus.Counter
	batchErrors          prometheus.Counter
	batchDuration        prometheus.Histogram
	lastBatchTimestamp   prometheus.Gauge
	lastBatchRankedCount prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		batchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankBatchTotal,
			Help: "Total number of completed rank batch runs",
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankBatchErrors,
			Help: "Total number of failed rank batch runs",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankBatchDuration,
			Help:    "Histogram of rank batch run duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		lastBatchTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRankLastBatchTimestamp,
			Help: "Unix timestamp of the last successful rank batch run",
		}),
		lastBatchRankedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRankLastBatchRankedCount,
			Help: "Number of properties ranked in the last successful batch run",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncBatchTotal increments the completed batch counter.
func (m *Metrics) IncBatchTotal() {
	m.batchTotal.Inc()
}

// IncBatchErrors increments the failed batch counter.
func (m *Metrics) IncBatchErrors() {
	m.batchErrors.Inc()
}

// ObserveBatchDuration records a batch duration sample.
func (m *Metrics) ObserveBatchDuration(seconds float64) {
	m.batchDuration.Observe(seconds)
}

// SetLastBatchTimestamp sets the last batch timestamp gauge.
func (m *Metrics) SetLastBatchTimestamp(timestamp float64) {
	m.lastBatchTimestamp.Set(timestamp)
}

// SetLastBatchRankedCount sets the last batch ranked count gauge.
func (m *Metrics) SetLastBatchRankedCount(count float64) {
	m.lastBatchRankedCount.Set(count)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.batchTotal,
		m.batchErrors,
		m.batchDuration,
		m.lastBatchTimestamp,
		m.lastBatchRankedCount,
	}
}
