// Package counters reduces time-bucketed daily counter logs (clicks,
// enquiries) into lifetime totals for ranking.
package counters

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Metric identifies a tracked counter.
type Metric string

// Tracked metrics.
const (
	MetricClicks    Metric = "clicks"
	MetricEnquiries Metric = "enquiries"
)

// ErrUnknownMetric is returned for a metric outside the tracked set.
var ErrUnknownMetric = errors.New("unknown counter metric")

// Valid reports whether m is a tracked metric.
func (m Metric) Valid() bool {
	return m == MetricClicks || m == MetricEnquiries
}

// DailyCount is one day's event count for a property and metric.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

// Store provides read access to the daily counter logs. The logs are
// append-only and written by external traffic/enquiry recorders; the ranking
// engine never rewrites them.
type Store interface {
	// GetDailyCounts returns every daily entry recorded for the property
	// and metric, across all periods.
	GetDailyCounts(ctx context.Context, propertyID string, metric Metric) ([]DailyCount, error)
}

// Recorder is the write side used by external collaborators and tests.
type Recorder interface {
	// Record appends count events for the property and metric on the given day.
	Record(ctx context.Context, propertyID string, metric Metric, day time.Time, count int64) error
}

// Aggregator computes lifetime totals from the daily counter logs.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(store Store, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, logger: logger}
}

// LifetimeTotal sums every daily entry ever recorded for the property and
// metric. Returns 0 when no entries exist. A storage read error also yields 0
// with a logged warning: traffic data unavailability must never abort ranking.
func (a *Aggregator) LifetimeTotal(ctx context.Context, propertyID string, metric Metric) int64 {
	if !metric.Valid() {
		a.logger.Warn("lifetime total requested for unknown metric",
			"property_id", propertyID,
			"metric", string(metric))
		return 0
	}

	counts, err := a.store.GetDailyCounts(ctx, propertyID, metric)
	if err != nil {
		a.logger.Warn("counter source unavailable, treating as zero",
			"property_id", propertyID,
			"metric", string(metric),
			"error", err)
		return 0
	}

	var total int64
	for _, c := range counts {
		total += c.Count
	}
	return total
}

// InMemoryStore is an in-memory implementation of Store and Recorder.
// Used for testing and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]DailyCount // propertyID|metric -> daily entries
}

// NewInMemoryStore creates a new in-memory counter store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]DailyCount),
	}
}

func counterKey(propertyID string, metric Metric) string {
	return propertyID + "|" + string(metric)
}

// Record appends count events for the property and metric on the given day.
func (s *InMemoryStore) Record(ctx context.Context, propertyID string, metric Metric, day time.Time, count int64) error {
	if !metric.Valid() {
		return ErrUnknownMetric
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey(propertyID, metric)
	day = day.Truncate(24 * time.Hour)
	for i := range s.entries[key] {
		if s.entries[key][i].Date.Equal(day) {
			s.entries[key][i].Count += count
			return nil
		}
	}
	s.entries[key] = append(s.entries[key], DailyCount{Date: day, Count: count})
	sort.Slice(s.entries[key], func(i, j int) bool {
		return s.entries[key][i].Date.Before(s.entries[key][j].Date)
	})
	return nil
}

// GetDailyCounts returns every daily entry recorded for the property and metric.
func (s *InMemoryStore) GetDailyCounts(ctx context.Context, propertyID string, metric Metric) ([]DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[counterKey(propertyID, metric)]
	out := make([]DailyCount, len(entries))
	copy(out, entries)
	return out, nil
}

// DeleteProperty removes all counter entries for a property (external cascade).
func (s *InMemoryStore) DeleteProperty(ctx context.Context, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, counterKey(propertyID, MetricClicks))
	delete(s.entries, counterKey(propertyID, MetricEnquiries))
	return nil
}
