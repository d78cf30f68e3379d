package counters

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// PostgresStore implements Store and Recorder using PostgreSQL.
// Daily entries live in counter_entries, one row per (property, metric, day).
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// GetDailyCounts returns every daily entry recorded for the property and metric.
func (s *PostgresStore) GetDailyCounts(ctx context.Context, propertyID string, metric Metric) ([]DailyCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, count FROM counter_entries
		 WHERE property_id = $1 AND metric = $2
		 ORDER BY day ASC`,
		propertyID, string(metric))
	if err != nil {
		return nil, fmt.Errorf("failed to query counter entries: %w", err)
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var c DailyCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan counter entry: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counter entries: %w", err)
	}
	return out, nil
}

// Record appends count events for the property and metric on the given day.
func (s *PostgresStore) Record(ctx context.Context, propertyID string, metric Metric, day time.Time, count int64) error {
	if !metric.Valid() {
		return ErrUnknownMetric
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO counter_entries (property_id, metric, day, count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (property_id, metric, day) DO UPDATE
		 SET count = counter_entries.count + EXCLUDED.count`,
		propertyID, string(metric), day.Truncate(24*time.Hour), count)
	if err != nil {
		return fmt.Errorf("failed to record counter entry: %w", err)
	}
	return nil
}
