package rank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okplace/listrank/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL.
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

// Get retrieves the rank record for a property.
func (s *PostgresStore) Get(ctx context.Context, propertyID string) (*Record, error) {
	var rec Record
	var lastRank sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT property_id, rank, overall_score, last_rank, updated_at
		 FROM ranks WHERE property_id = $1`, propertyID).
		Scan(&rec.PropertyID, &rec.Rank, &rec.OverallScore, &lastRank, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rank record: %w", err)
	}
	if lastRank.Valid {
		lr := int(lastRank.Int64)
		rec.LastRank = &lr
	}
	return &rec, nil
}

// All returns every rank record ordered by rank.
func (s *PostgresStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT property_id, rank, overall_score, last_rank, updated_at
		 FROM ranks ORDER BY rank ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rank records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var lastRank sql.NullInt64
		if err := rows.Scan(&rec.PropertyID, &rec.Rank, &rec.OverallScore, &lastRank, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rank record: %w", err)
		}
		if lastRank.Valid {
			lr := int(lastRank.Int64)
			rec.LastRank = &lr
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rank records: %w", err)
	}
	return out, nil
}

// UpsertOverallScore updates only the overall_score field, creating an
// unranked record when none exists.
func (s *PostgresStore) UpsertOverallScore(ctx context.Context, propertyID string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ranks (property_id, rank, overall_score, updated_at)
		 VALUES ($1, 0, $2, NOW())
		 ON CONFLICT (property_id) DO UPDATE
		 SET overall_score = EXCLUDED.overall_score, updated_at = NOW()`,
		propertyID, score)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert overall score: %v", ErrPersistence, err)
	}
	return nil
}

// ApplyRanks replaces the rank table with the given records in a single
// transaction. A failed or cancelled run rolls back wholesale, so the
// previous dense permutation stays intact.
func (s *PostgresStore) ApplyRanks(ctx context.Context, records []Record) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "ranks", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrPersistence, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	// Clear stale rows first: properties deleted since the last run must not
	// keep a rank.
	if _, err := tx.ExecContext(ctx, `DELETE FROM ranks`); err != nil {
		return fmt.Errorf("%w: failed to clear rank table: %v", ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ranks (property_id, rank, overall_score, last_rank, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())`)
	if err != nil {
		return fmt.Errorf("%w: failed to prepare insert: %v", ErrPersistence, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var lastRank sql.NullInt64
		if rec.LastRank != nil {
			lastRank = sql.NullInt64{Int64: int64(*rec.LastRank), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.PropertyID, rec.Rank, rec.OverallScore, lastRank); err != nil {
			return fmt.Errorf("%w: failed to insert rank for %s: %v", ErrPersistence, rec.PropertyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit rank table: %v", ErrPersistence, err)
	}
	return nil
}

// Delete removes a property's rank record.
func (s *PostgresStore) Delete(ctx context.Context, propertyID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM ranks WHERE property_id = $1`, propertyID); err != nil {
		return fmt.Errorf("%w: failed to delete rank record: %v", ErrPersistence, err)
	}
	return nil
}
