package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okplace/listrank/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL.
//
// ApplyDelta uses optimistic concurrency: the row carries a version column,
// and the update only lands if the version is unchanged since the read.
// Conflicts are retried with a fresh read up to maxRetries times before the
// operation fails with ErrPersistence.
type PostgresStore struct {
	db         *sql.DB
	logger     *slog.Logger
	maxRetries int
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:         db,
		logger:     logger,
		maxRetries: DefaultDeltaRetries,
	}
}

// ApplyDelta atomically adds delta to the property's completeness score.
func (s *PostgresStore) ApplyDelta(ctx context.Context, propertyID string, delta int) (rec *CompletenessScore, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "completeness_scores", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		rec, err := s.applyDeltaOnce(ctx, propertyID, delta)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("retrying delta after conflict",
			"property_id", propertyID,
			"attempt", attempt+1)
	}
	return nil, fmt.Errorf("%w: delta retries exhausted: %v", ErrPersistence, lastErr)
}

func (s *PostgresStore) applyDeltaOnce(ctx context.Context, propertyID string, delta int) (*CompletenessScore, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", ErrPersistence, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	var rec CompletenessScore
	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT id, property_id, score, is_online, version, updated_at
		 FROM completeness_scores WHERE property_id = $1`, propertyID).
		Scan(&rec.ID, &rec.PropertyID, &rec.Score, &rec.IsOnline, &version, &rec.UpdatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First delta for this property creates the record.
		err = tx.QueryRowContext(ctx,
			`INSERT INTO completeness_scores (property_id, score, is_online, version, updated_at)
			 VALUES ($1, $2, FALSE, 1, NOW())
			 ON CONFLICT (property_id) DO NOTHING
			 RETURNING id, property_id, score, is_online, updated_at`,
			propertyID, delta).
			Scan(&rec.ID, &rec.PropertyID, &rec.Score, &rec.IsOnline, &rec.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			// Another writer created the row between our read and insert.
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to insert score: %v", ErrPersistence, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%w: failed to read score: %v", ErrPersistence, err)
	default:
		res, err := tx.ExecContext(ctx,
			`UPDATE completeness_scores
			 SET score = score + $1, version = version + 1, updated_at = NOW()
			 WHERE property_id = $2 AND version = $3`,
			delta, propertyID, version)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to update score: %v", ErrPersistence, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to check update: %v", ErrPersistence, err)
		}
		if affected == 0 {
			return nil, ErrConflict
		}
		rec.Score += delta
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit: %v", ErrPersistence, err)
	}
	return &rec, nil
}

// GetCompleteness retrieves the completeness record for a property.
func (s *PostgresStore) GetCompleteness(ctx context.Context, propertyID string) (*CompletenessScore, error) {
	var rec CompletenessScore
	err := s.db.QueryRowContext(ctx,
		`SELECT id, property_id, score, is_online, updated_at
		 FROM completeness_scores WHERE property_id = $1`, propertyID).
		Scan(&rec.ID, &rec.PropertyID, &rec.Score, &rec.IsOnline, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completeness score: %w", err)
	}
	return &rec, nil
}

// UpsertCompleteness replaces the completeness record wholesale.
func (s *PostgresStore) UpsertCompleteness(ctx context.Context, score CompletenessScore) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completeness_scores (property_id, score, is_online, version, updated_at)
		 VALUES ($1, $2, $3, 1, NOW())
		 ON CONFLICT (property_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     is_online = EXCLUDED.is_online,
		     version = completeness_scores.version + 1,
		     updated_at = NOW()`,
		score.PropertyID, score.Score, score.IsOnline)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert completeness score: %v", ErrPersistence, err)
	}
	return nil
}

// GetSeo retrieves the SEO score record for a property.
func (s *PostgresStore) GetSeo(ctx context.Context, propertyID string) (*SeoScore, error) {
	var rec SeoScore
	err := s.db.QueryRowContext(ctx,
		`SELECT property_id, score, updated_at
		 FROM seo_scores WHERE property_id = $1`, propertyID).
		Scan(&rec.PropertyID, &rec.Score, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seo score: %w", err)
	}
	return &rec, nil
}

// UpsertSeo stores the externally computed SEO score.
func (s *PostgresStore) UpsertSeo(ctx context.Context, score SeoScore) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seo_scores (property_id, score, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (property_id) DO UPDATE
		 SET score = EXCLUDED.score, updated_at = NOW()`,
		score.PropertyID, score.Score)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert seo score: %v", ErrPersistence, err)
	}
	return nil
}

// Delete removes all ledger rows for a property.
func (s *PostgresStore) Delete(ctx context.Context, propertyID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrPersistence, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM completeness_scores WHERE property_id = $1`, propertyID); err != nil {
		return fmt.Errorf("%w: failed to delete completeness score: %v", ErrPersistence, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seo_scores WHERE property_id = $1`, propertyID); err != nil {
		return fmt.Errorf("%w: failed to delete seo score: %v", ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %v", ErrPersistence, err)
	}
	return nil
}
