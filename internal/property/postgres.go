package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Resolve maps a property reference to its canonical ID.
// Numeric references are tried against the legacy key first so that a purely
// numeric canonical ID cannot shadow a legacy key.
func (r *PostgresRepository) Resolve(ctx context.Context, ref string) (string, error) {
	if !ValidRef(ref) {
		return "", ErrInvalidIdentifier
	}

	if key, err := strconv.ParseInt(ref, 10, 64); err == nil {
		var id string
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM properties WHERE legacy_key = $1`, key).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("failed to resolve legacy key: %w", err)
		}
	}

	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM properties WHERE id = $1`, ref).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPropertyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve property reference: %w", err)
	}
	return id, nil
}

// GetByID retrieves a property by its canonical ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Property, error) {
	var p Property
	var legacy sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, legacy_key, name, is_online, created_at
		 FROM properties WHERE id = $1`, id).
		Scan(&p.ID, &legacy, &p.Name, &p.IsOnline, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	if legacy.Valid {
		p.LegacyKey = legacy.Int64
	}
	return &p, nil
}

// List returns every property ordered by creation time, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Property, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, legacy_key, name, is_online, created_at
		 FROM properties ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var out []Property
	for rows.Next() {
		var p Property
		var legacy sql.NullInt64
		if err := rows.Scan(&p.ID, &legacy, &p.Name, &p.IsOnline, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		if legacy.Valid {
			p.LegacyKey = legacy.Int64
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}
	return out, nil
}
