// Package health provides readiness checks for the ranking service's
// backing stores.
package health

import (
	"context"
	"database/sql"
)

// DBChecker reports whether the Postgres connection pool is reachable.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
