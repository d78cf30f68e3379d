package completeness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okplace/listrank/internal/tracing"
)

// PostgresAttributeSource reads listing attributes from the property_attributes
// table, which the content services keep current. Each row marks one satisfied
// checklist item for a property.
type PostgresAttributeSource struct {
	db *sql.DB
}

// NewPostgresAttributeSource creates a new PostgresAttributeSource.
func NewPostgresAttributeSource(db *sql.DB) *PostgresAttributeSource {
	return &PostgresAttributeSource{db: db}
}

// GetAttributes returns the property's satisfied attributes and its online
// classification.
func (s *PostgresAttributeSource) GetAttributes(ctx context.Context, propertyID string) (attrs Attributes, isOnline bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "property_attributes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowContext(ctx,
		`SELECT is_online FROM properties WHERE id = $1`, propertyID).Scan(&isOnline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("unknown property %s", propertyID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read property: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM property_attributes WHERE property_id = $1`, propertyID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer rows.Close()

	attrs = make(Attributes)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, false, fmt.Errorf("failed to scan attribute: %w", err)
		}
		attrs[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate attributes: %w", err)
	}
	return attrs, isOnline, nil
}
