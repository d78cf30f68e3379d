// Package ledger provides durable per-property storage of completeness and
// SEO sub-scores with incremental score mutation.
package ledger

import (
	"errors"
	"time"
)

// ErrPersistence is returned when the backing store rejects a write.
var ErrPersistence = errors.New("ledger persistence failure")

// ErrConflict indicates a concurrent update was detected during ApplyDelta.
// It is retried internally and only surfaces wrapped in ErrPersistence once
// the retry budget is exhausted.
var ErrConflict = errors.New("concurrent ledger update conflict")

// DefaultDeltaRetries bounds optimistic-concurrency retries for ApplyDelta.
const DefaultDeltaRetries = 3

// CompletenessScore is the per-property completeness point total.
// The score is mutated incrementally by content-edit handlers and resynced
// by the reconciliation pass; it may be negative after decrements.
type CompletenessScore struct {
	ID         int64     `json:"id"`
	PropertyID string    `json:"property_id"`
	Score      int       `json:"score"`
	IsOnline   bool      `json:"is_online"` // classification cached at last full recompute
	UpdatedAt  time.Time `json:"updated_at"`
}

// SeoScore is the externally computed content-quality score for a property.
// Treated as an opaque numeric input by the ranking engine.
type SeoScore struct {
	PropertyID string    `json:"property_id"`
	Score      float64   `json:"score"`
	UpdatedAt  time.Time `json:"updated_at"`
}
