// Package rank implements the batch rank assignor: it orders the entire
// property catalog by the four ranking signals and maintains rank movement
// deltas between runs.
package rank

import (
	"errors"
	"fmt"
	"time"

	"github.com/okplace/listrank/internal/overall"
)

// ErrPersistence is returned when the rank store rejects a write.
var ErrPersistence = errors.New("rank persistence failure")

// Record is the per-property rank row. Rank values across all records form a
// dense permutation 1..N. LastRank holds the rank held before the most
// recent change; it is nil until the rank first changes and is never
// overwritten by a run that leaves the rank unchanged.
type Record struct {
	PropertyID   string    `json:"property_id"`
	Rank         int       `json:"rank"`
	OverallScore float64   `json:"overall_score"`
	LastRank     *int      `json:"last_rank,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BatchReport summarizes a completed batch run.
type BatchReport struct {
	RunID       string        `json:"run_id"`
	RankedCount int           `json:"ranked_count"`
	ActiveCount int           `json:"active_count"`
	ZeroCount   int           `json:"zero_count"`
	Duration    time.Duration `json:"duration"`
}

// BatchError reports a failed batch run together with how many properties
// were processed before the failure, for operational diagnosis.
type BatchError struct {
	Processed int
	Err       error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch run failed after processing %d properties: %v", e.Processed, e.Err)
}

// Unwrap returns the underlying error.
func (e *BatchError) Unwrap() error {
	return e.Err
}

// sortKey is the composite descending sort key for the active set. Building
// an explicit key tuple and sorting once keeps the five-way cascade testable
// in isolation.
type sortKey struct {
	overall      float64
	clicks       int64
	enquiries    int64
	completeness int
	seo          float64
}

func keyFor(score float64, sig overall.Signals) sortKey {
	return sortKey{
		overall:      score,
		clicks:       sig.Clicks,
		enquiries:    sig.Enquiries,
		completeness: sig.Completeness,
		seo:          sig.Seo,
	}
}

// less orders keys by the fixed cascade: overall score, lifetime clicks,
// lifetime enquiries, completeness score, SEO score, all descending. Each
// criterion only breaks ties in the previous one. Keys equal on all five
// criteria compare as not-less; the caller's stable sort preserves their
// relative order.
func (k sortKey) less(other sortKey) bool {
	if k.overall != other.overall {
		return k.overall > other.overall
	}
	if k.clicks != other.clicks {
		return k.clicks > other.clicks
	}
	if k.enquiries != other.enquiries {
		return k.enquiries > other.enquiries
	}
	if k.completeness != other.completeness {
		return k.completeness > other.completeness
	}
	if k.seo != other.seo {
		return k.seo > other.seo
	}
	return false
}
