package rank

import (
	"context"
	"sync"
	"time"
)

// Store persists rank records.
type Store interface {
	// Get retrieves the rank record for a property. Returns (nil, nil) when
	// the property has never been ranked.
	Get(ctx context.Context, propertyID string) (*Record, error)

	// All returns every rank record.
	All(ctx context.Context) ([]Record, error)

	// UpsertOverallScore updates only the overall_score field, creating an
	// unranked record (rank 0) when none exists. The rank integer is owned
	// exclusively by ApplyRanks.
	UpsertOverallScore(ctx context.Context, propertyID string, score float64) error

	// ApplyRanks replaces the rank table with the given records as one
	// atomic unit: either every record lands or none do. This is what keeps
	// the dense 1..N permutation intact across failed or cancelled runs.
	ApplyRanks(ctx context.Context, records []Record) error

	// Delete removes a property's rank record (external cascade).
	Delete(ctx context.Context, propertyID string) error
}

// InMemoryStore is an in-memory implementation of Store for testing
// and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record

	// FailApplyRanks forces ApplyRanks to fail, for batch failure tests.
	FailApplyRanks error
}

// NewInMemoryStore creates a new in-memory rank store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*Record),
	}
}

// Get retrieves the rank record for a property.
func (s *InMemoryStore) Get(ctx context.Context, propertyID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[propertyID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	if rec.LastRank != nil {
		lr := *rec.LastRank
		cp.LastRank = &lr
	}
	return &cp, nil
}

// All returns every rank record.
func (s *InMemoryStore) All(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		if rec.LastRank != nil {
			lr := *rec.LastRank
			cp.LastRank = &lr
		}
		out = append(out, cp)
	}
	return out, nil
}

// UpsertOverallScore updates only the overall_score field.
func (s *InMemoryStore) UpsertOverallScore(ctx context.Context, propertyID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[propertyID]; ok {
		rec.OverallScore = score
		rec.UpdatedAt = time.Now()
		return nil
	}
	s.records[propertyID] = &Record{
		PropertyID:   propertyID,
		OverallScore: score,
		UpdatedAt:    time.Now(),
	}
	return nil
}

// ApplyRanks replaces the rank table with the given records atomically.
func (s *InMemoryStore) ApplyRanks(ctx context.Context, records []Record) error {
	if s.FailApplyRanks != nil {
		return s.FailApplyRanks
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*Record, len(records))
	now := time.Now()
	for _, rec := range records {
		cp := rec
		cp.UpdatedAt = now
		if rec.LastRank != nil {
			lr := *rec.LastRank
			cp.LastRank = &lr
		}
		next[rec.PropertyID] = &cp
	}
	s.records = next
	return nil
}

// Delete removes a property's rank record.
func (s *InMemoryStore) Delete(ctx context.Context, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, propertyID)
	return nil
}
