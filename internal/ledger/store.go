package ledger

import (
	"context"
	"sync"
	"time"
)

// Store persists completeness and SEO scores.
// Get methods return (nil, nil) when no record exists; absence is not an error
// because every signal defaults to zero during ranking.
type Store interface {
	// ApplyDelta atomically adds delta to the property's completeness score,
	// creating the record with score = delta when absent. The operation does
	// not deduplicate: callers fire it at most once per logical content event.
	ApplyDelta(ctx context.Context, propertyID string, delta int) (*CompletenessScore, error)

	// GetCompleteness retrieves the completeness record for a property.
	GetCompleteness(ctx context.Context, propertyID string) (*CompletenessScore, error)

	// UpsertCompleteness replaces the completeness record wholesale.
	// This is the reconciliation write path; it overrides any drift
	// accumulated through ApplyDelta.
	UpsertCompleteness(ctx context.Context, score CompletenessScore) error

	// GetSeo retrieves the SEO score record for a property.
	GetSeo(ctx context.Context, propertyID string) (*SeoScore, error)

	// UpsertSeo stores the externally computed SEO score.
	UpsertSeo(ctx context.Context, score SeoScore) error

	// Delete removes all ledger rows for a property. Invoked by the external
	// cascade when the parent property is deleted.
	Delete(ctx context.Context, propertyID string) error
}

// InMemoryStore is an in-memory implementation of Store for testing
// and development.
type InMemoryStore struct {
	mu           sync.Mutex
	nextID       int64
	completeness map[string]*CompletenessScore
	seo          map[string]*SeoScore
}

// NewInMemoryStore creates a new in-memory ledger store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		completeness: make(map[string]*CompletenessScore),
		seo:          make(map[string]*SeoScore),
	}
}

// ApplyDelta atomically adds delta to the property's completeness score.
func (s *InMemoryStore) ApplyDelta(ctx context.Context, propertyID string, delta int) (*CompletenessScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.completeness[propertyID]
	if !ok {
		s.nextID++
		rec = &CompletenessScore{
			ID:         s.nextID,
			PropertyID: propertyID,
			Score:      delta,
			UpdatedAt:  time.Now(),
		}
		s.completeness[propertyID] = rec
	} else {
		rec.Score += delta
		rec.UpdatedAt = time.Now()
	}

	cp := *rec
	return &cp, nil
}

// GetCompleteness retrieves the completeness record for a property.
func (s *InMemoryStore) GetCompleteness(ctx context.Context, propertyID string) (*CompletenessScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.completeness[propertyID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// UpsertCompleteness replaces the completeness record wholesale.
func (s *InMemoryStore) UpsertCompleteness(ctx context.Context, score CompletenessScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.completeness[score.PropertyID]; ok {
		existing.Score = score.Score
		existing.IsOnline = score.IsOnline
		existing.UpdatedAt = time.Now()
		return nil
	}

	s.nextID++
	score.ID = s.nextID
	score.UpdatedAt = time.Now()
	s.completeness[score.PropertyID] = &score
	return nil
}

// GetSeo retrieves the SEO score record for a property.
func (s *InMemoryStore) GetSeo(ctx context.Context, propertyID string) (*SeoScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.seo[propertyID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// UpsertSeo stores the externally computed SEO score.
func (s *InMemoryStore) UpsertSeo(ctx context.Context, score SeoScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	score.UpdatedAt = time.Now()
	s.seo[score.PropertyID] = &score
	return nil
}

// Delete removes all ledger rows for a property.
func (s *InMemoryStore) Delete(ctx context.Context, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.completeness, propertyID)
	delete(s.seo, propertyID)
	return nil
}
