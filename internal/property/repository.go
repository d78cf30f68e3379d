// Package property provides the property registry: canonical identifiers,
// existence checks, and creation timestamps for ranked listings.
package property

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// Repository defines read access to the property catalog.
// The catalog itself is maintained by external collaborators; the ranking
// engine only resolves references and enumerates properties.
type Repository interface {
	// Resolve maps a property reference to its canonical ID. The reference
	// may be a numeric legacy key or the canonical ID itself.
	// Returns ErrInvalidIdentifier for malformed references and
	// ErrPropertyNotFound when a well-formed reference matches nothing.
	Resolve(ctx context.Context, ref string) (string, error)

	// GetByID retrieves a property by its canonical ID.
	// Returns ErrPropertyNotFound when the property does not exist.
	GetByID(ctx context.Context, id string) (*Property, error)

	// List returns every property in the catalog.
	List(ctx context.Context) ([]Property, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*Property
	byLegacy map[int64]string
}

// NewInMemoryRepository creates a new in-memory property repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:     make(map[string]*Property),
		byLegacy: make(map[int64]string),
	}
}

// Add registers a property in the repository.
func (r *InMemoryRepository) Add(p Property) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.byID[p.ID] = &cp
	if p.LegacyKey != 0 {
		r.byLegacy[p.LegacyKey] = p.ID
	}
}

// Remove deletes a property from the repository.
func (r *InMemoryRepository) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		if p.LegacyKey != 0 {
			delete(r.byLegacy, p.LegacyKey)
		}
		delete(r.byID, id)
	}
}

// Resolve maps a property reference to its canonical ID.
func (r *InMemoryRepository) Resolve(ctx context.Context, ref string) (string, error) {
	if !ValidRef(ref) {
		return "", ErrInvalidIdentifier
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if key, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id, ok := r.byLegacy[key]; ok {
			return id, nil
		}
	}
	if _, ok := r.byID[ref]; ok {
		return ref, nil
	}
	return "", ErrPropertyNotFound
}

// GetByID retrieves a property by its canonical ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns every property ordered by creation time, oldest first.
func (r *InMemoryRepository) List(ctx context.Context) ([]Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Property, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
