package completeness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/okplace/listrank/internal/ledger"
	"github.com/okplace/listrank/internal/property"
)

// stubAttributeSource serves fixed attributes per property.
type stubAttributeSource struct {
	attrs    map[string]Attributes
	online   map[string]bool
	failFor  map[string]bool
}

func (s *stubAttributeSource) GetAttributes(ctx context.Context, propertyID string) (Attributes, bool, error) {
	if s.failFor[propertyID] {
		return nil, false, errors.New("content service unavailable")
	}
	return s.attrs[propertyID], s.online[propertyID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcile_OverwritesDriftedScore(t *testing.T) {
	store := ledger.NewInMemoryStore()
	registry := property.NewInMemoryRepository()
	registry.Add(property.Property{ID: "prop-1", CreatedAt: time.Now()})
	ctx := context.Background()

	// Drifted incremental state.
	if _, err := store.ApplyDelta(ctx, "prop-1", 99); err != nil {
		t.Fatalf("ApplyDelta error = %v", err)
	}

	source := &stubAttributeSource{
		attrs:  map[string]Attributes{"prop-1": {"gallery": true, "contact_details": true}},
		online: map[string]bool{},
	}
	rec := NewReconciler(DefaultChecklist(), source, registry, store, testLogger())

	if err := rec.Reconcile(ctx, "prop-1"); err != nil {
		t.Fatalf("Reconcile error = %v", err)
	}

	got, err := store.GetCompleteness(ctx, "prop-1")
	if err != nil {
		t.Fatalf("GetCompleteness error = %v", err)
	}
	want := 15 + 10 // gallery + contact_details
	if got.Score != want {
		t.Errorf("Score = %d, want %d (full recompute is authoritative)", got.Score, want)
	}
}

func TestReconcile_CachesOnlineClassification(t *testing.T) {
	store := ledger.NewInMemoryStore()
	registry := property.NewInMemoryRepository()
	source := &stubAttributeSource{
		attrs:  map[string]Attributes{"prop-1": {}},
		online: map[string]bool{"prop-1": true},
	}
	rec := NewReconciler(DefaultChecklist(), source, registry, store, testLogger())

	if err := rec.Reconcile(context.Background(), "prop-1"); err != nil {
		t.Fatalf("Reconcile error = %v", err)
	}

	got, _ := store.GetCompleteness(context.Background(), "prop-1")
	if !got.IsOnline {
		t.Error("IsOnline not cached on ledger record")
	}
	// Online listing with nothing set still gets the physical-presence points.
	if got.Score != 30 {
		t.Errorf("Score = %d, want 30 (force-awarded offline-only items)", got.Score)
	}
}

func TestReconcileAll_ContinuesPastFailures(t *testing.T) {
	store := ledger.NewInMemoryStore()
	registry := property.NewInMemoryRepository()
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	registry.Add(property.Property{ID: "prop-1", CreatedAt: base})
	registry.Add(property.Property{ID: "prop-2", CreatedAt: base.AddDate(0, 0, 1)})
	registry.Add(property.Property{ID: "prop-3", CreatedAt: base.AddDate(0, 0, 2)})

	source := &stubAttributeSource{
		attrs:   map[string]Attributes{"prop-1": {"gallery": true}, "prop-3": {"courses": true}},
		online:  map[string]bool{},
		failFor: map[string]bool{"prop-2": true},
	}
	rec := NewReconciler(DefaultChecklist(), source, registry, store, testLogger())

	done, failed, err := rec.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll error = %v", err)
	}
	if done != 2 || failed != 1 {
		t.Errorf("done = %d, failed = %d, want 2 and 1", done, failed)
	}

	if got, _ := store.GetCompleteness(context.Background(), "prop-3"); got == nil || got.Score != 20 {
		t.Errorf("prop-3 record = %+v, want score 20", got)
	}
}

func TestReconcileAll_HonorsCancellation(t *testing.T) {
	store := ledger.NewInMemoryStore()
	registry := property.NewInMemoryRepository()
	registry.Add(property.Property{ID: "prop-1", CreatedAt: time.Now()})

	source := &stubAttributeSource{attrs: map[string]Attributes{}, online: map[string]bool{}}
	rec := NewReconciler(DefaultChecklist(), source, registry, store, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := rec.ReconcileAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ReconcileAll error = %v, want context.Canceled", err)
	}
}
