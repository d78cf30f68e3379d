package completeness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/okplace/listrank/internal/ledger"
	"github.com/okplace/listrank/internal/property"
)

// AttributeSource reports which checklist attributes a listing currently has.
// Backed by the external content collaborators (CRUD services).
type AttributeSource interface {
	// GetAttributes returns the listing's satisfied attributes and its
	// online classification.
	GetAttributes(ctx context.Context, propertyID string) (Attributes, bool, error)
}

// Reconciler resyncs ledger completeness scores against a full checklist
// recompute. The incremental delta path can drift when callers double-fire
// or miss events; the full recompute is the authority.
type Reconciler struct {
	checklist Checklist
	source    AttributeSource
	registry  property.Repository
	store     ledger.Store
	logger    *slog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	checklist Checklist,
	source AttributeSource,
	registry property.Repository,
	store ledger.Store,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		checklist: checklist,
		source:    source,
		registry:  registry,
		store:     store,
		logger:    logger,
	}
}

// Reconcile recomputes one property's completeness score from scratch and
// overwrites the ledger record.
func (r *Reconciler) Reconcile(ctx context.Context, propertyID string) error {
	attrs, isOnline, err := r.source.GetAttributes(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("failed to fetch attributes for %s: %w", propertyID, err)
	}

	score := r.checklist.Evaluate(attrs, isOnline)
	if err := r.store.UpsertCompleteness(ctx, ledger.CompletenessScore{
		PropertyID: propertyID,
		Score:      score,
		IsOnline:   isOnline,
	}); err != nil {
		return err
	}

	r.logger.Debug("completeness score reconciled",
		"property_id", propertyID,
		"score", score,
		"is_online", isOnline)
	return nil
}

// ReconcileAll resyncs every property in the catalog. A single property's
// failure is logged and skipped; the pass continues. Returns the number of
// properties reconciled and the number of failures.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, int, error) {
	props, err := r.registry.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list properties: %w", err)
	}

	var done, failed int
	for _, p := range props {
		select {
		case <-ctx.Done():
			return done, failed, ctx.Err()
		default:
		}

		if err := r.Reconcile(ctx, p.ID); err != nil {
			r.logger.Warn("failed to reconcile completeness score",
				"property_id", p.ID,
				"error", err)
			failed++
			continue
		}
		done++
	}
	return done, failed, nil
}
