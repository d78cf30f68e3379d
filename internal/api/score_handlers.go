package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/okplace/listrank/internal/ledger"
	"github.com/okplace/listrank/internal/middleware"
	"github.com/okplace/listrank/internal/overall"
	"github.com/okplace/listrank/internal/property"
)

// DeltaRequest is the body for POST /scores/{propertyRef}/delta.
type DeltaRequest struct {
	Delta *int `json:"delta"`
}

// DeltaResponse is returned after a successfully applied completeness delta.
type DeltaResponse struct {
	PropertyID string `json:"property_id"`
	Score      int    `json:"score"`
	UpdatedAt  string `json:"updated_at"`
}

// RecomputeResponse is returned after an on-demand overall score refresh.
type RecomputeResponse struct {
	PropertyID   string          `json:"property_id"`
	OverallScore float64         `json:"overall_score"`
	Signals      overall.Signals `json:"signals"`
}

// ScoreHandlers holds dependencies for score mutation HTTP handlers.
type ScoreHandlers struct {
	registry   property.Repository
	ledger     ledger.Store
	calculator *overall.Calculator
}

// NewScoreHandlers creates a new ScoreHandlers instance.
func NewScoreHandlers(registry property.Repository, ledgerStore ledger.Store, calculator *overall.Calculator) *ScoreHandlers {
	return &ScoreHandlers{
		registry:   registry,
		ledger:     ledgerStore,
		calculator: calculator,
	}
}

// Route dispatches /scores/{propertyRef}/{action} to the matching handler.
// Registered as the single handler for the /scores/ prefix.
func (h *ScoreHandlers) Route(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/scores/"), "/")
	if len(parts) != 2 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Not found")
		return
	}

	ref, action := parts[0], parts[1]
	switch action {
	case "delta":
		h.ApplyDelta(w, r, ref)
	case "recompute":
		h.Recompute(w, r, ref)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Not found")
	}
}

// ApplyDelta handles POST /scores/{propertyRef}/delta.
// The delta is applied exactly as given; callers own deduplication of their
// content events.
func (h *ScoreHandlers) ApplyDelta(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	propertyID, ok := resolveRef(w, r, h.registry, ref)
	if !ok {
		return
	}

	var req DeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid request body")
		return
	}
	if req.Delta == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "delta is required")
		return
	}

	rec, err := h.ledger.ApplyDelta(r.Context(), propertyID, *req.Delta)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to apply completeness delta",
			"error", err, "property_id", propertyID, "delta", *req.Delta)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to apply score delta")
		return
	}

	writeJSON(w, r, http.StatusOK, DeltaResponse{
		PropertyID: rec.PropertyID,
		Score:      rec.Score,
		UpdatedAt:  rec.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// Recompute handles POST /scores/{propertyRef}/recompute.
// Refreshes the stored overall score outside a batch run; the rank itself is
// untouched until the next batch.
func (h *ScoreHandlers) Recompute(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	propertyID, ok := resolveRef(w, r, h.registry, ref)
	if !ok {
		return
	}

	score, sig, err := h.calculator.Recompute(r.Context(), propertyID)
	if err != nil {
		if errors.Is(err, ledger.ErrPersistence) {
			slog.ErrorContext(r.Context(), "recompute persistence failure",
				"error", err, "property_id", propertyID)
		} else {
			slog.ErrorContext(r.Context(), "failed to recompute overall score",
				"error", err, "property_id", propertyID)
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to recompute overall score")
		return
	}

	writeJSON(w, r, http.StatusOK, RecomputeResponse{
		PropertyID:   propertyID,
		OverallScore: score,
		Signals:      sig,
	})
}
