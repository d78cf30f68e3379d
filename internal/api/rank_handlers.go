// Package api provides HTTP API handlers for the property ranking service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/okplace/listrank/internal/middleware"
	"github.com/okplace/listrank/internal/property"
	"github.com/okplace/listrank/internal/rank"
)

// RankResponse is the JSON shape for a rank record.
type RankResponse struct {
	PropertyID   string  `json:"property_id"`
	Rank         int     `json:"rank"`
	OverallScore float64 `json:"overall_score"`
	LastRank     *int    `json:"last_rank"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// BatchResponse is the JSON shape for a completed batch run.
type BatchResponse struct {
	RunID           string  `json:"run_id"`
	RankedCount     int     `json:"ranked_count"`
	ActiveCount     int     `json:"active_count"`
	ZeroCount       int     `json:"zero_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RankHandlers holds dependencies for rank HTTP handlers.
type RankHandlers struct {
	registry property.Repository
	ranks    rank.Store
	assignor *rank.Assignor
}

// NewRankHandlers creates a new RankHandlers instance.
func NewRankHandlers(registry property.Repository, ranks rank.Store, assignor *rank.Assignor) *RankHandlers {
	return &RankHandlers{
		registry: registry,
		ranks:    ranks,
		assignor: assignor,
	}
}

// resolveRef resolves a property reference from a URL path segment, writing
// the appropriate error response when resolution fails. Returns the canonical
// property ID and whether the caller should continue.
func resolveRef(w http.ResponseWriter, r *http.Request, registry property.Repository, ref string) (string, bool) {
	if ref == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Property reference is required")
		return "", false
	}

	id, err := registry.Resolve(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, property.ErrInvalidIdentifier):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidIdentifier)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidIdentifier, "Property reference is not a valid identifier")
		case errors.Is(err, property.ErrPropertyNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePropertyNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodePropertyNotFound, "Property not found")
		default:
			slog.ErrorContext(r.Context(), "failed to resolve property reference", "error", err, "ref", ref)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve property")
		}
		return "", false
	}
	return id, true
}

// GetRank handles GET /ranks/{propertyRef}.
func (h *RankHandlers) GetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ref := strings.TrimPrefix(r.URL.Path, "/ranks/")
	if idx := strings.Index(ref, "/"); idx != -1 {
		ref = ref[:idx]
	}

	propertyID, ok := resolveRef(w, r, h.registry, ref)
	if !ok {
		return
	}

	rec, err := h.ranks.Get(r.Context(), propertyID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to get rank record", "error", err, "property_id", propertyID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve rank")
		return
	}

	// A property with no record yet reports rank 0 (never ranked), matching
	// the stored representation produced by score recomputes.
	resp := RankResponse{PropertyID: propertyID}
	if rec != nil {
		resp.Rank = rec.Rank
		resp.OverallScore = rec.OverallScore
		resp.LastRank = rec.LastRank
		if !rec.UpdatedAt.IsZero() {
			resp.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// TriggerBatch handles POST /ranks/batch.
func (h *RankHandlers) TriggerBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	report, err := h.assignor.RunBatch(r.Context())
	if err != nil {
		var batchErr *rank.BatchError
		processed := 0
		if errors.As(err, &batchErr) {
			processed = batchErr.Processed
		}
		slog.ErrorContext(r.Context(), "triggered rank batch failed",
			"error", err, "processed", processed)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBatchFailed)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeBatchFailed, "Batch run failed; no ranks were changed")
		return
	}

	writeJSON(w, r, http.StatusOK, BatchResponse{
		RunID:           report.RunID,
		RankedCount:     report.RankedCount,
		ActiveCount:     report.ActiveCount,
		ZeroCount:       report.ZeroCount,
		DurationSeconds: report.Duration.Seconds(),
	})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err, "path", r.URL.Path)
	}
}
