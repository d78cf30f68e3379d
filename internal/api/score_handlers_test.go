package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestApplyDelta_CreatesRecord(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "prop-a", 0, 0, 0, 0, 0)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, postJSON("/scores/prop-a/delta", `{"delta": 25}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp DeltaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PropertyID != "prop-a" || resp.Score != 25 {
		t.Errorf("response = %+v, want prop-a with score 25", resp)
	}
}

func TestApplyDelta_Accumulates(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "prop-a", 0, 0, 0, 0, 0)
	h := env.scoreHandlers()

	for _, body := range []string{`{"delta": 25}`, `{"delta": 10}`, `{"delta": -40}`} {
		rec := httptest.NewRecorder()
		h.Route(rec, postJSON("/scores/prop-a/delta", body))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d for %s", rec.Code, body)
		}
	}

	score, err := env.ledger.GetCompleteness(context.Background(), "prop-a")
	if err != nil {
		t.Fatalf("GetCompleteness: %v", err)
	}
	if score.Score != -5 {
		t.Errorf("score = %d, want -5 (deltas are never clamped)", score.Score)
	}
}

func TestApplyDelta_ResolvesLegacyKey(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "prop-a", 4711, 0, 0, 0, 0)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, postJSON("/scores/4711/delta", `{"delta": 5}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp DeltaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PropertyID != "prop-a" {
		t.Errorf("property_id = %q, want canonical ID", resp.PropertyID)
	}
}

func TestApplyDelta_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "prop-a", 0, 0, 0, 0, 0)
	h := env.scoreHandlers()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing delta field", `{}`, ErrCodeValidation},
		{"malformed json", `{delta`, ErrCodeValidation},
		{"wrong type", `{"delta": "five"}`, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Route(rec, postJSON("/scores/prop-a/delta", tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestApplyDelta_UnknownProperty(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, postJSON("/scores/prop-missing/delta", `{"delta": 5}`))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodePropertyNotFound {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrCodePropertyNotFound)
	}
}

func TestApplyDelta_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "prop-a", 0, 0, 0, 0, 0)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, httptest.NewRequest(http.MethodGet, "/scores/prop-a/delta", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRecompute_RefreshesOverallScore(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "prop-a", 0, 40, 20, 0, 0)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, postJSON("/scores/prop-a/recompute", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp RecomputeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := (40.0 + 20) / 4; resp.OverallScore != want {
		t.Errorf("overall_score = %v, want %v", resp.OverallScore, want)
	}
	if resp.Signals.Completeness != 40 || resp.Signals.Seo != 20 {
		t.Errorf("signals = %+v, want completeness 40, seo 20", resp.Signals)
	}

	// The stored rank record carries the fresh score, rank untouched.
	stored, err := env.ranks.Get(context.Background(), "prop-a")
	if err != nil {
		t.Fatalf("ranks.Get: %v", err)
	}
	if stored == nil || stored.OverallScore != 15 {
		t.Errorf("stored record = %+v, want overall score 15", stored)
	}
	if stored.Rank != 0 {
		t.Errorf("rank = %d, want 0 (recompute never assigns ranks)", stored.Rank)
	}
}

func TestRecompute_UnknownProperty(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, postJSON("/scores/prop-missing/recompute", ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestScoreRoute_UnknownAction(t *testing.T) {
	env := newTestEnv(t)
	env.addProperty(t, "prop-a", 0, 0, 0, 0, 0)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, postJSON("/scores/prop-a/boost", `{}`))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown action", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestScoreRoute_MissingAction(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.scoreHandlers().Route(rec, postJSON("/scores/prop-a", `{}`))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when action segment is missing", rec.Code)
	}
}
