package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okplace/listrank/internal/auth"
	"github.com/okplace/listrank/internal/middleware"
)

const authTestSecret = "test-secret-for-auth-middleware-tests"

func authedHandler(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var gotSubject string
	mw := NewAuthMiddleware(auth.NewJWTService(authTestSecret))
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = middleware.GetSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &gotSubject
}

func TestRequireAuth_ValidToken(t *testing.T) {
	handler, gotSubject := authedHandler(t)

	token, err := auth.NewJWTService(authTestSecret).GenerateAccessToken("content-service", "scores:write")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/scores/prop-a/delta", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if *gotSubject != "content-service" {
		t.Errorf("subject = %q, want content-service", *gotSubject)
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	handler, _ := authedHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scores/prop-a/delta", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeAuthFailed {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrCodeAuthFailed)
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	handler, _ := authedHandler(t)

	for _, header := range []string{"Basic dXNlcg==", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodPost, "/scores/prop-a/delta", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	handler, _ := authedHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/scores/prop-a/delta", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuth_WrongSecret(t *testing.T) {
	handler, _ := authedHandler(t)

	token, err := auth.NewJWTService("a-different-secret").GenerateAccessToken("imposter", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/scores/prop-a/delta", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuth_RefreshTokenRejected(t *testing.T) {
	handler, _ := authedHandler(t)

	token, err := auth.NewJWTService(authTestSecret).GenerateRefreshToken("scheduler")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/ranks/batch", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for refresh token on a guarded route", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeAuthFailed {
		t.Errorf("error code = %q, want %q", resp.Error.Code, ErrCodeAuthFailed)
	}
}
