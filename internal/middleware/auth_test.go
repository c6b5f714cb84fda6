package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/connexus-ai/tailor-backend/internal/service"
)

type mockVerifier struct {
	uid string
	err error
}

func (m *mockVerifier) VerifyIDToken(ctx context.Context, idToken string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.uid, nil
}

func echoUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, UserIDFromContext(r.Context()))
	})
}

func TestBearerAuth_ValidToken(t *testing.T) {
	authSvc := service.NewAuthService(&mockVerifier{uid: "user-42"})
	h := BearerAuth(authSvc)(echoUserHandler())

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer token-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "user-42" {
		t.Errorf("user = %q", rec.Body.String())
	}
}

func TestBearerAuth_MissingToken(t *testing.T) {
	authSvc := service.NewAuthService(&mockVerifier{uid: "user-42"})
	h := BearerAuth(authSvc)(echoUserHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/projects", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UNAUTHORIZED") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestBearerAuth_InvalidToken(t *testing.T) {
	authSvc := service.NewAuthService(&mockVerifier{err: fmt.Errorf("expired")})
	h := BearerAuth(authSvc)(echoUserHandler())

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestInternalAuth_ValidSecret(t *testing.T) {
	authSvc := service.NewAuthService(&mockVerifier{err: fmt.Errorf("firebase should not be called")})
	h := InternalOrBearerAuth(authSvc, "shared-secret")(echoUserHandler())

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("X-Internal-Auth", "shared-secret")
	req.Header.Set("X-User-ID", "internal-user")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "internal-user" {
		t.Errorf("user = %q", rec.Body.String())
	}
}

func TestInternalAuth_WrongSecret(t *testing.T) {
	authSvc := service.NewAuthService(&mockVerifier{uid: "x"})
	h := InternalOrBearerAuth(authSvc, "shared-secret")(echoUserHandler())

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("X-Internal-Auth", "wrong")
	req.Header.Set("X-User-ID", "internal-user")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestInternalAuth_RejectsNonPrintableUserID(t *testing.T) {
	authSvc := service.NewAuthService(&mockVerifier{uid: "x"})
	h := InternalOrBearerAuth(authSvc, "shared-secret")(echoUserHandler())

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("X-Internal-Auth", "shared-secret")
	req.Header.Set("X-User-ID", "bad\x01id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
