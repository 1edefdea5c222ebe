package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jharjadi/docingest/internal/service"
)

func TestAdminAuth_ValidToken(t *testing.T) {
	svc := service.NewAdminAuthService("test-secret", 1)
	token, err := svc.SignToken("operator-1")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var gotSubject string
	handler := AdminAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = AdminSubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/terminate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotSubject != "operator-1" {
		t.Errorf("subject: got %q, want %q", gotSubject, "operator-1")
	}
}

func TestAdminAuth_MissingHeader(t *testing.T) {
	svc := service.NewAdminAuthService("test-secret", 1)
	handler := AdminAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/terminate", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestAdminAuth_InvalidToken(t *testing.T) {
	svc := service.NewAdminAuthService("test-secret", 1)
	handler := AdminAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/terminate", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}
