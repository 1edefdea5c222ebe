// Package middleware provides HTTP middleware for the ingestion API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jharjadi/docingest/internal/service"
)

type contextKey string

const contextKeyAdminSubject contextKey = "admin_subject"

// AdminSubjectFromContext extracts the authenticated admin token's subject
// from the request context. Returns empty string if not present.
func AdminSubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyAdminSubject).(string)
	return v
}

// AdminAuth requires a valid bearer token signed by svc on every request it
// wraps, gating the admin/termination HTTP surface (spec §4.9, SPEC_FULL §C).
// Unlike the teacher's tenant-auth middleware there is no dev-mode bypass --
// termination is destructive enough that it always requires a token.
func AdminAuth(svc *service.AdminAuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "invalid Authorization header format (expected: Bearer <token>)")
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == "" {
				writeAuthError(w, http.StatusUnauthorized, "empty bearer token")
				return
			}

			claims, err := svc.VerifyToken(tokenStr)
			if err != nil {
				slog.Debug("admin JWT verification failed", "error", err)
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyAdminSubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + http.StatusText(status) + `","message":"` + message + `"}`))
}
