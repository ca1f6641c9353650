// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
)

// Auth requires a "Bearer <token>" Authorization header and puts the token's
// user ID and role on the request context.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
				return
			}

			claims, err := ParseToken(secret, raw)
			switch {
			case errors.Is(err, errMissingUser):
				writeError(w, http.StatusUnauthorized, "Invalid token: missing user ID")
				return
			case errors.Is(err, errUnknownRole):
				writeError(w, http.StatusUnauthorized, "Invalid token: unknown role")
				return
			case err != nil:
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxkeys.UserID, claims.UserID)
			ctx = context.WithValue(ctx, ctxkeys.UserRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMinRole returns middleware that restricts access to users with at least
// the specified role level.
// Hierarchy: super_admin > mlgoo_dilg > validator > assessor > blgu_user.
func RequireMinRole(minRole string) func(http.Handler) http.Handler {
	minLevel := ctxkeys.RoleLevel[minRole]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			level := ctxkeys.RoleLevel[ctxkeys.GetUserRole(r.Context())]

			if level < minLevel {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles restricts access to an explicit set of roles. Assessors and
// validators are peers with different duties, so a level check is not enough.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[ctxkeys.GetUserRole(r.Context())] {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InjectBarangayScope binds BLGU users to the barangay recorded on their
// account. Every other role keeps global scope. Must be used after Auth.
func InjectBarangayScope(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctxkeys.GetUserRole(r.Context()) != ctxkeys.RoleBLGU {
				next.ServeHTTP(w, r)
				return
			}

			userID := ctxkeys.GetUserID(r.Context())

			var barangayID *string
			err := pool.QueryRow(r.Context(),
				`SELECT barangay_id::text FROM users WHERE id = $1`, userID).Scan(&barangayID)
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "User no longer exists")
				return
			}
			if err != nil {
				zap.L().Error("failed to resolve barangay scope", zap.String("user_id", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Failed to resolve barangay access")
				return
			}
			if barangayID == nil || *barangayID == "" {
				writeError(w, http.StatusForbidden, "Your account is not assigned to a barangay")
				return
			}

			ctx := context.WithValue(r.Context(), ctxkeys.BarangayScope, *barangayID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
