// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
	// TenantIDKey is the context key for tenant ID.
	TenantIDKey ContextKey = "tenant_id"
	// ScopesKey is the context key for JWT scopes.
	ScopesKey ContextKey = "scopes"
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Scopes   []string `json:"scope"`
}

// Auth creates JWT authentication middleware. Tokens must carry a valid
// tenant_id; dialogue trees are stored per tenant.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeAuthError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := parts[1]

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if err := ValidateTenantID(claims.TenantID); err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			// Add claims to context
			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, TenantIDKey, claims.TenantID)
			ctx = context.WithValue(ctx, ScopesKey, claims.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetTenantID gets tenant ID from context.
func GetTenantID(ctx context.Context) string {
	if v := ctx.Value(TenantIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetScopes gets scopes from context.
func GetScopes(ctx context.Context) []string {
	if v := ctx.Value(ScopesKey); v != nil {
		return v.([]string)
	}
	return nil
}

// HasScope checks if the context has a specific scope.
func HasScope(ctx context.Context, scope string) bool {
	scopes := GetScopes(ctx)
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RequireWriteScope creates middleware that requires scope for every request
// that is not a GET, HEAD or OPTIONS. An empty scope disables the check.
func RequireWriteScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				if scope != "" && !HasScope(r.Context(), scope) {
					writeAuthError(w, http.StatusForbidden, "insufficient permissions")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
