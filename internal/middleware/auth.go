// Package middleware provides HTTP middleware for admin authentication,
// CORS handling, rate limiting, client IP resolution and request context.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/andersoncleaning/telemetry/internal/logging"
	"github.com/andersoncleaning/telemetry/internal/services"
)

type claimsKey struct{}

var (
	errMissingAuth   = errors.New("missing authorization header")
	errInvalidFormat = errors.New("invalid authorization header format")
)

// AuthMiddleware validates the bearer token and adds its claims to the
// request context. Missing or invalid tokens get 401.
func AuthMiddleware(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				event := logging.SecurityEventInvalidAuthFmt
				if errors.Is(err, errMissingAuth) {
					event = logging.SecurityEventMissingAuth
				}
				logging.LogSecurityEvent(r.Context(), event, err.Error())
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := authService.ValidateToken(token)
			if err != nil {
				logging.LogSecurityEvent(r.Context(), logging.SecurityEventInvalidJWT, "invalid or expired token")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>". The
// scheme is case-insensitive.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingAuth
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
		return "", errInvalidFormat
	}
	return token, nil
}

// RequireRole restricts access to tokens carrying role. It must run after
// AuthMiddleware; other callers get 403.
func RequireRole(role services.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil || claims.Role != role {
				logging.LogSecurityEvent(r.Context(), logging.SecurityEventNonAdminAccess, string(role)+" access required")
				writeError(w, http.StatusForbidden, string(role)+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnlyMiddleware is RequireRole(services.RoleAdmin).
var AdminOnlyMiddleware = RequireRole(services.RoleAdmin)

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaims retrieves the JWT claims from the request context, or nil for
// unauthenticated requests.
func GetClaims(ctx context.Context) *services.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*services.Claims)
	return claims
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
