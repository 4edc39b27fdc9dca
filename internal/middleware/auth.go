package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pizza-nz/staff-ordering/internal/api"
	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

// contextKey is a type for context keys
type contextKey string

const principalKey contextKey = "principal"

// Authenticator resolves a bearer token to the account behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

// Auth middleware for authenticating requests. The resolved principal is
// stored in the request context even when the account is inactive.
func Auth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				api.Error(w, err)
				return
			}

			principal, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				api.Error(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole middleware for checking user roles. The account must be active
// and hold at least one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				api.Error(w, apperr.Unauthorized("authentication required"))
				return
			}
			if !principal.IsActive {
				api.Error(w, apperr.Forbidden("your account is inactive, contact an administrator"))
				return
			}
			if !principal.Roles.HasAny(roles...) {
				api.Error(w, apperr.Forbidden("you do not have permission to access this resource"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", apperr.Unauthorized("authorization header required")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperr.Unauthorized("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

func WithPrincipal(ctx context.Context, principal models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFrom returns the principal stored by Auth.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(models.Principal)
	return principal, ok
}
