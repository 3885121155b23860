package middleware

import (
	"context"
	"net/http"
	"strings"

	"tunesmith/internal/domain"
)

type principalContextKey struct{}

var principalKey = principalContextKey{}

const maxDeviceTokenLen = 128

// PrincipalSource resolves request identity to a principal row.
type PrincipalSource interface {
	EnsureGuest(ctx context.Context, deviceToken string) (string, error)
	Get(ctx context.Context, id string) (*domain.Principal, error)
}

// Identity resolves the caller for every request. A valid bearer token wins;
// otherwise the X-Device-Token header identifies an anonymous guest, created
// on first contact. Requests with neither are rejected.
func Identity(secret string, principals PrincipalSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := resolvePrincipalID(r, secret, principals)
			if !ok {
				http.Error(w, "missing or invalid credentials", http.StatusUnauthorized)
				return
			}
			p, err := principals.Get(r.Context(), id)
			if err != nil {
				http.Error(w, "unknown principal", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func resolvePrincipalID(r *http.Request, secret string, principals PrincipalSource) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		claims, err := VerifyJWT(secret, parts[1])
		if err != nil || claims.Sub == "" {
			return "", false
		}
		return claims.Sub, true
	}

	token := strings.TrimSpace(r.Header.Get("X-Device-Token"))
	if token == "" || len(token) > maxDeviceTokenLen {
		return "", false
	}
	id, err := principals.EnsureGuest(r.Context(), token)
	if err != nil {
		return "", false
	}
	return id, true
}

// WithPrincipal stores the resolved principal on the context.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the resolved principal, or nil outside the
// Identity middleware.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	if v, ok := ctx.Value(principalKey).(*domain.Principal); ok {
		return v
	}
	return nil
}
