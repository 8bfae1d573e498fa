package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/platform/httpx"
)

// Verifier validates bearer tokens and returns the embedded identity.
type Verifier interface {
	Verify(tokenStr string) (*Identity, error)
}

// RequireAuth verifies the Authorization bearer token and, when roles are
// given, ensures the identity carries one of them.
func RequireAuth(verifier Verifier, allowedRoles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
				return
			}
			if verifier == nil {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization service unavailable", http.StatusUnauthorized))
				return
			}

			identity, err := verifier.Verify(tokenStr)
			if err != nil {
				code := "unauthenticated"
				message := "invalid token"
				if errors.Is(err, ErrTokenExpired) {
					message = "token expired"
				}
				httpx.WriteError(ctx, w, httpx.NewError(code, message, http.StatusUnauthorized))
				return
			}

			if len(allowedRoles) > 0 && !identity.HasAnyRole(allowedRoles...) {
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient role", http.StatusForbidden))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
