package auth

import (
	"context"
	"strings"

	"github.com/apexflow/api/internal/domain"
)

// Identity captures the authenticated staff member extracted from a signed token.
type Identity struct {
	StaffID string
	Name    string
	Role    domain.Role
}

// HasRole reports whether the identity carries the requested role (case-insensitive).
func (i *Identity) HasRole(role domain.Role) bool {
	if i == nil {
		return false
	}
	return strings.EqualFold(string(i.Role), string(role))
}

// HasAnyRole reports whether the identity carries any of the provided roles.
func (i *Identity) HasAnyRole(roles ...domain.Role) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/apexflow/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
