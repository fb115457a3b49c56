package shared

import (
	"context"

	"github.com/harborline/harborline/internal/identity"
)

type sessionContextKey struct{}

type principalContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithPrincipal stores the rehydrated principal in context.
func ContextWithPrincipal(ctx context.Context, principal *identity.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the principal from context; nil means
// anonymous.
func PrincipalFromContext(ctx context.Context) *identity.Principal {
	principal, _ := ctx.Value(principalContextKey{}).(*identity.Principal)
	return principal
}
