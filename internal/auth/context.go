package auth

import (
	"context"
)

type identityContextKey struct{}

// WithIdentity attaches the resolved identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by the middleware,
// or nil when the request was admitted unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
