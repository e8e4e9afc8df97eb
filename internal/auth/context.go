package auth

import "context"

type contextKey string

const ctxIdentityKey contextKey = "identity"

// FromContext returns the authenticated identity or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxIdentityKey).(*Identity)
	return id
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}
