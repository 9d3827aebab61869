package auth

import "context"

type identityKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
// The middleware calls this once per request after a Yes decision.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the request's identity, or nil when the request
// was not authenticated (bypass endpoints, open gateways before the
// chain ran).
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
