// Package auth verifies bearer identity tokens issued by the identity service
// and carries the resulting identity through request contexts.
package auth

import "context"

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	// Token is the raw bearer token, forwarded to the enrichment endpoint.
	Token string
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// ContextSource resolves the identity from the request context.
type ContextSource struct{}

// Identity implements journal.IdentitySource.
func (ContextSource) Identity(ctx context.Context) (Identity, bool) {
	return FromContext(ctx)
}
