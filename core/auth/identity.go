package auth

import "context"

// Identity is who the current request acts as.
type Identity struct {
	UserID        int64  `json:"userId"`
	Token         string `json:"token"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous returns the identity of an unauthenticated request.
func Anonymous() Identity { return Identity{} }

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity carried by ctx, or the anonymous one.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
