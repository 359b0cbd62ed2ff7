package auth

import "context"

type identityContextKey struct{}
type forceContextKey struct{}

// ContextWithIdentity attaches the authorized identity id to the context.
func ContextWithIdentity(ctx context.Context, identityID int64) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identityID)
}

// IdentityFromContext extracts the authorized identity id from the context.
func IdentityFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(identityContextKey{}).(int64)
	return v, ok
}

// ContextWithForce stores the resolved force key in the context.
func ContextWithForce(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, forceContextKey{}, key)
}

// ForceFromContext returns the force key if previously attached.
func ForceFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(forceContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
