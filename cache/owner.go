package cache

import "context"

type ownerContextKey struct{}

// WithOwner tags ctx with the identity of the unit of work issuing cache calls. Decorators that
// hold per-key locks across calls (Blocking) use it to tell lock holders apart; calls made with
// the same owner never block on a lock that owner already holds.
func WithOwner(ctx context.Context, owner string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if owner == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFromContext returns the owner set by WithOwner, or "" for anonymous callers.
func OwnerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	owner, _ := ctx.Value(ownerContextKey{}).(string)
	return owner
}
