package middleware

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// principal is the authenticated caller as Auth found it in the token.
type principal struct {
	userID  string
	role    string
	storeID string
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, edit func(*principal)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	edit(&p)
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string  { return principalFrom(ctx).userID }
func RoleFromContext(ctx context.Context) string    { return principalFrom(ctx).role }
func StoreIDFromContext(ctx context.Context) string { return principalFrom(ctx).storeID }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.userID = userID })
}

func WithStoreID(ctx context.Context, storeID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.storeID = storeID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.role = role })
}

// ActorIDFromContext returns the authenticated user, or nil when the request
// carries no parseable user id.
func ActorIDFromContext(ctx context.Context) *uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return nil
	}
	return &id
}
