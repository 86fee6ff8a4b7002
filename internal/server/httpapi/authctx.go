package httpapi

import (
	"context"

	"github.com/and161185/calsync/internal/backend"
)

type ctxKey string

const identityKey ctxKey = "calsync.identity"

// WithIdentity stores the authenticated caller in context.
func WithIdentity(ctx context.Context, id backend.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx fetches the authenticated caller from context.
func IdentityFromCtx(ctx context.Context) (backend.Identity, bool) {
	id, ok := ctx.Value(identityKey).(backend.Identity)
	return id, ok
}
