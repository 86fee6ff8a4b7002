package httpapi

import (
	"context"
	"testing"

	"github.com/and161185/calsync/internal/backend"
)

func TestIdentityCtxRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := IdentityFromCtx(ctx); ok {
		t.Fatalf("expected no identity in empty ctx")
	}
	want := backend.Identity{UID: "u1", Name: "Pepe"}
	got, ok := IdentityFromCtx(WithIdentity(ctx, want))
	if !ok || got != want {
		t.Fatalf("roundtrip mismatch: ok=%v got=%+v", ok, got)
	}
}
