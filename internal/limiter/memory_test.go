package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_BlocksAfterMaxFailsAndRecovers(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		blocked, _, err := m.Failure(ctx, "a@b.c", ip)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := m.Failure(ctx, "a@b.c", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, dur)

	ok, retry, err := m.Allow(ctx, "a@b.c", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, retry)

	// other ip is unaffected
	ok, _, _ = m.Allow(ctx, "a@b.c", HashIP("10.0.0.2"))
	require.True(t, ok)

	now = now.Add(6 * time.Minute)
	ok, _, _ = m.Allow(ctx, "a@b.c", ip)
	require.True(t, ok)
}

func TestMemory_WindowResetsAndSuccessClears(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	blocked, _, _ := m.Failure(ctx, "a@b.c", ip)
	require.False(t, blocked)
	now = now.Add(2 * time.Minute)
	blocked, _, _ = m.Failure(ctx, "a@b.c", ip)
	require.False(t, blocked, "first failure fell out of the window")

	require.NoError(t, m.Success(ctx, "a@b.c", ip))
	blocked, _, _ = m.Failure(ctx, "a@b.c", ip)
	require.False(t, blocked)
}

var (
	_ Limiter = (*Memory)(nil)
	_ Limiter = (*PG)(nil)
)
