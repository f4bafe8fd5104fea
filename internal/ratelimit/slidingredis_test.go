package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, clock *time.Time) Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "test:", now: func() time.Time { return *clock }}
}

func TestLimiterAllowSlidingWindow(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	limiter := newTestLimiter(t, &clock)
	ctx := context.Background()
	window := 2 * time.Second

	allowed, remaining, reset, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)
	require.WithinDuration(t, clock.Add(window), reset, time.Millisecond)

	first := clock
	clock = clock.Add(500 * time.Millisecond)
	allowed, remaining, _, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 0, remaining)

	allowed, remaining, reset, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)
	require.WithinDuration(t, first.Add(window), reset, time.Millisecond)

	// the first attempt has aged out, the second is still in the window
	clock = first.Add(window + time.Millisecond)
	allowed, remaining, _, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 0, remaining)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	limiter := newTestLimiter(t, &clock)
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "a", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "a", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}
