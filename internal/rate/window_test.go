package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestWindowAllowsUpToMax(t *testing.T) {
	_, client := newTestRedis(t)
	w := NewWindow(client, "rl:test", 2, time.Minute)
	ctx := context.Background()

	require.NoError(t, w.Check(ctx, "a@example.com"))
	require.NoError(t, w.Check(ctx, "a@example.com"))
	require.ErrorIs(t, w.Check(ctx, "a@example.com"), ErrRateLimited)
}

func TestWindowKeysAreIndependent(t *testing.T) {
	_, client := newTestRedis(t)
	w := NewWindow(client, "rl:test", 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, w.Check(ctx, "a@example.com"))
	require.ErrorIs(t, w.Check(ctx, "a@example.com"), ErrRateLimited)
	require.NoError(t, w.Check(ctx, "b@example.com"))
}

func TestWindowExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	w := NewWindow(client, "rl:test", 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, w.Check(ctx, "a@example.com"))
	require.ErrorIs(t, w.Check(ctx, "a@example.com"), ErrRateLimited)

	mr.FastForward(2 * time.Minute)

	require.NoError(t, w.Check(ctx, "a@example.com"))
}

func TestWindowReportsStoreFailure(t *testing.T) {
	mr, client := newTestRedis(t)
	w := NewWindow(client, "rl:test", 1, time.Minute)

	mr.Close()

	err := w.Check(context.Background(), "a@example.com")
	require.ErrorIs(t, err, ErrRedisUnavailable)
}
