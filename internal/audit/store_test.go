package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
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

func testEntry(action Action, email, ip string, success bool) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Email:     email,
		IP:        ip,
		UserAgent: "test",
		Success:   success,
	}
}

func TestAppendAndListByActor(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := testEntry(ActionSignInSuccess, "a@example.com", "1.2.3.4", true)
		entry.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Append(ctx, entry))
	}
	require.NoError(t, store.Append(ctx, testEntry(ActionSignInSuccess, "b@example.com", "1.2.3.4", true)))

	entries, err := store.ListByActor(ctx, "a@example.com", 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for _, entry := range entries {
		require.Equal(t, "a@example.com", entry.Email)
	}

	// Newest first.
	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp))
	}
}

func TestListByActorPagination(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		entry := testEntry(ActionSignInSuccess, "a@example.com", "1.2.3.4", true)
		entry.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Append(ctx, entry))
	}

	page1, err := store.ListByActor(ctx, "a@example.com", 0, 3)
	require.NoError(t, err)
	require.Len(t, page1, 3)

	page2, err := store.ListByActor(ctx, "a@example.com", 3, 3)
	require.NoError(t, err)
	require.Len(t, page2, 3)

	page3, err := store.ListByActor(ctx, "a@example.com", 6, 3)
	require.NoError(t, err)
	require.Len(t, page3, 1)

	seen := map[string]bool{}
	for _, entry := range append(append(page1, page2...), page3...) {
		require.False(t, seen[entry.ID])
		seen[entry.ID] = true
	}
}

func TestFailuresByActorWindow(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	old := testEntry(ActionSignInFailure, "a@example.com", "1.2.3.4", false)
	old.Timestamp = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Append(ctx, old))

	recent := testEntry(ActionSignInFailure, "a@example.com", "1.2.3.4", false)
	require.NoError(t, store.Append(ctx, recent))

	success := testEntry(ActionSignInSuccess, "a@example.com", "1.2.3.4", true)
	require.NoError(t, store.Append(ctx, success))

	entries, err := store.FailuresByActor(ctx, "a@example.com", time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, recent.ID, entries[0].ID)
}

func TestFailuresByIPSpanAccounts(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := testEntry(ActionSignInFailure, fmt.Sprintf("victim-%d@example.com", i), "9.9.9.9", false)
		require.NoError(t, store.Append(ctx, entry))
	}
	require.NoError(t, store.Append(ctx, testEntry(ActionSignInFailure, "other@example.com", "1.1.1.1", false)))

	entries, err := store.FailuresByIP(ctx, "9.9.9.9", time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestCountActionWindow(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, testEntry(ActionSignUpSuccess, "a@example.com", "1.2.3.4", true)))
	}
	old := testEntry(ActionSignUpSuccess, "a@example.com", "1.2.3.4", true)
	old.Timestamp = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Append(ctx, old))

	count, err := store.CountAction(ctx, ActionSignUpSuccess, time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)
}

func TestRetentionEvictsEntries(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testEntry(ActionSignInSuccess, "a@example.com", "1.2.3.4", true)))

	mr.FastForward(2 * time.Minute)

	entries, err := store.ListByActor(ctx, "a@example.com", 0, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}
