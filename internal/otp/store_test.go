package otp

import (
	"context"
	"crypto/sha256"
	"sync"
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

func hashOf(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

func freshRecord(code string, ttl time.Duration) *Record {
	now := time.Now()
	return &Record{
		CodeHash:  hashOf(code),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	record := freshRecord("123456", 10*time.Minute)
	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, record, 10*time.Minute))

	got, err := store.Get(ctx, "a@example.com", PurposeEmailVerification)
	require.NoError(t, err)
	require.Equal(t, record.CodeHash, got.CodeHash)
	require.Equal(t, record.ExpiresAt, got.ExpiresAt)
	require.False(t, got.Used)
	require.Zero(t, got.Attempts)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)

	_, err := store.Get(context.Background(), "nobody@example.com", PurposeEmailVerification)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPurposesAreIsolated(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, freshRecord("111111", time.Minute), time.Minute))

	_, err := store.Consume(ctx, "a@example.com", PurposePasswordReset, hashOf("111111"), 5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveReplacesOutstandingCode(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, freshRecord("111111", time.Minute), time.Minute))
	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, freshRecord("222222", time.Minute), time.Minute))

	// The first code is gone; only the replacement redeems.
	_, err := store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("111111"), 5)
	require.ErrorIs(t, err, ErrCodeMismatch)

	_, err = store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("222222"), 5)
	require.NoError(t, err)
}

func TestConsumeMarksUsedExactlyOnce(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, freshRecord("654321", time.Minute), time.Minute))

	record, err := store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("654321"), 5)
	require.NoError(t, err)
	require.True(t, record.Used)

	_, err = store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("654321"), 5)
	require.ErrorIs(t, err, ErrConsumed)
}

func TestConsumeSingleWinnerUnderConcurrency(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, freshRecord("654321", time.Minute), time.Minute))

	const racers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("654321"), 0); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestConsumeAttemptBudget(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, freshRecord("654321", time.Minute), time.Minute))

	_, err := store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("000000"), 3)
	require.ErrorIs(t, err, ErrCodeMismatch)
	_, err = store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("000001"), 3)
	require.ErrorIs(t, err, ErrCodeMismatch)
	_, err = store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("000002"), 3)
	require.ErrorIs(t, err, ErrAttemptsExceeded)

	// The budget destroyed the record; even the right code is too late.
	_, err = store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("654321"), 3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeRejectsRecordPastItsTimestamp(t *testing.T) {
	// TTL eviction has not fired yet, but the embedded expiry already
	// passed. The record must be treated as gone, not redeemable.
	_, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	record := freshRecord("654321", time.Minute)
	record.ExpiresAt = time.Now().Add(-time.Second).Unix()
	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, record, time.Minute))

	_, err := store.Consume(ctx, "a@example.com", PurposeEmailVerification, hashOf("654321"), 5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTTLEvictsRecord(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", PurposeEmailVerification, freshRecord("654321", time.Minute), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "a@example.com", PurposeEmailVerification)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordCodecRoundTrip(t *testing.T) {
	record := &Record{
		CodeHash:  hashOf("314159"),
		ExpiresAt: 1700000600,
		CreatedAt: 1700000000,
		Attempts:  3,
		Used:      true,
	}

	encoded, err := encodeRecord(record)
	require.NoError(t, err)

	decoded, err := decodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, record, decoded)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	encoded, err := encodeRecord(freshRecord("1", time.Minute))
	require.NoError(t, err)

	encoded[0] = 99
	_, err = decodeRecord(encoded)
	require.Error(t, err)
}
