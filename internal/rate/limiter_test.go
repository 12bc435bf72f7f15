package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryAllowsUpToMax(t *testing.T) {
	m := NewMemory(3, time.Minute, 0)
	t.Cleanup(m.Close)

	for i := 0; i < 3; i++ {
		require.True(t, m.Allow("1.2.3.4"), "request %d should pass", i+1)
	}
	require.False(t, m.Allow("1.2.3.4"))
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	m := NewMemory(1, time.Minute, 0)
	t.Cleanup(m.Close)

	require.True(t, m.Allow("1.2.3.4"))
	require.False(t, m.Allow("1.2.3.4"))
	require.True(t, m.Allow("5.6.7.8"))
}

func TestMemoryWindowResets(t *testing.T) {
	now := time.Now()
	m := NewMemory(1, time.Minute, 0, WithClock(func() time.Time { return now }))
	t.Cleanup(m.Close)

	require.True(t, m.Allow("1.2.3.4"))
	require.False(t, m.Allow("1.2.3.4"))

	now = now.Add(time.Minute)
	require.True(t, m.Allow("1.2.3.4"))
}

func TestMemoryZeroBudgetRejectsEverything(t *testing.T) {
	m := NewMemory(0, time.Minute, 0)
	t.Cleanup(m.Close)

	require.False(t, m.Allow("1.2.3.4"))
}

func TestMemorySweepEvictsExpiredBuckets(t *testing.T) {
	m := NewMemory(1, 20*time.Millisecond, 10*time.Millisecond)
	t.Cleanup(m.Close)

	m.Allow("1.2.3.4")
	m.Allow("5.6.7.8")

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.buckets) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestAllowAllNeverThrottles(t *testing.T) {
	var l Limiter = AllowAll{}
	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow("1.2.3.4"))
	}
}
