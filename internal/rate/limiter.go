package rate

import (
	"sync"
	"time"
)

// Limiter answers whether one more request under the given key is allowed.
// Implementations count the call: asking is spending.
type Limiter interface {
	Allow(key string) bool
}

// AllowAll is a Limiter that never throttles. Used when IP throttling is
// disabled in configuration.
type AllowAll struct{}

// Allow implements Limiter.
func (AllowAll) Allow(string) bool { return true }

type bucket struct {
	count       int
	windowStart time.Time
}

// Memory is a process-local fixed-window counter. A background sweep evicts
// buckets whose window has elapsed so an abusive scan cannot grow the map
// without bound.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	max    int
	window time.Duration

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// MemoryOption customizes a Memory limiter.
type MemoryOption func(*Memory)

// WithClock substitutes the time source. Tests use this to advance the
// window deterministically.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates a Memory limiter allowing max requests per key per
// window, sweeping expired buckets every sweepInterval. A sweepInterval of
// zero disables the background sweep (buckets still reset lazily on
// access).
func NewMemory(max int, window, sweepInterval time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if sweepInterval > 0 {
		go m.sweep(sweepInterval)
	}

	return m
}

// Allow implements Limiter. The first max calls inside a window pass; the
// next one is rejected until the window elapses and the counter resets.
func (m *Memory) Allow(key string) bool {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || now.Sub(b.windowStart) >= m.window {
		m.buckets[key] = &bucket{count: 1, windowStart: now}
		return m.max >= 1
	}

	b.count++
	return b.count <= m.max
}

// Close stops the background sweep.
func (m *Memory) Close() {
	m.once.Do(func() {
		close(m.done)
	})
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for key, b := range m.buckets {
				if now.Sub(b.windowStart) >= m.window {
					delete(m.buckets, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}
