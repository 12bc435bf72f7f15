package authcore

import "sync/atomic"

// Counter identifies one of the engine's in-process outcome counters.
type Counter uint8

const (
	// CounterSignInSuccess counts successful credential sign-ins.
	CounterSignInSuccess Counter = iota
	// CounterSignInFailure counts rejected credential sign-ins.
	CounterSignInFailure
	// CounterSignUp counts created accounts.
	CounterSignUp
	// CounterOTPIssued counts stored one-time codes.
	CounterOTPIssued
	// CounterOTPVerified counts redeemed one-time codes.
	CounterOTPVerified
	// CounterOTPRejected counts failed verification attempts.
	CounterOTPRejected
	// CounterRateLimited counts requests short-circuited by a limiter.
	CounterRateLimited
	// CounterPasswordReset counts completed password resets.
	CounterPasswordReset

	counterCount
)

type counters struct {
	values [counterCount]atomic.Uint64
}

func (c *counters) inc(id Counter) {
	if c == nil || id >= counterCount {
		return
	}
	c.values[id].Add(1)
}

// CountersSnapshot returns a point-in-time copy of all outcome counters.
func (e *Engine) CountersSnapshot() map[Counter]uint64 {
	snapshot := make(map[Counter]uint64, int(counterCount))
	if e == nil || e.counters == nil {
		return snapshot
	}
	for id := Counter(0); id < counterCount; id++ {
		snapshot[id] = e.counters.values[id].Load()
	}
	return snapshot
}

func (e *Engine) counterInc(id Counter) {
	if e == nil {
		return
	}
	e.counters.inc(id)
}
