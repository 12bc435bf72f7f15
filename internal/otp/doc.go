// Package otp persists one-time codes in Redis, one record per
// (email, purpose) pair.
//
// # Key layout
//
//	oc:<purpose>:<email> — binary-encoded record, TTL = code validity
//
// Writing a new record overwrites the previous one for the same pair, which
// is how the single-outstanding-code invariant is enforced. Expired records
// are evicted by Redis TTL; the store never runs its own sweeper.
//
// Consume is the only mutating read. It runs under WATCH so that exactly one
// caller can redeem a code, no matter how many submit it concurrently.
package otp
