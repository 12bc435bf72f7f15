// Package internal holds helpers private to the authcore module: secure
// one-time code generation, code hashing, and email normalization.
//
// # Sub-packages
//
//   - audit — the append-only security event log (store, service, sinks)
//   - otp — the Redis one-time code store with atomic consume
//   - rate — throttling primitives (in-memory IP counter, Redis window)
package internal
