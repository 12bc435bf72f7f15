// Package rate provides the throttling primitives used by the
// authentication engine.
//
// Two implementations exist for two deployment shapes:
//
//   - Memory: a process-local expiring counter keyed by requester IP. Each
//     instance owns its own map; cross-instance suspicious-activity
//     detection relies on the audit log, not on this counter.
//   - Window: a Redis fixed-window counter (INCR + conditional EXPIRE) for
//     per-email OTP request/confirm budgets, shared across instances.
//
// The engine depends only on the Limiter interface so tests can substitute
// a deterministic clock or a canned answer.
package rate
