// Package audit records security-relevant events for the storefront
// authentication core.
//
// Entries are append-only and first-class for failures: every attempt is
// written whether or not the triggering operation succeeded. The one rule
// that shapes the whole package is that recording must never become the
// reason an authentication flow fails: Service.Record returns nothing, and
// store errors are surfaced only on the local diagnostic logger.
//
// # Key layout
//
//	al:e:<id>     — JSON entry, TTL = retention window
//	al:t          — zset of all entry ids, scored by unix time
//	al:a:<email>  — zset of entry ids per actor
//	al:f:<email>  — zset of failed entry ids per actor
//	al:ip:<ip>    — zset of failed entry ids per requester IP
//	al:c:<action> — zset of entry ids per action, used for windowed counts
//
// Index zsets are trimmed to the retention window on every append, so the
// store self-purges without a background sweeper.
package audit
