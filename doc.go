// Package authcore is the authentication core of a storefront: one-time
// code issuance and verification, an append-only security audit log, and a
// signed-session authorization layer, glued to a caller-supplied credential
// store.
//
// The Engine is the single entry point. It is configured once through the
// Builder and is safe for concurrent use afterwards:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithCredentialStore(creds).
//		WithMailer(mailer).
//		Build()
//
// Redis backs every stateful piece (codes, audit entries, throttle
// windows) and its TTL mechanism is the only expiry authority; the engine
// runs no sweeper of its own besides the in-memory IP limiter's.
package authcore
