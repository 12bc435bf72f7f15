// Package session turns a verified credential into a signed, self-contained
// token and gates protected operations on the state it carries.
//
// A request moves through four states: Anonymous, Authenticated (valid
// token), Verified (email confirmed or allow-listed admin), and Admin.
// There is no server-side revocation list: expiry and explicit sign-out are
// the only ways back to Anonymous. The admin and verified flags are
// embedded at issuance and refreshed from the backing store on read where
// possible; when that read fails the embedded copy is used so sessions
// degrade gracefully instead of failing closed on a transient error.
package session
