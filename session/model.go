package session

import "github.com/golang-jwt/jwt/v5"

// Identity is the credential snapshot a token is minted from.
type Identity struct {
	ID       string
	Email    string
	Name     string
	Image    string
	Provider string
	Admin    bool
	Verified bool
}

// Claims is the payload embedded in every session token.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Image    string `json:"image,omitempty"`
	Provider string `json:"provider,omitempty"`
	Admin    bool   `json:"admin"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

// State is the authorization level derived from a request's claims.
type State uint8

const (
	// StateAnonymous means no valid session is present.
	StateAnonymous State = iota
	// StateAuthenticated means a valid session exists but the email is
	// unconfirmed.
	StateAuthenticated
	// StateVerified means the email is confirmed (admins are verified by
	// construction).
	StateVerified
	// StateAdmin means the session belongs to an allow-listed
	// administrator.
	StateAdmin
)

// StateOf maps claims to the authorization state machine. A nil claims
// value is Anonymous.
func StateOf(c *Claims) State {
	switch {
	case c == nil:
		return StateAnonymous
	case c.Admin:
		return StateAdmin
	case c.Verified:
		return StateVerified
	default:
		return StateAuthenticated
	}
}
