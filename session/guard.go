package session

import "errors"

var (
	// ErrNotAuthenticated is returned by guards when no session exists.
	ErrNotAuthenticated = errors.New("authentication required")
	// ErrNotVerified is returned when the session's email is unconfirmed.
	ErrNotVerified = errors.New("email verification required")
	// ErrNotAdmin is returned when the session lacks the admin flag.
	ErrNotAdmin = errors.New("administrator access required")
)

// RequireAuth denies requests without a session.
func RequireAuth(c *Claims) error {
	if StateOf(c) == StateAnonymous {
		return ErrNotAuthenticated
	}
	return nil
}

// RequireVerifiedUser denies requests whose email is unconfirmed. Admins
// pass: admin accounts are marked verified at creation.
func RequireVerifiedUser(c *Claims) error {
	if err := RequireAuth(c); err != nil {
		return err
	}
	if StateOf(c) < StateVerified {
		return ErrNotVerified
	}
	return nil
}

// RequireAdmin denies requests without the admin flag. It implies
// RequireAuth but deliberately not RequireVerifiedUser.
func RequireAdmin(c *Claims) error {
	if err := RequireAuth(c); err != nil {
		return err
	}
	if StateOf(c) != StateAdmin {
		return ErrNotAdmin
	}
	return nil
}
