package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is the generic, non-enumerating sign-in
	// failure: unknown email and wrong password are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnverified is surfaced distinctly from invalid
	// credentials so clients can offer a resend-verification action.
	ErrAccountUnverified = errors.New("account email not verified")
	// ErrInvalidOrExpiredCode collapses wrong, expired, and already-used
	// codes into one indistinguishable outcome.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrRateLimited short-circuits a request before any store mutation.
	ErrRateLimited = errors.New("too many requests")
	// ErrEmailDelivery reports a failed send. State already committed
	// (a stored code, a created account) is not rolled back.
	ErrEmailDelivery = errors.New("email delivery failed")
	// ErrEmailTaken is returned when a sign-up collides with an
	// existing credential.
	ErrEmailTaken = errors.New("email already registered")
	// ErrCredentialNotFound is returned by credential stores for
	// missing records.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrPasswordReuse rejects a new password equal to the current one.
	ErrPasswordReuse = errors.New("new password must differ from the current password")
	// ErrStoreUnavailable wraps infrastructure failures on the
	// credential and OTP paths; audit failures are never surfaced.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady guards calls on a partially constructed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError rejects malformed input before any store access. The
// message is safe to display to end users.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
