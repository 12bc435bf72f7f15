package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
)

// OTPCodeLength is the fixed width of every one-time code issued by the
// engine. Codes are drawn from [100000, 999999], so the string form never
// needs zero padding.
const OTPCodeLength = 6

var otpCodeSpan = big.NewInt(900000)

// NewOTPCode returns a 6-digit numeric one-time code from a
// cryptographically strong source. A general-purpose PRNG is not acceptable
// here: codes must stay unguessable for the whole validity window.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpan)
	if err != nil {
		return "", err
	}

	code := n.Int64() + 100000
	buf := [OTPCodeLength]byte{}
	for i := OTPCodeLength - 1; i >= 0; i-- {
		buf[i] = byte('0' + code%10)
		code /= 10
	}

	return string(buf[:]), nil
}

// HashCode returns the SHA-256 digest of a one-time code. Only digests are
// persisted; the plaintext code exists outside the mail message for as long
// as it takes to hash it.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// NormalizeEmail lowercases and trims an email address so that lookups,
// OTP keys, and audit references all agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail performs the minimal structural check applied before any
// store access. Full RFC validation is deliberately out of scope.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return errors.New("email is empty")
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return errors.New("email is malformed")
	}
	if strings.IndexByte(email[at+1:], '.') <= 0 {
		return errors.New("email domain is malformed")
	}
	return nil
}

// IsNumeric reports whether s consists solely of ASCII digits.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
