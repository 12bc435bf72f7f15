package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid is returned for malformed or mis-signed tokens.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("session expired")
)

// FlagSource exposes the live admin/verified flags for an email. The
// manager consults it on refresh; a failing source is tolerated.
type FlagSource interface {
	AccountFlags(ctx context.Context, email string) (admin, verified bool, err error)
}

// Config tunes token issuance and validation.
type Config struct {
	// Secret signs tokens with HS256. At least 32 bytes.
	Secret []byte
	// TTL is the session lifetime from issuance. Defaults to 30 days.
	TTL time.Duration
	// Issuer is stamped into and required from every token.
	Issuer string
	// Leeway tolerates small clock skew during validation.
	Leeway time.Duration
}

// Manager issues and validates session tokens.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue mints a signed token for the given identity. The admin and
// verified flags are embedded as they stand at issuance time.
func (m *Manager) Issue(id Identity) (string, error) {
	now := time.Now()

	claims := &Claims{
		Email:    id.Email,
		Name:     id.Name,
		Image:    id.Image,
		Provider: id.Provider,
		Admin:    id.Admin,
		Verified: id.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Parse validates a token and returns its claims. Expiry is reported
// distinctly so callers can audit it as a session_expired event.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.config.Leeway),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Refresh re-reads the admin and verified flags from src and returns
// updated claims. When src is nil or the lookup fails, the embedded copy
// is returned unchanged; a transient store error must not sign anyone
// out.
func (m *Manager) Refresh(ctx context.Context, claims *Claims, src FlagSource) *Claims {
	if claims == nil || src == nil {
		return claims
	}

	admin, verified, err := src.AccountFlags(ctx, claims.Email)
	if err != nil {
		return claims
	}

	refreshed := *claims
	refreshed.Admin = admin
	refreshed.Verified = verified
	return &refreshed
}
