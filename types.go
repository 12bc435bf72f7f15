package authcore

import (
	"context"
	"io"
	"time"

	"github.com/dotstore/authcore/internal/audit"
	"github.com/dotstore/authcore/internal/otp"
)

// Provider tags how a credential authenticates.
type Provider string

const (
	// ProviderLocal marks password-based credentials.
	ProviderLocal Provider = "credentials"
	// ProviderOAuth marks credentials provisioned by an OAuth callback.
	ProviderOAuth Provider = "oauth"
	// ProviderMagicLink marks credentials provisioned by a one-use
	// emailed sign-in link.
	ProviderMagicLink Provider = "magic_link"
)

// Credential is one registered identity. Email is globally unique in its
// lowercased form. PasswordHash is empty for externally provisioned
// accounts.
type Credential struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Image        string    `json:"image,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Provider     Provider  `json:"provider"`
	Admin        bool      `json:"admin"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CredentialStore is the interface callers implement to integrate the
// engine with their user database. Emails passed in are already
// normalized (lowercased, trimmed). Lookups for missing records return
// ErrCredentialNotFound; Create returns ErrEmailTaken on collision.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	Create(ctx context.Context, cred *Credential) error
	SetVerified(ctx context.Context, email string, verified bool) error
	SetAdmin(ctx context.Context, email string, admin bool) error
	UpdatePasswordHash(ctx context.Context, email, hash string) error
}

// ExternalIdentity is an already-validated OAuth or magic-link callback.
type ExternalIdentity struct {
	Email    string
	Name     string
	Image    string
	Provider Provider
}

// SignInResult carries the issued session token and the flags embedded in
// it.
type SignInResult struct {
	Token    string
	Admin    bool
	Verified bool
}

// Purpose distinguishes the two one-time code flows.
type Purpose = otp.Purpose

const (
	// PurposeEmailVerification proves ownership of a new address.
	PurposeEmailVerification = otp.PurposeEmailVerification
	// PurposePasswordReset authorizes a password reset.
	PurposePasswordReset = otp.PurposePasswordReset
)

// AuditEntry is one immutable security event.
type AuditEntry = audit.Entry

// AuditAction tags an audit entry; the set is closed.
type AuditAction = audit.Action

// AuthStats aggregates authentication outcomes over a trailing window.
type AuthStats = audit.Stats

// AuditSink receives a copy of every recorded audit entry.
type AuditSink = audit.Sink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = audit.ChannelSink

// WriterSink is an AuditSink writing one JSON line per entry.
type WriterSink = audit.WriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewWriterSink creates a WriterSink that writes to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return audit.NewWriterSink(w)
}
