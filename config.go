package authcore

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dotstore/authcore/email"
	"github.com/dotstore/authcore/password"
)

// Config is the engine's full configuration, read once at construction.
type Config struct {
	// Production suppresses the per-event audit debug line.
	Production bool

	// AdminEmails is the administrator allow-list. Membership is
	// re-evaluated on every sign-in and session refresh, never cached
	// beyond one session lifetime.
	AdminEmails []string

	Session   SessionConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Password  password.Config
	SMTP      email.SMTPConfig
}

// SessionConfig tunes the signed-session layer.
type SessionConfig struct {
	// Secret signs session tokens (HS256). At least 32 bytes.
	Secret string
	// TTL is the session lifetime from issuance.
	TTL time.Duration
	// Issuer is stamped into every token.
	Issuer string
}

// OTPConfig tunes one-time code issuance and verification.
type OTPConfig struct {
	// TTL is the code validity window.
	TTL time.Duration
	// MaxAttempts is the per-code budget of wrong submissions before
	// the code self-destructs.
	MaxAttempts int
	// MaxRequestsPerEmail bounds issuance per email per TTL window.
	MaxRequestsPerEmail int
	// MaxConfirmsPerEmail bounds verification attempts per email per
	// TTL window, on top of the per-code budget.
	MaxConfirmsPerEmail int
}

// RateLimitConfig tunes the process-local per-IP limiter.
type RateLimitConfig struct {
	Enabled bool
	// MaxPerIP is the request budget per requester IP per Window.
	MaxPerIP int
	Window   time.Duration
	// SweepInterval is how often expired counters are evicted.
	SweepInterval time.Duration
}

// AuditConfig tunes the audit log.
type AuditConfig struct {
	// Retention is how long entries stay queryable.
	Retention time.Duration
	// SinkBuffer is the mirror dispatcher's channel capacity.
	SinkBuffer int
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:    30 * 24 * time.Hour,
			Issuer: "authcore",
		},
		OTP: OTPConfig{
			TTL:                 10 * time.Minute,
			MaxAttempts:         5,
			MaxRequestsPerEmail: 5,
			MaxConfirmsPerEmail: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			MaxPerIP:      30,
			Window:        15 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Retention:  90 * 24 * time.Hour,
			SinkBuffer: 1024,
		},
		Password: password.DefaultConfig(),
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Session.Secret) < 32 {
		return errors.New("session secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp TTL must be positive")
	}
	if c.OTP.MaxAttempts <= 0 {
		return errors.New("otp max attempts must be positive")
	}
	if c.Audit.Retention <= 0 {
		return errors.New("audit retention must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.MaxPerIP <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("rate limit requires a positive budget and window")
	}
	return nil
}

// IsAdmin reports whether email is on the allow-list. The comparison is
// case-insensitive; this is the one authority for admin promotion and it
// is consulted fresh on every sign-in and refresh.
func IsAdmin(email string, allowList []string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, a := range allowList {
		if strings.ToLower(strings.TrimSpace(a)) == email {
			return true
		}
	}
	return false
}

// ConfigFromEnv builds a Config from environment variables, applying
// defaults for anything unset. Recognized variables:
//
//	AUTHCORE_ENV              "production" enables production mode
//	AUTHCORE_SESSION_SECRET   token signing secret (required)
//	AUTHCORE_SESSION_TTL      Go duration, default 720h
//	AUTHCORE_ADMIN_EMAILS     comma-separated allow-list
//	AUTHCORE_OTP_TTL          Go duration, default 10m
//	SMTP_HOST, SMTP_PORT, SMTP_FROM, SMTP_USER, SMTP_PASS
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()

	cfg.Production = os.Getenv("AUTHCORE_ENV") == "production"
	cfg.Session.Secret = os.Getenv("AUTHCORE_SESSION_SECRET")

	if raw := os.Getenv("AUTHCORE_ADMIN_EMAILS"); raw != "" {
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, e)
			}
		}
	}

	if raw := os.Getenv("AUTHCORE_SESSION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, errors.New("AUTHCORE_SESSION_TTL is not a valid duration")
		}
		cfg.Session.TTL = d
	}

	if raw := os.Getenv("AUTHCORE_OTP_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, errors.New("AUTHCORE_OTP_TTL is not a valid duration")
		}
		cfg.OTP.TTL = d
	}

	cfg.SMTP.Host = os.Getenv("SMTP_HOST")
	cfg.SMTP.From = os.Getenv("SMTP_FROM")
	cfg.SMTP.Username = os.Getenv("SMTP_USER")
	cfg.SMTP.Password = os.Getenv("SMTP_PASS")
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, errors.New("SMTP_PORT is not a number")
		}
		cfg.SMTP.Port = port
	}

	return cfg, cfg.Validate()
}
