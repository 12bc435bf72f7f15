package authcore

import (
	"errors"

	"github.com/dotstore/authcore/email"
	"github.com/dotstore/authcore/internal/audit"
	"github.com/dotstore/authcore/internal/otp"
	"github.com/dotstore/authcore/internal/rate"
	"github.com/dotstore/authcore/password"
	"github.com/dotstore/authcore/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. Redis and a credential store are required;
// everything else has a working default.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	creds  CredentialStore
	mailer email.Sender
	logger *zap.Logger
	sink   audit.Sink
}

// New starts a builder with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the entire configuration. Call it before the other
// With methods if both are used.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing codes, audit entries, and
// per-email budgets.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the caller's user database adapter.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.creds = store
	return b
}

// WithMailer overrides the outbound email sender. Without it the builder
// constructs an SMTP sender from Config.SMTP.
func (b *Builder) WithMailer(sender email.Sender) *Builder {
	b.mailer = sender
	return b
}

// WithLogger sets the diagnostic logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink mirrors every audit entry to sink, asynchronously and
// best-effort. The persisted log does not depend on the sink keeping up.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.redis == nil {
		return nil, errors.New("authcore: a redis client is required")
	}
	if b.creds == nil {
		return nil, errors.New("authcore: a credential store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions, err := session.NewManager(session.Config{
		Secret: []byte(b.config.Session.Secret),
		TTL:    b.config.Session.TTL,
		Issuer: b.config.Session.Issuer,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = email.NewSMTPSender(b.config.SMTP, logger)
	}

	auditor := audit.NewService(
		audit.NewStore(b.redis, b.config.Audit.Retention),
		logger,
		b.sink,
		audit.Config{
			Retention:   b.config.Audit.Retention,
			SinkBuffer:  b.config.Audit.SinkBuffer,
			Development: !b.config.Production,
		},
	)

	var ipLimiter rate.Limiter = rate.AllowAll{}
	if b.config.RateLimit.Enabled {
		ipLimiter = rate.NewMemory(
			b.config.RateLimit.MaxPerIP,
			b.config.RateLimit.Window,
			b.config.RateLimit.SweepInterval,
		)
	}

	eng := &Engine{
		config:    b.config,
		logger:    logger.Named("authcore"),
		creds:     b.creds,
		otpStore:  otp.NewStore(b.redis),
		mailer:    mailer,
		auditor:   auditor,
		sessions:  sessions,
		hasher:    hasher,
		ipLimiter: ipLimiter,
		issueWin:  rate.NewWindow(b.redis, "rl:issue", b.config.OTP.MaxRequestsPerEmail, b.config.OTP.TTL),
		verifyWin: rate.NewWindow(b.redis, "rl:verify", b.config.OTP.MaxConfirmsPerEmail, b.config.OTP.TTL),
		counters:  &counters{},
	}
	return eng, nil
}
