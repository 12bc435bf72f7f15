package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/dotstore/authcore/email"
	"github.com/dotstore/authcore/internal/audit"
	"github.com/dotstore/authcore/internal/otp"
	"github.com/dotstore/authcore/internal/rate"
	"github.com/dotstore/authcore/password"
	"github.com/dotstore/authcore/session"
	"go.uber.org/zap"
)

// Engine orchestrates one-time codes, the audit log, and session issuance
// over a caller-supplied credential store. Configure it through the
// Builder and treat it as immutable afterwards; all methods are safe for
// concurrent use.
type Engine struct {
	config    Config
	logger    *zap.Logger
	creds     CredentialStore
	otpStore  *otp.Store
	mailer    email.Sender
	auditor   *audit.Service
	sessions  *session.Manager
	hasher    *password.Hasher
	ipLimiter rate.Limiter
	issueWin  *rate.Window
	verifyWin *rate.Window
	counters  *counters
}

// Close flushes the audit mirror dispatcher and stops the IP limiter's
// sweep. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.auditor != nil {
		e.auditor.Close()
	}
	if m, ok := e.ipLimiter.(*rate.Memory); ok {
		m.Close()
	}
}

// AuditDropped reports how many mirror-sink entries were discarded. The
// persisted log is unaffected by sink backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.auditor == nil {
		return 0
	}
	return e.auditor.Dropped()
}

// SessionTTL returns the configured session lifetime.
func (e *Engine) SessionTTL() time.Duration {
	return e.config.Session.TTL
}

// emitAudit records one security event. It never fails: the audit service
// swallows store errors by contract.
func (e *Engine) emitAudit(
	ctx context.Context,
	action audit.Action,
	success bool,
	actorID string,
	emailAddr string,
	sessionID string,
	err error,
	details map[string]string,
) {
	if e == nil || e.auditor == nil {
		return
	}

	entry := audit.Entry{
		Action:    action,
		ActorID:   actorID,
		Email:     emailAddr,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Details:   details,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	e.auditor.Record(ctx, entry)
}

// checkIPLimit spends one hit of the requester's budget and audits the
// rejection when the budget is gone. It must run before any store
// mutation.
func (e *Engine) checkIPLimit(ctx context.Context, scope string) error {
	if e.ipLimiter == nil {
		return nil
	}

	ip := clientIPFromContext(ctx)
	if ip == "" {
		return nil
	}

	if e.ipLimiter.Allow(ip) {
		return nil
	}

	e.counterInc(CounterRateLimited)
	e.emitAudit(ctx, audit.ActionRateLimitExceeded, false, "", "", "", ErrRateLimited, map[string]string{
		"scope": scope,
	})
	return ErrRateLimited
}

// flagSource adapts the credential store to session.FlagSource, applying
// the allow-list on every refresh so edits take effect without a
// migration step.
type flagSource struct {
	engine *Engine
}

// AccountFlags implements session.FlagSource.
func (f flagSource) AccountFlags(ctx context.Context, emailAddr string) (bool, bool, error) {
	cred, err := f.engine.creds.FindByEmail(ctx, emailAddr)
	if err != nil {
		return false, false, err
	}

	admin := cred.Admin || IsAdmin(cred.Email, f.engine.config.AdminEmails)
	return admin, cred.Verified || admin, nil
}

// Validate parses a session token and refreshes its admin/verified flags
// from the credential store, falling back to the embedded copy when the
// store read fails. Expired tokens are audited as session_expired.
func (e *Engine) Validate(ctx context.Context, token string) (*session.Claims, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.sessions.Parse(token)
	if err != nil {
		if errors.Is(err, session.ErrTokenExpired) {
			e.emitAudit(ctx, audit.ActionSessionExpired, false, "", "", "", err, nil)
		}
		return nil, err
	}

	return e.sessions.Refresh(ctx, claims, flagSource{engine: e}), nil
}
