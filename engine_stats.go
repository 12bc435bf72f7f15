package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/dotstore/authcore/internal"
)

// AuthStats aggregates sign-in, sign-up, and reset outcomes over the
// trailing window. SuccessRate is 0 when no sign-ins happened.
func (e *Engine) AuthStats(ctx context.Context, window time.Duration) (*AuthStats, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	stats, err := e.auditor.AuthStats(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return stats, nil
}

// ActorHistory returns the audit trail of one email, newest first.
func (e *Engine) ActorHistory(ctx context.Context, emailAddr string, offset, limit int64) ([]*AuditEntry, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	entries, err := e.auditor.ActorHistory(ctx, internal.NormalizeEmail(emailAddr), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}

// FailedSignIns returns one email's failed attempts within the window.
func (e *Engine) FailedSignIns(ctx context.Context, emailAddr string, window time.Duration) ([]*AuditEntry, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	entries, err := e.auditor.FailedAttempts(ctx, internal.NormalizeEmail(emailAddr), window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}

// SuspiciousActivity returns all failures recorded from one IP within the
// window, across every account it touched.
func (e *Engine) SuspiciousActivity(ctx context.Context, ip string, window time.Duration) ([]*AuditEntry, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	entries, err := e.auditor.SuspiciousActivity(ctx, ip, window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}
