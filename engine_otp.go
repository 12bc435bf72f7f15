package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dotstore/authcore/email"
	"github.com/dotstore/authcore/internal"
	"github.com/dotstore/authcore/internal/audit"
	"github.com/dotstore/authcore/internal/otp"
	"github.com/dotstore/authcore/internal/rate"
	"go.uber.org/zap"
)

// issueCode generates, stores, and mails a one-time code for the pair
// (email, purpose). Any outstanding code for the pair is replaced. The
// code is committed to the store before the mail leaves, so a delivery
// failure leaves a redeemable code behind; callers get ErrEmailDelivery
// and the recipient may still use a code from a slow earlier message.
func (e *Engine) issueCode(ctx context.Context, emailAddr string, purpose otp.Purpose) error {
	if err := e.issueWin.Check(ctx, string(purpose)+":"+emailAddr); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.counterInc(CounterRateLimited)
			e.emitAudit(ctx, audit.ActionRateLimitExceeded, false, "", emailAddr, "", ErrRateLimited, map[string]string{
				"scope": "otp_issue:" + string(purpose),
			})
			return ErrRateLimited
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	code, err := internal.NewOTPCode()
	if err != nil {
		return err
	}

	now := time.Now()
	hash := internal.HashCode(code)
	record := &otp.Record{
		CodeHash:  hash,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.OTP.TTL).Unix(),
	}

	if err := e.otpStore.Save(ctx, emailAddr, purpose, record, e.config.OTP.TTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.counterInc(CounterOTPIssued)
	e.emitAudit(ctx, audit.ActionOTPGenerated, true, "", emailAddr, "", nil, map[string]string{
		"purpose": string(purpose),
	})

	msg := email.RenderCode(emailAddr, purpose, code, e.config.OTP.TTL)
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.logger.Warn("one-time code delivery failed",
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	return nil
}

// verifyCode redeems a submitted code. Every distinguishable store
// outcome collapses to ErrInvalidOrExpiredCode on the wire; the precise
// reason goes into the audit log only, so a prober learns nothing about
// whether a code exists, expired, or was already spent.
func (e *Engine) verifyCode(ctx context.Context, emailAddr string, purpose otp.Purpose, code string) error {
	if len(code) != internal.OTPCodeLength || !internal.IsNumeric(code) {
		e.counterInc(CounterOTPRejected)
		e.emitAudit(ctx, audit.ActionOTPVerifyFailure, false, "", emailAddr, "", ErrInvalidOrExpiredCode, map[string]string{
			"purpose": string(purpose),
			"reason":  "malformed_code",
		})
		return ErrInvalidOrExpiredCode
	}

	if err := e.verifyWin.Check(ctx, string(purpose)+":"+emailAddr); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.counterInc(CounterRateLimited)
			e.emitAudit(ctx, audit.ActionRateLimitExceeded, false, "", emailAddr, "", ErrRateLimited, map[string]string{
				"scope": "otp_verify:" + string(purpose),
			})
			return ErrRateLimited
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	_, err := e.otpStore.Consume(ctx, emailAddr, purpose, internal.HashCode(code), e.config.OTP.MaxAttempts)
	if err != nil {
		if errors.Is(err, otp.ErrRedisUnavailable) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		e.counterInc(CounterOTPRejected)
		e.emitAudit(ctx, audit.ActionOTPVerifyFailure, false, "", emailAddr, "", ErrInvalidOrExpiredCode, map[string]string{
			"purpose": string(purpose),
			"reason":  err.Error(),
		})
		return ErrInvalidOrExpiredCode
	}

	e.counterInc(CounterOTPVerified)
	e.emitAudit(ctx, audit.ActionOTPVerifySuccess, true, "", emailAddr, "", nil, map[string]string{
		"purpose": string(purpose),
	})
	return nil
}

// RequestEmailVerification issues a fresh verification code for an
// unverified account. The result does not reveal whether the address is
// registered: unknown or already verified addresses return nil without a
// mail going out.
func (e *Engine) RequestEmailVerification(ctx context.Context, emailAddr string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return validationErr("email", err.Error())
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if err := e.checkIPLimit(ctx, "email_verification_request"); err != nil {
		return err
	}

	cred, err := e.creds.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			e.emitAudit(ctx, audit.ActionEmailVerificationSent, false, "", emailAddr, "", nil, map[string]string{
				"reason": "unknown_account",
			})
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if cred.Verified {
		e.emitAudit(ctx, audit.ActionEmailVerificationSent, false, cred.ID, emailAddr, "", nil, map[string]string{
			"reason": "already_verified",
		})
		return nil
	}

	if err := e.issueCode(ctx, emailAddr, otp.PurposeEmailVerification); err != nil {
		if errors.Is(err, ErrEmailDelivery) {
			e.emitAudit(ctx, audit.ActionEmailVerificationSent, false, cred.ID, emailAddr, "", err, nil)
		}
		return err
	}

	e.emitAudit(ctx, audit.ActionEmailVerificationSent, true, cred.ID, emailAddr, "", nil, nil)
	return nil
}

// ConfirmEmailVerification redeems a verification code and marks the
// account verified. Wrong, expired, and replayed codes are all reported
// as ErrInvalidOrExpiredCode.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, emailAddr, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return validationErr("email", err.Error())
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if err := e.checkIPLimit(ctx, "email_verification_confirm"); err != nil {
		return err
	}

	if err := e.verifyCode(ctx, emailAddr, otp.PurposeEmailVerification, code); err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			e.emitAudit(ctx, audit.ActionEmailVerificationFailure, false, "", emailAddr, "", err, nil)
		}
		return err
	}

	if err := e.creds.SetVerified(ctx, emailAddr, true); err != nil {
		// The code is spent either way. Surface the store problem so the
		// caller can retry through a fresh code.
		e.emitAudit(ctx, audit.ActionEmailVerificationFailure, false, "", emailAddr, "", err, map[string]string{
			"reason": "flag_update_failed",
		})
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, audit.ActionEmailVerificationSuccess, true, "", emailAddr, "", nil, nil)
	return nil
}
