package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotstore/authcore/internal"
	"github.com/dotstore/authcore/internal/audit"
	"github.com/dotstore/authcore/internal/otp"
	"github.com/dotstore/authcore/password"
)

// RequestPasswordReset issues a reset code to a registered address. The
// result does not reveal whether the address is registered: unknown
// addresses and accounts without a local password both return nil with
// nothing sent.
func (e *Engine) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return validationErr("email", err.Error())
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if err := e.checkIPLimit(ctx, "password_reset_request"); err != nil {
		return err
	}

	cred, err := e.creds.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			e.emitAudit(ctx, audit.ActionPasswordResetRequest, false, "", emailAddr, "", nil, map[string]string{
				"reason": "unknown_account",
			})
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if cred.PasswordHash == "" {
		e.emitAudit(ctx, audit.ActionPasswordResetRequest, false, cred.ID, emailAddr, "", nil, map[string]string{
			"reason":   "no_local_password",
			"provider": string(cred.Provider),
		})
		return nil
	}

	if err := e.issueCode(ctx, emailAddr, otp.PurposePasswordReset); err != nil {
		if errors.Is(err, ErrEmailDelivery) {
			e.emitAudit(ctx, audit.ActionPasswordResetRequest, false, cred.ID, emailAddr, "", err, nil)
		}
		return err
	}

	e.emitAudit(ctx, audit.ActionPasswordResetRequest, true, cred.ID, emailAddr, "", nil, nil)
	return nil
}

// ConfirmPasswordReset redeems a reset code and installs a new password.
// The new password must differ from the current one and meet the minimum
// length. The code is spent on a successful match even if the password is
// rejected afterwards; the requester must start over with a fresh code.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, emailAddr, code, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return validationErr("email", err.Error())
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if len(newPassword) < password.MinPasswordBytes {
		return validationErr("password", "password too short")
	}

	if err := e.checkIPLimit(ctx, "password_reset_confirm"); err != nil {
		return err
	}

	cred, err := e.creds.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			// Burn a verification attempt anyway so the path stays uniform,
			// then report the collapsed error.
			_ = e.verifyCode(ctx, emailAddr, otp.PurposePasswordReset, code)
			e.emitAudit(ctx, audit.ActionPasswordResetFailure, false, "", emailAddr, "", ErrInvalidOrExpiredCode, map[string]string{
				"reason": "unknown_account",
			})
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.verifyCode(ctx, emailAddr, otp.PurposePasswordReset, code); err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			e.emitAudit(ctx, audit.ActionPasswordResetFailure, false, cred.ID, emailAddr, "", err, nil)
		}
		return err
	}

	if cred.PasswordHash != "" {
		same, err := e.hasher.Verify(newPassword, cred.PasswordHash)
		if err == nil && same {
			e.emitAudit(ctx, audit.ActionPasswordResetFailure, false, cred.ID, emailAddr, "", ErrPasswordReuse, nil)
			return ErrPasswordReuse
		}
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.creds.UpdatePasswordHash(ctx, emailAddr, hash); err != nil {
		e.emitAudit(ctx, audit.ActionPasswordResetFailure, false, cred.ID, emailAddr, "", err, map[string]string{
			"reason": "hash_update_failed",
		})
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.counterInc(CounterPasswordReset)
	e.emitAudit(ctx, audit.ActionPasswordResetSuccess, true, cred.ID, emailAddr, "", nil, nil)
	return nil
}
