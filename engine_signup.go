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

// SignUp registers a local credential and sends its verification code.
// The account is committed before the mail leaves: a delivery failure
// returns the created credential together with ErrEmailDelivery, and the
// stored code stays redeemable for a later resend-free confirmation.
func (e *Engine) SignUp(ctx context.Context, emailAddr, pass, name string) (*Credential, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return nil, validationErr("email", err.Error())
	}
	if len(pass) < password.MinPasswordBytes {
		return nil, validationErr("password", "password too short")
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if err := e.checkIPLimit(ctx, "sign_up"); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	cred := &Credential{
		Email:        emailAddr,
		Name:         name,
		PasswordHash: hash,
		Provider:     ProviderLocal,
		Admin:        IsAdmin(emailAddr, e.config.AdminEmails),
	}

	if err := e.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.emitAudit(ctx, audit.ActionSignUpFailure, false, "", emailAddr, "", ErrEmailTaken, nil)
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.counterInc(CounterSignUp)
	e.emitAudit(ctx, audit.ActionSignUpSuccess, true, cred.ID, emailAddr, "", nil, map[string]string{
		"provider": string(ProviderLocal),
	})

	if err := e.issueCode(ctx, emailAddr, otp.PurposeEmailVerification); err != nil {
		if errors.Is(err, ErrEmailDelivery) {
			e.emitAudit(ctx, audit.ActionEmailVerificationSent, false, cred.ID, emailAddr, "", err, nil)
			return cred, err
		}
		return cred, err
	}

	e.emitAudit(ctx, audit.ActionEmailVerificationSent, true, cred.ID, emailAddr, "", nil, nil)
	return cred, nil
}
