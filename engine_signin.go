package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotstore/authcore/internal"
	"github.com/dotstore/authcore/internal/audit"
	"github.com/dotstore/authcore/session"
	"go.uber.org/zap"
)

// dummyHash is verified against when the email is unknown so that the
// request costs the same argon2 work either way. The password behind it
// is random and discarded.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG"

// SignIn authenticates an email/password pair and issues a session token.
// Unknown emails and wrong passwords produce the same ErrInvalidCredentials.
// Unverified accounts are rejected with ErrAccountUnverified after the
// password check, so the distinct error never leaks whether a password was
// right for someone else's address. Allow-list membership is evaluated
// here, on every sign-in, and persisted onto the credential when newly
// acquired.
func (e *Engine) SignIn(ctx context.Context, emailAddr, pass string) (*SignInResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return nil, validationErr("email", err.Error())
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if err := e.checkIPLimit(ctx, "sign_in"); err != nil {
		return nil, err
	}

	cred, err := e.creds.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			_, _ = e.hasher.Verify(pass, dummyHash)
			return nil, e.failSignIn(ctx, "", emailAddr, "unknown_account")
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if cred.PasswordHash == "" {
		_, _ = e.hasher.Verify(pass, dummyHash)
		return nil, e.failSignIn(ctx, cred.ID, emailAddr, "no_local_password")
	}

	ok, err := e.hasher.Verify(pass, cred.PasswordHash)
	if err != nil || !ok {
		return nil, e.failSignIn(ctx, cred.ID, emailAddr, "password_mismatch")
	}

	admin := cred.Admin || IsAdmin(cred.Email, e.config.AdminEmails)

	if !cred.Verified && !admin {
		e.counterInc(CounterSignInFailure)
		e.emitAudit(ctx, audit.ActionSignInFailure, false, cred.ID, emailAddr, "", ErrAccountUnverified, map[string]string{
			"reason": "unverified",
		})
		return nil, ErrAccountUnverified
	}

	if admin && !cred.Admin {
		if err := e.creds.SetAdmin(ctx, emailAddr, true); err != nil {
			// The flag is derived from the allow-list on every sign-in, so
			// a failed persist only costs the denormalized copy.
			e.logger.Warn("admin flag persist failed", zap.Error(err))
		} else {
			e.emitAudit(ctx, audit.ActionAdminRoleGranted, true, cred.ID, emailAddr, "", nil, map[string]string{
				"source": "allow_list",
			})
		}
	}

	return e.openSession(ctx, cred, admin, audit.ActionSignInSuccess, nil)
}

// SignInExternal signs in an identity already authenticated elsewhere
// (OAuth callback, redeemed magic link). A credential is provisioned on
// first contact, pre-verified since the provider proved mailbox access.
func (e *Engine) SignInExternal(ctx context.Context, id ExternalIdentity) (*SignInResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := internal.ValidateEmail(id.Email); err != nil {
		return nil, validationErr("email", err.Error())
	}
	if id.Provider != ProviderOAuth && id.Provider != ProviderMagicLink {
		return nil, validationErr("provider", "unsupported external provider")
	}
	id.Email = internal.NormalizeEmail(id.Email)

	if err := e.checkIPLimit(ctx, "sign_in_external"); err != nil {
		return nil, err
	}

	action := audit.ActionOAuthSignIn
	if id.Provider == ProviderMagicLink {
		action = audit.ActionMagicLinkSignIn
	}

	cred, err := e.creds.FindByEmail(ctx, id.Email)
	switch {
	case errors.Is(err, ErrCredentialNotFound):
		cred = &Credential{
			Email:    id.Email,
			Name:     id.Name,
			Image:    id.Image,
			Provider: id.Provider,
			Verified: true,
		}
		if err := e.creds.Create(ctx, cred); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				// Lost a provisioning race; the other writer's record wins.
				if cred, err = e.creds.FindByEmail(ctx, id.Email); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
			} else {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
		} else {
			e.counterInc(CounterSignUp)
			e.emitAudit(ctx, audit.ActionSignUpSuccess, true, cred.ID, id.Email, "", nil, map[string]string{
				"provider": string(id.Provider),
			})
		}
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !cred.Verified {
		// An external provider vouched for the mailbox just now.
		if err := e.creds.SetVerified(ctx, id.Email, true); err != nil {
			e.logger.Warn("verified flag persist failed", zap.Error(err))
		} else {
			cred.Verified = true
		}
	}

	admin := cred.Admin || IsAdmin(cred.Email, e.config.AdminEmails)
	return e.openSession(ctx, cred, admin, action, map[string]string{
		"provider": string(id.Provider),
	})
}

// SignOut records the end of a session. Tokens are stateless, so there is
// nothing to revoke server-side; the event exists for the audit trail.
func (e *Engine) SignOut(ctx context.Context, token string) {
	if e == nil {
		return
	}

	var actorID, emailAddr, sessionID string
	if claims, err := e.sessions.Parse(token); err == nil {
		actorID = claims.Subject
		emailAddr = claims.Email
		sessionID = claims.ID
	}

	e.emitAudit(ctx, audit.ActionSignOut, true, actorID, emailAddr, sessionID, nil, nil)
}

// ChangePassword replaces the password of a signed-in account after
// re-proving the current one. The new password must differ.
func (e *Engine) ChangePassword(ctx context.Context, emailAddr, current, next string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return validationErr("email", err.Error())
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if err := e.checkIPLimit(ctx, "password_change"); err != nil {
		return err
	}

	cred, err := e.creds.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if cred.PasswordHash == "" {
		e.emitAudit(ctx, audit.ActionPasswordChangeFailure, false, cred.ID, emailAddr, "", ErrInvalidCredentials, map[string]string{
			"reason": "no_local_password",
		})
		return ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(current, cred.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, audit.ActionPasswordChangeFailure, false, cred.ID, emailAddr, "", ErrInvalidCredentials, map[string]string{
			"reason": "password_mismatch",
		})
		return ErrInvalidCredentials
	}

	if current == next {
		e.emitAudit(ctx, audit.ActionPasswordChangeFailure, false, cred.ID, emailAddr, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}

	if err := e.creds.UpdatePasswordHash(ctx, emailAddr, hash); err != nil {
		e.emitAudit(ctx, audit.ActionPasswordChangeFailure, false, cred.ID, emailAddr, "", err, map[string]string{
			"reason": "hash_update_failed",
		})
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, audit.ActionPasswordChangeSuccess, true, cred.ID, emailAddr, "", nil, nil)
	return nil
}

func (e *Engine) failSignIn(ctx context.Context, actorID, emailAddr, reason string) error {
	e.counterInc(CounterSignInFailure)
	e.emitAudit(ctx, audit.ActionSignInFailure, false, actorID, emailAddr, "", ErrInvalidCredentials, map[string]string{
		"reason": reason,
	})
	return ErrInvalidCredentials
}

func (e *Engine) openSession(ctx context.Context, cred *Credential, admin bool, action audit.Action, details map[string]string) (*SignInResult, error) {
	verified := cred.Verified || admin

	token, err := e.sessions.Issue(session.Identity{
		ID:       cred.ID,
		Email:    cred.Email,
		Name:     cred.Name,
		Image:    cred.Image,
		Provider: string(cred.Provider),
		Admin:    admin,
		Verified: verified,
	})
	if err != nil {
		return nil, err
	}

	e.counterInc(CounterSignInSuccess)
	e.emitAudit(ctx, action, true, cred.ID, cred.Email, "", nil, details)

	return &SignInResult{Token: token, Admin: admin, Verified: verified}, nil
}
