package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotstore/authcore/internal"
	"github.com/dotstore/authcore/internal/audit"
)

// SetAdmin grants or revokes the denormalized admin flag on a credential.
// The allow-list remains authoritative: revoking here does not demote an
// allow-listed email, since membership is re-derived on every sign-in and
// refresh. Intended for operator tooling.
func (e *Engine) SetAdmin(ctx context.Context, emailAddr string, admin bool) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := internal.ValidateEmail(emailAddr); err != nil {
		return validationErr("email", err.Error())
	}
	emailAddr = internal.NormalizeEmail(emailAddr)

	if err := e.creds.SetAdmin(ctx, emailAddr, admin); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	action := audit.ActionAdminRoleGranted
	if !admin {
		action = audit.ActionAdminRoleRevoked
	}
	e.emitAudit(ctx, action, true, "", emailAddr, "", nil, map[string]string{
		"source": "operator",
	})
	return nil
}
