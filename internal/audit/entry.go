package audit

import "time"

// Action tags an audit entry with the event that produced it. The set is
// closed: operator dashboards group and filter on these exact strings.
type Action string

const (
	ActionSignInSuccess            Action = "sign_in_success"
	ActionSignInFailure            Action = "sign_in_failure"
	ActionSignUpSuccess            Action = "sign_up_success"
	ActionSignUpFailure            Action = "sign_up_failure"
	ActionSignOut                  Action = "sign_out"
	ActionPasswordResetRequest     Action = "password_reset_request"
	ActionPasswordResetSuccess     Action = "password_reset_success"
	ActionPasswordResetFailure     Action = "password_reset_failure"
	ActionPasswordChangeSuccess    Action = "password_change_success"
	ActionPasswordChangeFailure    Action = "password_change_failure"
	ActionEmailVerificationSent    Action = "email_verification_sent"
	ActionEmailVerificationSuccess Action = "email_verification_success"
	ActionEmailVerificationFailure Action = "email_verification_failure"
	ActionOTPGenerated             Action = "otp_generated"
	ActionOTPVerifySuccess         Action = "otp_verification_success"
	ActionOTPVerifyFailure         Action = "otp_verification_failure"
	ActionProfileUpdate            Action = "profile_update"
	ActionEmailChange              Action = "email_change"
	ActionAccountDeletion          Action = "account_deletion"
	ActionAdminRoleGranted         Action = "admin_role_granted"
	ActionAdminRoleRevoked         Action = "admin_role_revoked"
	ActionOAuthSignIn              Action = "oauth_sign_in"
	ActionMagicLinkSignIn          Action = "magic_link_sign_in"
	ActionSessionExpired           Action = "session_expired"
	ActionRateLimitExceeded        Action = "rate_limit_exceeded"
)

// Entry is one immutable security event. ActorID, Email and SessionID are
// soft references; deleting the credential they point at does not touch the
// log.
type Entry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    Action            `json:"action"`
	ActorID   string            `json:"actor_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"user_agent"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Stats aggregates authentication outcomes over a trailing window.
type Stats struct {
	SignInSuccesses int64
	SignInFailures  int64
	SignUps         int64
	PasswordResets  int64
	// SuccessRate is successes / (successes+failures) × 100, and 0 when
	// the window saw no sign-in attempts at all.
	SuccessRate float64
}
