package email

import (
	"fmt"
	"time"

	"github.com/dotstore/authcore/internal/otp"
)

// Verification and reset messages differ only in subject and copy; the
// mechanics are identical.
const (
	verificationSubject = "Verify your email address"
	resetSubject        = "Reset your password"

	otpHTML = `<div style="font-family:sans-serif;max-width:480px;margin:0 auto">
  <h2>%s</h2>
  <p>%s</p>
  <p style="font-size:32px;letter-spacing:8px;font-weight:bold">%s</p>
  <p>The code expires in %d minutes. If you did not request it, you can
  ignore this message.</p>
</div>`

	otpText = "%s\n\nYour code: %s\n\nThe code expires in %d minutes. If you did not request it, you can ignore this message.\n"
)

// RenderCode builds the purpose-specific message carrying a one-time code.
func RenderCode(to string, purpose otp.Purpose, code string, ttl time.Duration) Message {
	subject := verificationSubject
	lead := "Use this code to verify your email address:"
	if purpose == otp.PurposePasswordReset {
		subject = resetSubject
		lead = "Use this code to reset your password:"
	}

	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	return Message{
		To:      to,
		Subject: subject,
		HTML:    fmt.Sprintf(otpHTML, subject, lead, code, minutes),
		Text:    fmt.Sprintf(otpText, lead, code, minutes),
	}
}
