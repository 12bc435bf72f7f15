package email

import (
	"strings"
	"testing"
	"time"

	"github.com/dotstore/authcore/internal/otp"
	"github.com/stretchr/testify/require"
)

func TestRenderCodePerPurpose(t *testing.T) {
	verify := RenderCode("a@example.com", otp.PurposeEmailVerification, "123456", 10*time.Minute)
	require.Equal(t, "a@example.com", verify.To)
	require.Contains(t, verify.Subject, "Verify")
	require.Contains(t, verify.HTML, "123456")
	require.Contains(t, verify.Text, "123456")
	require.Contains(t, verify.Text, "10 minutes")

	reset := RenderCode("a@example.com", otp.PurposePasswordReset, "654321", 10*time.Minute)
	require.Contains(t, reset.Subject, "Reset")
	require.Contains(t, reset.Text, "654321")
	require.NotEqual(t, verify.Subject, reset.Subject)
}

func TestRenderCodeMinutesFloor(t *testing.T) {
	msg := RenderCode("a@example.com", otp.PurposeEmailVerification, "123456", 20*time.Second)
	require.True(t, strings.Contains(msg.Text, "1 minute"))
}
