package internal

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOTPCodeShapeAndRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := NewOTPCode()
		require.NoError(t, err)
		require.Len(t, code, OTPCodeLength)
		require.True(t, IsNumeric(code))

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestHashCodeIsDeterministic(t *testing.T) {
	require.Equal(t, HashCode("123456"), HashCode("123456"))
	require.NotEqual(t, HashCode("123456"), HashCode("123457"))
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "a@example.com", NormalizeEmail("  A@Example.COM "))
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail("a@example.com"))
	require.NoError(t, ValidateEmail("  A@Example.COM "))

	for _, bad := range []string{"", "   ", "nodomain", "@example.com", "a@", "a@nodot", "a@.com"} {
		require.Error(t, ValidateEmail(bad), "expected %q to be rejected", bad)
	}
}

func TestIsNumeric(t *testing.T) {
	require.True(t, IsNumeric("000123"))
	require.False(t, IsNumeric(""))
	require.False(t, IsNumeric("12a456"))
	require.False(t, IsNumeric("12 456"))
}
