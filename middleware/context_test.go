package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIPHeaderPrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4444"

	require.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("Cf-Connecting-Ip", "3.3.3.3")
	require.Equal(t, "3.3.3.3", ClientIP(r))

	r.Header.Set("X-Real-Ip", "2.2.2.2")
	require.Equal(t, "2.2.2.2", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "1.1.1.1")
	require.Equal(t, "1.1.1.1", ClientIP(r))
}

func TestClientIPForwardedChainTakesFirstHop(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "5.5.5.5, 10.0.0.2, 10.0.0.3")

	require.Equal(t, "5.5.5.5", ClientIP(r))
}

func TestClientIPFallsBackToUnknown(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = ""

	require.Equal(t, "unknown", ClientIP(r))
}

func TestClientIPSkipsEmptyHeaderValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4444"
	r.Header.Set("X-Forwarded-For", "  ")

	require.Equal(t, "10.0.0.1", ClientIP(r))
}
