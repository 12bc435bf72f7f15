package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dotstore/authcore"
	"github.com/dotstore/authcore/credstore"
	"github.com/dotstore/authcore/password"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newGuardedEngine(t *testing.T) *authcore.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authcore.Config{
		Session: authcore.SessionConfig{
			Secret: "0123456789abcdef0123456789abcdef",
			TTL:    time.Hour,
			Issuer: "authcore-test",
		},
		OTP: authcore.OTPConfig{
			TTL:                 10 * time.Minute,
			MaxAttempts:         5,
			MaxRequestsPerEmail: 5,
			MaxConfirmsPerEmail: 10,
		},
		Audit:    authcore.AuditConfig{Retention: time.Hour, SinkBuffer: 16},
		Password: password.DefaultConfig(),
	}

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(credstore.New(client)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return engine
}

func externalSession(t *testing.T, engine *authcore.Engine, email string) string {
	t.Helper()

	res, err := engine.SignInExternal(context.Background(), authcore.ExternalIdentity{
		Email:    email,
		Provider: authcore.ProviderOAuth,
	})
	require.NoError(t, err)
	return res.Token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardRejectsMissingToken(t *testing.T) {
	engine := newGuardedEngine(t)
	handler := RequireAuth(engine)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardRejectsGarbageToken(t *testing.T) {
	engine := newGuardedEngine(t)
	handler := RequireAuth(engine)(okHandler())

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardRejectsNonBearerScheme(t *testing.T) {
	engine := newGuardedEngine(t)
	token := externalSession(t, engine, "a@example.com")
	handler := RequireAuth(engine)(okHandler())

	for _, header := range []string{
		"Basic " + token,
		"bearer " + token,
		"Bearer ",
		token,
	} {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", header)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestGuardAdmitsValidSession(t *testing.T) {
	engine := newGuardedEngine(t)
	token := externalSession(t, engine, "a@example.com")

	var sawClaims bool
	handler := RequireVerifiedUser(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		sawClaims = ok && claims.Email == "a@example.com"
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, sawClaims)
}

func TestGuardAdminDeniesNonAdmin(t *testing.T) {
	engine := newGuardedEngine(t)
	token := externalSession(t, engine, "a@example.com")

	handler := RequireAdmin(engine)(okHandler())

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
