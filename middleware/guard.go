package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dotstore/authcore"
	"github.com/dotstore/authcore/session"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the session claims stored by a guard, or
// false when the request was not guarded.
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*session.Claims)
	return claims, ok
}

// Guard validates the bearer token and applies check to the refreshed
// claims before admitting the request. On success the claims are stored
// in the request context for the handler.
func Guard(engine *authcore.Engine, check func(*session.Claims) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(w, check(nil))
				return
			}

			claims, err := engine.Validate(r.Context(), token)
			if err != nil {
				deny(w, session.ErrNotAuthenticated)
				return
			}

			if err := check(claims); err != nil {
				deny(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth admits any valid session.
func RequireAuth(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, session.RequireAuth)
}

// RequireVerifiedUser admits sessions with a confirmed email; admins pass.
func RequireVerifiedUser(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, session.RequireVerifiedUser)
}

// RequireAdmin admits allow-listed administrators only.
func RequireAdmin(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, session.RequireAdmin)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func deny(w http.ResponseWriter, err error) {
	switch err {
	case session.ErrNotVerified:
		http.Error(w, "email verification required", http.StatusForbidden)
	case session.ErrNotAdmin:
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}
