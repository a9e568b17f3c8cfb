package middleware

import (
	"context"
	"net/http"

	"github.com/alphadeck/papertrade/internal/domain"
)

// SessionCookieName is the cookie carrying the opaque session id.
const SessionCookieName = "papertrade_session"

// Authenticator resolves a session id to its user. The auth service
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) (domain.User, error)
}

type contextKey struct{ name string }

var userKey = &contextKey{"user"}

// Session returns middleware that resolves the session cookie into a user
// and attaches it to the request context. Requests without a valid session
// pass through unauthenticated; route guards decide whether that matters.
func Session(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				// Expired or bogus cookie; treat as anonymous.
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}

// RequireUser wraps a handler so it only runs for authenticated requests.
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

// RequireAdmin wraps a handler so it only runs for admin users.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsAdmin() {
			writeAuthError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

// writeAuthError sends a small JSON error body.
func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
