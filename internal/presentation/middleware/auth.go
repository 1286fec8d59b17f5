package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/infrastructure/auth"
)

type sessionContextKey struct{}

// Authenticate returns a middleware that verifies the session cookie and
// attaches the resulting session to the request context. Requests without a
// valid session are rejected with 401.
func Authenticate(tokens *auth.TokenManager, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil {
				unauthorized(w)
				return
			}

			session, err := tokens.Verify(cookie.Value)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the authenticated session stored by
// Authenticate, or false if the request was not authenticated
func SessionFromContext(ctx context.Context) (entities.Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(entities.Session)
	return session, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
