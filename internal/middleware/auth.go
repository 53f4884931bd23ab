package middleware

import (
	"context"
	"net/http"

	"github.com/reponote/storage/internal/auth"
	"github.com/reponote/storage/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// Authenticator turns an Authorization header value into a user id.
type Authenticator interface {
	Authenticate(header string) (string, error)
}

// RequireAuth returns middleware that validates the Authorization header and
// injects the caller's user id into the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := a.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				response.Unauthorized(w, auth.Detail(err))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the user id set by RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
