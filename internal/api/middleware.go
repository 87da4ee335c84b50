// Package api implements the marginalia REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"
)

// UserHeader carries the user id when authentication is disabled.
const UserHeader = "X-User-ID"

// Auth configures how requests are mapped to users.
//
// With Enabled set, every request must carry "Authorization: Bearer <token>"
// for one of Tokens, and the token decides the user. Otherwise the user comes
// from the X-User-ID header, falling back to DefaultUser.
type Auth struct {
	Enabled     bool
	Tokens      map[string]string
	DefaultUser string
}

type userKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user resolved by AuthMiddleware.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// UserFromRequest returns the user of an authenticated request.
func UserFromRequest(r *http.Request) string {
	return UserFromContext(r.Context())
}

// AuthMiddleware resolves the request's user and stores it in the context.
func AuthMiddleware(auth Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if auth.Enabled {
				h := r.Header.Get("Authorization")
				if !strings.HasPrefix(h, "Bearer ") {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				id, ok := auth.Tokens[strings.TrimPrefix(h, "Bearer ")]
				if !ok {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				userID = id
			} else {
				userID = strings.TrimSpace(r.Header.Get(UserHeader))
				if userID == "" {
					userID = auth.DefaultUser
				}
			}
			if userID == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("unknown user"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}
