package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/doctalk-ai/doctalk/internal/api"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// maxUserIDLen guards against header abuse; real ids are short opaque strings.
const maxUserIDLen = 128

// UserIdentity reads the caller's identity from the X-User-ID header and puts
// it on the request context. Every document and chunk is scoped to this id,
// so requests without one are rejected before reaching a handler.
func UserIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			api.Error(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		if len(userID) > maxUserIDLen {
			api.Error(w, http.StatusUnauthorized, "invalid X-User-ID header")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
