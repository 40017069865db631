package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/oddsrow/oddsrow/internal/domain"
)

type contextKey string

// callerKey holds the authenticated user ID in the request context.
const callerKey contextKey = "caller_id"

// Auth returns middleware that resolves a Bearer session token to a user ID
// and injects it into the request context. Requests without a token, or with
// a token the session store rejects, pass through unauthenticated; handlers
// that require identity reject them with 401.
func Auth(sessions domain.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.Get(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerID returns the authenticated user ID from the context, or "" when
// the request carried no valid session.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey).(string)
	return id
}

// WithCaller injects a caller ID into a context. Used by tests.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey, userID)
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-Session-Token header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if tok := r.Header.Get("X-Session-Token"); tok != "" {
		return strings.TrimSpace(tok)
	}

	return ""
}
