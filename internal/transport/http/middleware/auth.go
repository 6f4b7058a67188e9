package middleware

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"yatube/internal/httputil"
	"yatube/internal/service"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// viewerKey holds the *service.Session of the logged-in visitor
	viewerKey contextKey = "viewer"
)

// TokenParser verifies session tokens. *service.AuthService implements it.
type TokenParser interface {
	ParseToken(token string) (*service.Session, error)
}

// Authenticate attaches the session to the request context when the request
// carries a valid token. Anonymous requests pass through untouched.
// The Authorization header is checked first, then the session cookie.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				// Expected format: "Bearer <token>"
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenString = parts[1]
				}
			}

			if tokenString == "" {
				cookie, err := r.Cookie(service.SessionCookieName)
				if err == nil && cookie.Value != "" {
					tokenString = cookie.Value
				}
			}

			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := tokens.ParseToken(tokenString)
			if err != nil {
				log.Debugf("[Auth] ignoring session token: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), session)))
		})
	}
}

// RequireLogin redirects anonymous visitors to the login page with next set
// to the page they asked for.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ViewerFromContext(r.Context()); !ok {
			httputil.Redirect(w, r, httputil.LoginURL(r))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithViewer stores the session in ctx.
func WithViewer(ctx context.Context, session *service.Session) context.Context {
	return context.WithValue(ctx, viewerKey, session)
}

// ViewerFromContext returns the logged-in visitor, if any.
func ViewerFromContext(ctx context.Context) (*service.Session, bool) {
	session, ok := ctx.Value(viewerKey).(*service.Session)
	return session, ok && session != nil
}

// GetUserIDFromContext extracts the user ID from the request context
// Returns the user ID and true if found, or 0 and false if not found
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	session, ok := ViewerFromContext(ctx)
	if !ok {
		return 0, false
	}
	return session.UserID, true
}
