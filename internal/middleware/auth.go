package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hongminglow/vault-be/internal/auth"
	"github.com/hongminglow/vault-be/internal/http/respond"
)

// Authenticator validates session tokens.
type Authenticator interface {
	Authenticate(token string) (auth.Identity, error)
}

// TokenSource reads a session token from a cookie.
type TokenSource interface {
	Token(r *http.Request) string
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// RequestToken prefers the Authorization header and falls back to the cookie.
func RequestToken(r *http.Request, cookies TokenSource) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	if cookies != nil {
		return cookies.Token(r)
	}
	return ""
}

// RequireIdentity rejects requests without a valid session and stores the
// caller's identity in the request context.
func RequireIdentity(authn Authenticator, cookies TokenSource, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := RequestToken(r, cookies)
		if token == "" {
			respond.Error(w, http.StatusUnauthorized, "sign in required")
			return
		}
		id, err := authn.Authenticate(token)
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "session is invalid or expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin guards operator endpoints with a static API key. An empty key
// disables the endpoints.
func RequireAdmin(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			respond.Error(w, http.StatusNotFound, "not found")
			return
		}
		token := BearerToken(r)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
