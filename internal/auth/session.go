package auth

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "vault_session"
	tokenKey    = "token"
)

// CookieSessions mirrors the session token into a signed cookie so browser
// clients can authenticate without an Authorization header.
type CookieSessions struct {
	store *sessions.CookieStore
}

// NewCookieSessions signs cookies with secret.
func NewCookieSessions(secret string, secure bool) *CookieSessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieSessions{store: store}
}

// Save stores the token in the cookie until expiresAt.
func (c *CookieSessions) Save(w http.ResponseWriter, r *http.Request, s Session) error {
	session, _ := c.store.Get(r, sessionName)
	session.Values[tokenKey] = s.Token
	session.Options.MaxAge = int(time.Until(s.ExpiresAt).Seconds())
	return session.Save(r, w)
}

// Token returns the token carried by the request cookie, if any.
func (c *CookieSessions) Token(r *http.Request) string {
	session, err := c.store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	token, _ := session.Values[tokenKey].(string)
	return token
}

// Clear expires the cookie.
func (c *CookieSessions) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := c.store.Get(r, sessionName)
	for key := range session.Values {
		delete(session.Values, key)
	}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
