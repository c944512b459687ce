package auth

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName carries the session token when no header is sent.
const DefaultCookieName = "jwt"

// Transport moves session tokens between server and caller.
type Transport struct {
	CookieName string
	Secure     bool
}

// SetToken writes token as an HTTP-only cookie expiring with the token.
func (t Transport) SetToken(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Extract returns the bearer token from the Authorization header, falling
// back to the session cookie. It returns "" when neither carries a token.
func (t Transport) Extract(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie(t.cookieName()); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

func (t Transport) cookieName() string {
	if t.CookieName == "" {
		return DefaultCookieName
	}
	return t.CookieName
}
