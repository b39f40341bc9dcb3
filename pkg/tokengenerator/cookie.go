package tokengenerator

import (
	"net/http"
	"time"
)

// DefaultVisitorCookie names the cookie that binds a browser to its portal
// shell.
const DefaultVisitorCookie = "portal_session"

// CookieSetter writes and clears the visitor cookie.
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, value string, expire time.Time)
	ClearCookie(w http.ResponseWriter)
	Name() string
}

// VisitorCookie is an HttpOnly cookie carrying the signed visitor token.
type VisitorCookie struct {
	CookieName string
	Path       string
	Secure     bool
	SameSite   http.SameSite
}

func (c *VisitorCookie) Name() string {
	if c.CookieName == "" {
		return DefaultVisitorCookie
	}
	return c.CookieName
}

func (c *VisitorCookie) SetCookie(w http.ResponseWriter, value string, expire time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(),
		Path:     c.Path,
		Value:    value,
		Expires:  expire,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *VisitorCookie) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(),
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func NewVisitorCookie(name string, secure bool) *VisitorCookie {
	return &VisitorCookie{
		CookieName: name,
		Path:       "/",
		Secure:     secure,
		SameSite:   http.SameSiteLaxMode,
	}
}
