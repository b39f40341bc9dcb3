package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/tendant/simple-portal/pkg/portal"
)

// SidClaim carries the shell ID in the visitor token.
const SidClaim = "sid"

// Visitor is the shell bound to the current request and the view it
// computed when the request arrived.
type Visitor struct {
	Shell *portal.Shell
	View  portal.View
}

// LogValue keeps credentials and personal details out of the logs.
func (v *Visitor) LogValue() slog.Value {
	if v == nil || v.Shell == nil {
		return slog.StringValue("none")
	}
	attrs := []slog.Attr{
		slog.String("shell", v.Shell.ID()),
		slog.String("view", string(v.View.Kind)),
	}
	if v.View.User != nil {
		attrs = append(attrs, slog.String("user", v.View.User.ID))
	}
	return slog.GroupValue(attrs...)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "portal context value " + k.name
}

var VisitorKey = &contextKey{"Visitor"}

func NewContext(ctx context.Context, v *Visitor) context.Context {
	return context.WithValue(ctx, VisitorKey, v)
}

func FromContext(ctx context.Context) (*Visitor, bool) {
	v, ok := ctx.Value(VisitorKey).(*Visitor)
	return v, ok && v != nil
}

// Verifier reads the visitor token from the named cookie, falling back to the
// Authorization header. Missing or invalid tokens are left for the next
// handler to deal with.
func Verifier(ja *jwtauth.JWTAuth, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, TokenFromCookie(cookieName), jwtauth.TokenFromHeader)(next)
	}
}

func TokenFromCookie(name string) func(r *http.Request) string {
	return func(r *http.Request) string {
		cookie, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
}

// ShellID returns the shell named by a verified visitor token, or "".
func ShellID(ctx context.Context) string {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return ""
	}
	sid, _ := claims[SidClaim].(string)
	return sid
}

// IssueVisitorToken signs a token binding the browser to shellID.
func IssueVisitorToken(ja *jwtauth.JWTAuth, shellID string, expire time.Time) (string, error) {
	claims := map[string]interface{}{SidClaim: shellID}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, expire)
	_, tokenString, err := ja.Encode(claims)
	if err != nil {
		slog.Error("Failed to sign visitor token", "err", err)
		return "", err
	}
	return tokenString, nil
}
