package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/tokengenerator"
)

// refreshMargin is how close to expiry a session is refreshed on read.
const refreshMargin = 30 * time.Second

// Client is one visitor's GoTrue client. It keeps that visitor's session in
// memory and announces every change to its subscribers.
type Client struct {
	project *Project
	hub     *backend.Hub

	mu      sync.Mutex
	session *backend.Session
}

func (p *Project) NewClient() *Client {
	return &Client{project: p, hub: backend.NewHub()}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// userResponse is returned by signup when email confirmation is on.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	tokenResponse
}

func (c *Client) Subscribe(fn func(backend.AuthEvent)) *backend.Subscription {
	return c.hub.Subscribe(fn)
}

// GetSession returns the current session, refreshing it when it is about to
// expire. A failed refresh signs the visitor out.
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess == nil || time.Until(sess.ExpiresAt) > refreshMargin {
		return sess, nil
	}

	var tr tokenResponse
	err := c.project.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": sess.RefreshToken},
	}, &tr)
	if err != nil {
		c.project.logger.Info("session refresh failed", "user_id", sess.User.ID, "err", err)
		c.clear()
		return nil, err
	}

	refreshed, err := c.project.sessionFrom(tr)
	if err != nil || refreshed == nil {
		c.clear()
		return nil, err
	}
	c.install(backend.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	var tr tokenResponse
	err := c.project.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &tr)
	if err != nil {
		return nil, err
	}

	sess, err := c.project.sessionFrom(tr)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &backend.Error{Status: http.StatusBadGateway, Message: "sign-in returned no session"}
	}
	c.install(backend.EventSignedIn, sess)
	return sess, nil
}

// SignOut revokes the session remotely. The local session is cleared and
// SIGNED_OUT published even when the remote call fails; its error is still
// returned.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	var err error
	if sess != nil {
		err = c.project.do(ctx, request{
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			query:  url.Values{"scope": {"local"}},
			token:  sess.AccessToken,
		}, nil)
		if err != nil {
			c.project.logger.Warn("remote sign-out failed", "user_id", sess.User.ID, "err", err)
		}
	}

	c.clear()
	return err
}

func (c *Client) RequestOneTimeCode(ctx context.Context, email string, opts backend.OTPOptions) error {
	return c.project.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/otp",
		body: map[string]any{
			"email":       email,
			"create_user": opts.CreateUser,
		},
	}, nil)
}

// VerifyOneTimeCode returns a nil session without error when the service
// accepts the code but issues no tokens.
func (c *Client) VerifyOneTimeCode(ctx context.Context, email, code string) (*backend.Session, error) {
	var tr tokenResponse
	err := c.project.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body: map[string]string{
			"type":  "email",
			"email": email,
			"token": code,
		},
	}, &tr)
	if err != nil {
		return nil, err
	}

	sess, err := c.project.sessionFrom(tr)
	if err != nil || sess == nil {
		return nil, err
	}
	c.install(backend.EventSignedIn, sess)
	return sess, nil
}

// SignUp creates an account. It never touches this client's session, so an
// administrator stays signed in while registering someone else.
func (c *Client) SignUp(ctx context.Context, email, password string) (backend.User, error) {
	var ur userResponse
	err := c.project.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   map[string]string{"email": email, "password": password},
	}, &ur)
	if err != nil {
		return backend.User{}, err
	}

	// With auto-confirm on the user is nested next to the tokens.
	if ur.ID == "" {
		ur.ID, ur.Email = ur.tokenResponse.User.ID, ur.tokenResponse.User.Email
	}
	if ur.ID == "" {
		return backend.User{}, &backend.Error{Status: http.StatusBadGateway, Message: "sign-up returned no user"}
	}
	return backend.User{ID: ur.ID, Email: ur.Email}, nil
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) install(kind backend.EventKind, sess *backend.Session) {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.hub.Publish(backend.AuthEvent{Kind: kind, Session: sess})
}

func (c *Client) clear() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.hub.Publish(backend.AuthEvent{Kind: backend.EventSignedOut})
}

func (p *Project) sessionFrom(tr tokenResponse) (*backend.Session, error) {
	if tr.AccessToken == "" {
		return nil, nil
	}

	claims, err := tokengenerator.ParseAccessToken(p.cfg.JWTSecret, tr.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("access token rejected: %w", err)
	}

	sess := &backend.Session{
		ID:           claims.SessionID,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		User:         backend.User{ID: tr.User.ID, Email: tr.User.Email},
	}
	if sess.User.ID == "" {
		sess.User.ID = claims.Subject
	}
	if sess.User.Email == "" {
		sess.User.Email = claims.Email
	}

	switch {
	case tr.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		sess.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	case claims.ExpiresAt != nil:
		sess.ExpiresAt = claims.ExpiresAt.Time
	default:
		sess.ExpiresAt = time.Now().Add(time.Hour)
	}
	return sess, nil
}
