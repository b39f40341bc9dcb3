package memory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/notification"
	"github.com/tendant/simple-portal/pkg/tokengenerator"
)

var (
	errInvalidCredentials = &backend.Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	errOTPSignupDisabled  = &backend.Error{Status: http.StatusUnprocessableEntity, Code: "otp_disabled", Message: "Signups not allowed for otp"}
	errOTPExpired         = &backend.Error{Status: http.StatusForbidden, Code: "otp_expired", Message: "Token has expired or is invalid"}
)

// Client is one visitor's auth client against the Store.
type Client struct {
	store *Store
	hub   *backend.Hub

	mu      sync.Mutex
	session *backend.Session
}

func (s *Store) NewClient() *Client {
	return &Client{store: s, hub: backend.NewHub()}
}

func (c *Client) Subscribe(fn func(backend.AuthEvent)) *backend.Subscription {
	return c.hub.Subscribe(fn)
}

func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.store.now().After(c.session.ExpiresAt) {
		c.session = nil
	}
	return c.session, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	acct, ok := c.store.lookup(email)
	if !ok {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return c.establish(acct.user)
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.hub.Publish(backend.AuthEvent{Kind: backend.EventSignedOut})
	return nil
}

func (c *Client) RequestOneTimeCode(ctx context.Context, email string, opts backend.OTPOptions) error {
	acct, ok := c.store.lookup(email)
	if !ok {
		if !opts.CreateUser {
			return errOTPSignupDisabled
		}
		// Passwordless account; it can only ever sign in by code.
		if _, err := c.store.createAccount(email, uuid.New().String()); err != nil {
			return err
		}
		if acct, ok = c.store.lookup(email); !ok {
			return errOTPSignupDisabled
		}
	}

	now := c.store.now().UTC()
	code, err := totp.GenerateCodeCustom(acct.totpSecret, now, c.store.codeOpts())
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	c.store.mu.Lock()
	c.store.pending[acct.user.Email] = now
	c.store.mu.Unlock()

	err = c.store.codes.Send(notification.OneTimeCodeNotice, notification.NotificationData{
		To: acct.user.Email,
		Data: map[string]string{
			"Code":     code,
			"ValidFor": c.store.cfg.CodeTTL.String(),
			"Email":    acct.user.Email,
		},
	})
	if err != nil {
		c.store.logger.Error("one-time code delivery failed", "email", acct.user.Email, "err", err)
		return &backend.Error{Status: http.StatusInternalServerError, Code: "unexpected_failure", Message: "Error sending magic link"}
	}
	return nil
}

func (c *Client) VerifyOneTimeCode(ctx context.Context, email, code string) (*backend.Session, error) {
	acct, ok := c.store.lookup(email)
	if !ok {
		return nil, errOTPExpired
	}

	now := c.store.now().UTC()
	c.store.mu.Lock()
	issued, pending := c.store.pending[acct.user.Email]
	c.store.mu.Unlock()
	if !pending || now.Sub(issued) > c.store.cfg.CodeTTL {
		return nil, errOTPExpired
	}

	valid, err := totp.ValidateCustom(code, acct.totpSecret, now, c.store.codeOpts())
	if err != nil || !valid {
		return nil, errOTPExpired
	}

	c.store.mu.Lock()
	delete(c.store.pending, acct.user.Email)
	c.store.mu.Unlock()

	return c.establish(acct.user)
}

func (c *Client) SignUp(ctx context.Context, email, password string) (backend.User, error) {
	return c.store.createAccount(email, password)
}

func (c *Client) establish(user backend.User) (*backend.Session, error) {
	sessionID := uuid.New().String()
	token, exp, err := tokengenerator.IssueAccessToken(c.store.cfg.JWTSecret, c.store.cfg.Issuer, user.ID, user.Email, sessionID, c.store.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	sess := &backend.Session{
		ID:           sessionID,
		AccessToken:  token,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    exp,
		User:         user,
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.hub.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: sess})
	return sess, nil
}

func (s *Store) lookup(email string) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[normEmail(email)]
	return a, ok
}

func (s *Store) codeOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(s.cfg.CodeTTL / time.Second),
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
