package loginflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/session"
)

// Step is the stage of the login flow.
type Step int

const (
	StepCredentials Step = iota
	StepCode
	StepVerified
)

func (s Step) String() string {
	switch s {
	case StepCredentials:
		return "credentials"
	case StepCode:
		return "code"
	case StepVerified:
		return "verified"
	default:
		return "unknown"
	}
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a snapshot of the flow. The password is never exposed.
type State struct {
	Step          Step   `json:"step"`
	Email         string `json:"email"`
	Code          string `json:"code,omitempty"`
	Submitting    bool   `json:"submitting"`
	LastError     *Error `json:"last_error,omitempty"`
	MFAInProgress bool   `json:"mfa_in_progress"`
}

// Machine drives the two-factor login: password first, then a one-time code
// emailed by the auth service. The in-progress flag lives in the shared
// Mirror so the container keeps showing the login screen while a
// password-only session may exist.
//
// Network calls run outside the lock. Each request is tagged with the
// attempt it belongs to and its response is dropped if the flow has moved on.
type Machine struct {
	auth       backend.AuthClient
	mirror     *session.Mirror
	logger     *slog.Logger
	invalidate bool

	mu           sync.Mutex
	step         Step
	email        string
	password     string
	code         string
	submitting   bool
	invalidating bool
	lastErr      *Error
	attempt      uint64
	// pending counts service calls still running, including those of
	// abandoned attempts. A new submit waits for them.
	pending int
}

type Option func(*Machine)

// WithInvalidateIntermediateSession controls whether the password session is
// signed out before the code is requested. Defaults to true. When false the
// code request alone is expected to supersede it, and the session is only
// signed out if the code request fails.
func WithInvalidateIntermediateSession(v bool) Option {
	return func(m *Machine) {
		m.invalidate = v
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMachine(auth backend.AuthClient, mirror *session.Mirror, opts ...Option) *Machine {
	m := &Machine{
		auth:       auth,
		mirror:     mirror,
		logger:     slog.Default(),
		invalidate: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Machine) stateLocked() State {
	return State{
		Step:          m.step,
		Email:         m.email,
		Code:          m.code,
		Submitting:    m.submitting,
		LastError:     m.lastErr,
		MFAInProgress: m.mirror.MFAInProgress(),
	}
}

// SubmitCredentials runs the password step. On success the flow is waiting
// for the emailed code; on failure it stays at the credentials step with
// LastError set and the in-progress flag off.
func (m *Machine) SubmitCredentials(ctx context.Context, email, password string) (State, error) {
	email = strings.TrimSpace(email)

	m.mu.Lock()
	if m.busyLocked() {
		defer m.mu.Unlock()
		return m.stateLocked(), ErrBusy
	}
	if m.step != StepCredentials {
		defer m.mu.Unlock()
		return m.stateLocked(), ErrWrongStep
	}
	if email == "" || password == "" {
		defer m.mu.Unlock()
		m.lastErr = newError(ErrorTypeMissingFields, MessageMissingCredentials)
		return m.stateLocked(), m.lastErr
	}
	m.email = email
	m.password = password
	m.code = ""
	m.lastErr = nil
	m.mirror.SetMFAInProgress(true)
	m.submitting = true
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()

	m.logger.Info("login credentials submitted", "email", email, "attempt", attempt)

	done := m.track()
	sess, err := m.auth.SignInWithPassword(ctx, email, password)
	done()
	if !m.isCurrent(attempt) {
		m.discard(ctx, attempt, sess != nil)
		return m.State(), ErrStale
	}
	if err != nil {
		m.logger.Info("password sign-in rejected", "email", email, "err", err)
		return m.fail(attempt, StepCredentials, rejection(ErrorTypeInvalidCredentials, err))
	}

	if m.invalidate {
		// The password check is only the first factor; no full session may
		// exist until the code is verified.
		if err := m.signOutIntermediate(ctx); err != nil {
			if !m.isCurrent(attempt) {
				m.discard(ctx, attempt, true)
				return m.State(), ErrStale
			}
			m.logger.Warn("intermediate sign-out failed", "email", email, "err", err)
			return m.fail(attempt, StepCredentials, newError(ErrorTypeSessionConflict, MessageSessionConflict))
		}
		if !m.isCurrent(attempt) {
			return m.State(), ErrStale
		}
	}

	done = m.track()
	err = m.auth.RequestOneTimeCode(ctx, email, backend.OTPOptions{CreateUser: false})
	done()
	if !m.isCurrent(attempt) {
		m.discard(ctx, attempt, !m.invalidate)
		return m.State(), ErrStale
	}
	if err != nil {
		m.logger.Warn("one-time code request failed", "email", email, "err", err)
		if !m.invalidate {
			if serr := m.signOutIntermediate(ctx); serr != nil {
				m.logger.Warn("sign-out after failed code request failed", "email", email, "err", serr)
			}
		}
		return m.fail(attempt, StepCredentials, newError(ErrorTypeCodeNotSent, MessageCodeNotSent))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt != attempt {
		return m.stateLocked(), ErrStale
	}
	m.step = StepCode
	m.submitting = false
	m.logger.Info("one-time code sent", "email", email, "attempt", attempt)
	return m.stateLocked(), nil
}

// SubmitCode verifies the emailed code. A rejected code keeps the flow at the
// code step so the visitor can retry without re-entering credentials.
func (m *Machine) SubmitCode(ctx context.Context, code string) (State, error) {
	code = strings.TrimSpace(code)

	m.mu.Lock()
	if m.busyLocked() {
		defer m.mu.Unlock()
		return m.stateLocked(), ErrBusy
	}
	if m.step != StepCode {
		defer m.mu.Unlock()
		return m.stateLocked(), ErrWrongStep
	}
	if code == "" {
		defer m.mu.Unlock()
		m.lastErr = newError(ErrorTypeMissingFields, MessageMissingCode)
		return m.stateLocked(), m.lastErr
	}
	m.code = code
	m.lastErr = nil
	m.submitting = true
	attempt := m.attempt
	email := m.email
	m.mu.Unlock()

	done := m.track()
	sess, err := m.auth.VerifyOneTimeCode(ctx, email, code)
	done()
	if !m.isCurrent(attempt) {
		m.discard(ctx, attempt, sess != nil)
		return m.State(), ErrStale
	}
	if err != nil {
		m.logger.Info("one-time code rejected", "email", email, "err", err)
		return m.fail(attempt, StepCode, rejection(ErrorTypeCodeRejected, err))
	}
	if sess == nil {
		m.logger.Warn("code verification returned no session", "email", email)
		return m.fail(attempt, StepCode, newError(ErrorTypeVerificationIncomplete, MessageVerificationIncomplete))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt != attempt {
		return m.stateLocked(), ErrStale
	}
	m.step = StepVerified
	m.submitting = false
	m.password = ""
	m.code = ""
	m.mirror.SetMFAInProgress(false)
	m.logger.Info("login verified", "email", email, "user_id", sess.User.ID)
	return m.stateLocked(), nil
}

// ReturnToStart abandons the current attempt. Error, code and password are
// cleared; the email is kept. Any outstanding response will be discarded.
// Calling it again changes nothing.
func (m *Machine) ReturnToStart() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step == StepVerified {
		return m.stateLocked(), ErrWrongStep
	}
	if m.step == StepCode || m.submitting {
		m.attempt++
	}
	m.step = StepCredentials
	m.lastErr = nil
	m.code = ""
	m.password = ""
	m.submitting = false
	m.mirror.SetMFAInProgress(false)
	return m.stateLocked(), nil
}

// Reset returns the flow to a blank credentials step, email included. Used
// after sign-out or when the session is lost.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt++
	m.step = StepCredentials
	m.email = ""
	m.password = ""
	m.code = ""
	m.lastErr = nil
	m.submitting = false
	m.mirror.SetMFAInProgress(false)
}

func (m *Machine) busyLocked() bool {
	return m.submitting || m.invalidating || m.pending > 0
}

// track marks a service call as running until the returned func is called.
func (m *Machine) track() func() {
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.pending--
		m.mu.Unlock()
	}
}

func (m *Machine) isCurrent(attempt uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt == attempt
}

func (m *Machine) fail(attempt uint64, step Step, e *Error) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt != attempt {
		return m.stateLocked(), ErrStale
	}
	m.step = step
	m.lastErr = e
	m.submitting = false
	if step == StepCredentials {
		m.mirror.SetMFAInProgress(false)
	}
	return m.stateLocked(), e
}

func (m *Machine) signOutIntermediate(ctx context.Context) error {
	defer m.track()()
	m.mirror.BeginIntermediateSignOut()
	defer m.mirror.EndIntermediateSignOut()
	return m.auth.SignOut(ctx)
}

// discard handles the response of an abandoned attempt. If that response
// left a session behind and the flow is idle at the credentials step, the
// session is signed out so it cannot surface as a login.
func (m *Machine) discard(ctx context.Context, attempt uint64, sessionLingers bool) {
	m.logger.Info("discarding stale login response", "attempt", attempt, "session", sessionLingers)
	if !sessionLingers {
		return
	}

	m.mu.Lock()
	if m.step != StepCredentials || m.submitting || m.invalidating {
		m.mu.Unlock()
		return
	}
	m.invalidating = true
	m.mu.Unlock()

	if err := m.auth.SignOut(ctx); err != nil {
		m.logger.Warn("sign-out of abandoned session failed", "attempt", attempt, "err", err)
	}

	m.mu.Lock()
	m.invalidating = false
	m.mu.Unlock()
}
