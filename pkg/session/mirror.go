package session

import (
	"sync"

	"github.com/tendant/simple-portal/pkg/backend"
)

// State is a point-in-time copy of the mirror.
type State struct {
	Session       *backend.Session
	MFAInProgress bool
	// Seeded is false until the initial session fetch has completed.
	Seeded bool
}

// Authenticated reports whether protected content may be shown: a session
// exists and no login flow is holding it back.
func (s State) Authenticated() bool {
	return s.Session != nil && !s.MFAInProgress
}

// Mirror holds the visitor's view of the externally managed session together
// with the login flow's in-progress flag. The session is written only by the
// Observer; the flag only by the login flow, except that an unannounced
// sign-out forces it off.
type Mirror struct {
	mu            sync.RWMutex
	session       *backend.Session
	mfaInProgress bool
	seeded        bool
	version       uint64
	// intermediate is set while the login flow signs out its own
	// password-only session.
	intermediate bool
}

func NewMirror() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		Session:       m.session,
		MFAInProgress: m.mfaInProgress,
		Seeded:        m.seeded,
	}
}

func (m *Mirror) Session() *backend.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Mirror) MFAInProgress() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mfaInProgress
}

// Version counts applied notifications.
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Replace installs the session carried by a notification. A nil session means
// absent.
func (m *Mirror) Replace(s *backend.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.seeded = true
	m.version++
}

// SignedOut applies a sign-out notification. The session becomes absent and
// the in-progress flag is forced off, unless the sign-out was announced as the
// login flow's own intermediate invalidation.
func (m *Mirror) SignedOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.seeded = true
	m.version++
	if m.intermediate {
		m.intermediate = false
		return
	}
	m.mfaInProgress = false
}

// Seed installs the result of the initial session fetch. It is ignored when a
// notification was applied after version was read.
func (m *Mirror) Seed(s *backend.Session, version uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeded = true
	if m.version != version {
		return false
	}
	m.session = s
	return true
}

func (m *Mirror) SetMFAInProgress(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mfaInProgress = v
	m.intermediate = false
}

// BeginIntermediateSignOut marks the next sign-out notification as the login
// flow's own. EndIntermediateSignOut clears the mark when no notification
// arrived.
func (m *Mirror) BeginIntermediateSignOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intermediate = true
}

func (m *Mirror) EndIntermediateSignOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intermediate = false
}
