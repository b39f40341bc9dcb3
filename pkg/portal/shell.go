package portal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/loginflow"
	"github.com/tendant/simple-portal/pkg/role"
	"github.com/tendant/simple-portal/pkg/session"
)

// ViewKind is what the portal shows a visitor.
type ViewKind string

const (
	ViewLoading      ViewKind = "loading"
	ViewLogin        ViewKind = "login"
	ViewDashboard    ViewKind = "dashboard"
	ViewAccessDenied ViewKind = "access_denied"
)

// View is the decision the shell renders from.
type View struct {
	Kind  ViewKind        `json:"kind"`
	Role  role.Role       `json:"role"`
	Login loginflow.State `json:"login"`
	User  *backend.User   `json:"user,omitempty"`
}

// Shell is one visitor's portal: a session observer, a login flow and a role
// resolver sharing one auth client. It is safe for concurrent use.
type Shell struct {
	id        string
	handle    backend.Handle
	mirror    *session.Mirror
	observer  *session.Observer
	machine   *loginflow.Machine
	resolver  *role.Resolver
	multiRole bool
	logger    *slog.Logger

	mu       sync.Mutex
	lastKey  string
	lastSeen time.Time
}

type ShellOption func(*shellConfig)

type shellConfig struct {
	multiRole  bool
	invalidate bool
	logger     *slog.Logger
	now        time.Time
}

// WithMultiRole selects role-based dashboards. When off every authenticated
// visitor gets the client dashboard and no role is fetched.
func WithMultiRole(v bool) ShellOption {
	return func(c *shellConfig) { c.multiRole = v }
}

// WithInvalidateIntermediateSession is passed through to the login flow.
func WithInvalidateIntermediateSession(v bool) ShellOption {
	return func(c *shellConfig) { c.invalidate = v }
}

func WithShellLogger(logger *slog.Logger) ShellOption {
	return func(c *shellConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func withCreatedAt(t time.Time) ShellOption {
	return func(c *shellConfig) { c.now = t }
}

func NewShell(id string, h backend.Handle, opts ...ShellOption) *Shell {
	cfg := shellConfig{multiRole: true, invalidate: true, logger: slog.Default(), now: time.Now()}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("shell", id)

	mirror := session.NewMirror()
	return &Shell{
		id:     id,
		handle: h,
		mirror: mirror,
		observer: session.NewObserver(h.Auth, mirror,
			session.WithLogger(logger)),
		machine: loginflow.NewMachine(h.Auth, mirror,
			loginflow.WithInvalidateIntermediateSession(cfg.invalidate),
			loginflow.WithLogger(logger)),
		resolver:  role.NewResolver(h.Data, role.WithLogger(logger)),
		multiRole: cfg.multiRole,
		logger:    logger,
		lastSeen:  cfg.now,
	}
}

func (s *Shell) ID() string { return s.id }

// Handle is the visitor's connection to the external service.
func (s *Shell) Handle() backend.Handle { return s.handle }

func (s *Shell) Machine() *loginflow.Machine { return s.machine }

// Start begins observing the auth client.
func (s *Shell) Start(ctx context.Context) error {
	return s.observer.Start(ctx)
}

// View decides what the visitor sees. The role is fetched at most once per
// session; later calls are served from the resolver's cache.
func (s *Shell) View(ctx context.Context) View {
	snap := s.mirror.Snapshot()
	if !snap.Seeded {
		return View{Kind: ViewLoading, Login: s.machine.State()}
	}

	login := s.machine.State()
	if snap.Session == nil {
		s.forgetPrevious("")
		if login.Step == loginflow.StepVerified {
			s.logger.Info("session lost, resetting login")
			s.machine.Reset()
			login = s.machine.State()
		}
		return View{Kind: ViewLogin, Login: login}
	}
	if snap.MFAInProgress {
		return View{Kind: ViewLogin, Login: login}
	}

	user := snap.Session.User
	s.forgetPrevious(snap.Session.Key())
	if !s.multiRole {
		return View{Kind: ViewDashboard, Role: role.Client, Login: login, User: &user}
	}

	r := s.resolver.Resolve(ctx, snap.Session)
	kind := role.Match(r,
		func() ViewKind { return ViewDashboard },
		func() ViewKind { return ViewDashboard },
		func() ViewKind { return ViewDashboard },
		func() ViewKind { return ViewAccessDenied },
	)
	return View{Kind: kind, Role: r, Login: login, User: &user}
}

// forgetPrevious drops the cached role of a session that has been replaced.
func (s *Shell) forgetPrevious(key string) {
	s.mu.Lock()
	prev := s.lastKey
	s.lastKey = key
	s.mu.Unlock()
	if prev != "" && prev != key {
		s.resolver.Forget(prev)
	}
}

// SignOut ends the visitor's session. The local session is cleared even when
// the service rejects the call; that error is returned for logging only.
func (s *Shell) SignOut(ctx context.Context) error {
	key := s.mirror.Session().Key()
	err := s.handle.Auth.SignOut(ctx)
	if err != nil {
		s.logger.Warn("sign-out reported an error", "err", err)
	}
	s.machine.Reset()
	if key != "" {
		s.resolver.Forget(key)
	}
	return err
}

func (s *Shell) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Shell) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close releases the auth subscription.
func (s *Shell) Close() {
	s.observer.Close()
}
