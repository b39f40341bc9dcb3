package portal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-portal/pkg/backend"
)

var (
	ErrRegistryClosed = errors.New("shell registry closed")
	ErrRegistryFull   = errors.New("shell registry full")
)

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultMaxShells     = 10000
)

// Registry owns every visitor's shell. Shells idle for longer than the idle
// timeout are closed by a background sweeper.
type Registry struct {
	connector     backend.Connector
	idleTimeout   time.Duration
	sweepInterval time.Duration
	maxShells     int
	shellOpts     []ShellOption
	now           func() time.Time
	logger        *slog.Logger

	mu     sync.Mutex
	shells map[string]*Shell
	closed bool

	stop chan struct{}
	done chan struct{}
}

type RegistryOption func(*Registry)

func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithSweepInterval sets how often idle shells are looked for. Zero disables
// the background sweeper; Sweep can still be called directly.
func WithSweepInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.sweepInterval = d }
}

// WithMaxShells caps the number of live shells. Zero or less removes the cap.
func WithMaxShells(n int) RegistryOption {
	return func(r *Registry) { r.maxShells = n }
}

func WithShellOptions(opts ...ShellOption) RegistryOption {
	return func(r *Registry) { r.shellOpts = append(r.shellOpts, opts...) }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(connector backend.Connector, opts ...RegistryOption) *Registry {
	r := &Registry{
		connector:     connector,
		idleTimeout:   DefaultIdleTimeout,
		sweepInterval: DefaultSweepInterval,
		maxShells:     DefaultMaxShells,
		now:           time.Now,
		logger:        slog.Default(),
		shells:        make(map[string]*Shell),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.sweepInterval > 0 {
		go r.janitor()
	} else {
		close(r.done)
	}
	return r
}

// Create connects a new visitor and starts observing its session. When the
// registry is at its cap, idle shells are swept first; ErrRegistryFull is
// returned if none could be reclaimed.
func (r *Registry) Create(ctx context.Context) (*Shell, error) {
	if err := r.reserve(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	opts := append([]ShellOption{WithShellLogger(r.logger), withCreatedAt(r.now())}, r.shellOpts...)
	shell := NewShell(id, r.connector.Connect(), opts...)

	if err := shell.Start(ctx); err != nil {
		shell.Close()
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		shell.Close()
		return nil, ErrRegistryClosed
	}
	if r.fullLocked() {
		r.mu.Unlock()
		shell.Close()
		return nil, ErrRegistryFull
	}
	r.shells[id] = shell
	r.mu.Unlock()

	r.logger.Debug("shell created", "shell", id)
	return shell, nil
}

func (r *Registry) reserve() error {
	r.mu.Lock()
	closed, full := r.closed, r.fullLocked()
	r.mu.Unlock()
	if closed {
		return ErrRegistryClosed
	}
	if !full {
		return nil
	}

	r.Sweep()
	r.mu.Lock()
	full = r.fullLocked()
	r.mu.Unlock()
	if full {
		r.logger.Warn("shell registry full", "max_shells", r.maxShells)
		return ErrRegistryFull
	}
	return nil
}

func (r *Registry) fullLocked() bool {
	return r.maxShells > 0 && len(r.shells) >= r.maxShells
}

// Get returns a live shell and marks it as used.
func (r *Registry) Get(id string) (*Shell, bool) {
	r.mu.Lock()
	shell, ok := r.shells[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(shell.idleSince()) > r.idleTimeout {
		r.Remove(id)
		return nil, false
	}
	shell.touch(now)
	return shell, true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	shell, ok := r.shells[id]
	delete(r.shells, id)
	r.mu.Unlock()
	if ok {
		shell.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shells)
}

// Sweep closes shells idle past the timeout and reports how many it closed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []*Shell
	for id, shell := range r.shells {
		if shell.idleSince().Before(cutoff) {
			expired = append(expired, shell)
			delete(r.shells, id)
		}
	}
	r.mu.Unlock()

	for _, shell := range expired {
		shell.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("idle shells expired", "count", len(expired))
	}
	return len(expired)
}

func (r *Registry) janitor() {
	defer close(r.done)
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stop:
			return
		}
	}
}

// Close stops the sweeper and closes every shell. Safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	shells := r.shells
	r.shells = make(map[string]*Shell)
	r.mu.Unlock()

	close(r.stop)
	<-r.done
	for _, shell := range shells {
		shell.Close()
	}
	r.logger.Info("shell registry closed", "shells", len(shells))
}
