package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tendant/simple-portal/pkg/backend"
)

var (
	ErrAlreadyStarted = errors.New("observer already started")
	ErrClosed         = errors.New("observer closed")
)

// Observer keeps a Mirror in step with the auth client's notifications.
type Observer struct {
	auth   backend.AuthClient
	mirror *Mirror
	logger *slog.Logger

	mu      sync.Mutex
	sub     *backend.Subscription
	started bool
	closed  bool
}

type ObserverOption func(*Observer)

func WithLogger(logger *slog.Logger) ObserverOption {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewObserver(auth backend.AuthClient, mirror *Mirror, opts ...ObserverOption) *Observer {
	o := &Observer{
		auth:   auth,
		mirror: mirror,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Observer) Mirror() *Mirror {
	return o.mirror
}

// Start subscribes to auth changes and then seeds the mirror with the current
// session. Subscribing first means a change racing the fetch is never lost;
// the seed yields to any notification that arrived in the meantime. A failed
// fetch leaves the visitor logged out.
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	o.mu.Unlock()

	version := o.mirror.Version()
	sub := o.auth.Subscribe(o.handle)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed
	}
	o.sub = sub
	o.mu.Unlock()

	sess, err := o.auth.GetSession(ctx)
	if err != nil {
		o.logger.Warn("initial session fetch failed, treating visitor as signed out", "err", err)
		sess = nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if !o.mirror.Seed(sess, version) {
		o.logger.Debug("initial session superseded by notification")
	}
	return nil
}

func (o *Observer) handle(ev backend.AuthEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	switch ev.Kind {
	case backend.EventSignedOut:
		o.mirror.SignedOut()
	default:
		o.mirror.Replace(ev.Session)
	}
	o.logger.Debug("auth change mirrored", "kind", ev.Kind, "session", ev.Session != nil)
}

// Close releases the subscription. No mirror writes happen after Close
// returns. Safe to call more than once.
func (o *Observer) Close() {
	o.mu.Lock()
	o.closed = true
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()

	sub.Unsubscribe()
}
