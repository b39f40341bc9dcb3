package role

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tendant/simple-portal/pkg/backend"
)

const DefaultFetchTimeout = 10 * time.Second

// Resolver fetches the role of the signed-in user once per session.
// Concurrent resolutions for the same session share a single fetch.
type Resolver struct {
	fetcher backend.RoleFetcher
	logger  *slog.Logger
	timeout time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]Role
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFetchTimeout bounds a single role fetch. The fetch is detached from
// the caller's context so an aborted request cannot decide the role.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewResolver(fetcher backend.RoleFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		logger:  slog.Default(),
		timeout: DefaultFetchTimeout,
		cache:   make(map[string]Role),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the role for s. A fetch error and a missing role both yield
// Unknown; the error is logged but not returned.
func (r *Resolver) Resolve(ctx context.Context, s *backend.Session) Role {
	if s == nil || s.User.ID == "" {
		return Unknown
	}
	key := s.Key()

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.cache[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		resolved, final := r.fetch(ctx, s.User.ID)
		if final {
			r.mu.Lock()
			r.cache[key] = resolved
			r.mu.Unlock()
		}
		return resolved, nil
	})
	return v.(Role)
}

// fetch reports whether its answer may be cached for the session. A fetch
// that timed out is retried on the next resolution.
func (r *Resolver) fetch(ctx context.Context, userID string) (Role, bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	tag, err := r.fetcher.FetchRole(ctx, userID)
	if err != nil {
		final := !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
		r.logger.Error("role fetch failed, denying access", "user_id", userID, "err", err, "cached", final)
		return Unknown, final
	}
	resolved := Parse(tag)
	if resolved == Unknown {
		r.logger.Warn("no recognised role on profile", "user_id", userID, "tag", tag)
	}
	return resolved, true
}

// Forget drops the cached role for a session key.
func (r *Resolver) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
}
