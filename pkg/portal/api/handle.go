// Package api serves the portal shells over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ggicci/httpin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/client"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
	"github.com/tendant/simple-portal/pkg/portal"
	"github.com/tendant/simple-portal/pkg/profile"
	"github.com/tendant/simple-portal/pkg/ratelimit"
	"github.com/tendant/simple-portal/pkg/role"
	"github.com/tendant/simple-portal/pkg/tokengenerator"
)

const (
	DefaultCookieTTL   = 24 * time.Hour
	DefaultCallTimeout = 30 * time.Second
	maxPhotoSize       = 5 << 20
)

// Handle serves the portal to browsers. Each browser is bound to a shell by
// a signed cookie; the shell decides what the visitor may see.
type Handle struct {
	registry    *portal.Registry
	connector   backend.Connector
	tokenAuth   *jwtauth.JWTAuth
	cookie      tokengenerator.CookieSetter
	cookieTTL   time.Duration
	limiter     *ratelimit.Middleware
	shellLimit  *ratelimit.Middleware
	policy      profile.PasswordPolicyChecker
	notifier    profile.Notifier
	callTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Handle)

func WithCookie(c tokengenerator.CookieSetter) Option {
	return func(h *Handle) { h.cookie = c }
}

func WithCookieTTL(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.cookieTTL = d
		}
	}
}

// WithRateLimiter limits the login endpoints.
func WithRateLimiter(m *ratelimit.Middleware) Option {
	return func(h *Handle) { h.limiter = m }
}

// WithShellLimiter limits how often one client IP may start a new shell.
func WithShellLimiter(m *ratelimit.Middleware) Option {
	return func(h *Handle) { h.shellLimit = m }
}

func WithPasswordPolicy(p profile.PasswordPolicyChecker) Option {
	return func(h *Handle) { h.policy = p }
}

// WithNotifier sends welcome notices to accounts registered by administrators.
func WithNotifier(n profile.Notifier) Option {
	return func(h *Handle) { h.notifier = n }
}

// WithCallTimeout bounds login calls, which outlive a dropped request.
func WithCallTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.callTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandle creates the portal handler. The connector is also used to
// register accounts without touching the administrator's own session.
func NewHandle(registry *portal.Registry, connector backend.Connector, tokenAuth *jwtauth.JWTAuth, opts ...Option) *Handle {
	h := &Handle{
		registry:    registry,
		connector:   connector,
		tokenAuth:   tokenAuth,
		cookie:      tokengenerator.NewVisitorCookie(tokengenerator.DefaultVisitorCookie, false),
		cookieTTL:   DefaultCookieTTL,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the portal routes on r.
func (h *Handle) Routes(r chi.Router) {
	r.Use(client.Verifier(h.tokenAuth, h.cookie.Name()))
	r.Use(h.bindVisitor)

	r.Get("/view", h.GetView)
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Handler)
		}
		r.With(httpin.NewInput(CredentialsInput{})).Post("/login/credentials", h.SubmitCredentials)
		r.With(httpin.NewInput(CodeInput{})).Post("/login/code", h.SubmitCode)
	})
	r.Post("/login/restart", h.ReturnToStart)
	r.Post("/logout", h.Logout)

	r.With(client.RequireDashboard).Get("/me", h.GetMe)
	r.With(client.RequireRole(role.Admin, role.Staff, role.Client)).Get("/cases", h.ListCases)

	r.Route("/profiles", func(r chi.Router) {
		r.Use(client.RequireRole(role.Admin))
		r.With(httpin.NewInput(ListProfilesInput{})).Get("/", h.ListProfiles)
		r.Post("/", h.RegisterProfile)
		r.Put("/{id}", h.UpdateProfile)
		r.Delete("/{id}", h.DeleteProfile)
		r.Post("/{id}/photo", h.UploadPhoto)
	})

	r.Route("/time-entries", func(r chi.Router) {
		r.Use(client.RequireRole(role.Admin, role.Staff))
		r.With(httpin.NewInput(WeekInput{})).Get("/", h.ListWeek)
		r.Put("/", h.SaveTimeEntry)
		r.Patch("/{id}/slot", h.MoveTimeEntry)
		r.Delete("/{id}", h.DeleteTimeEntry)
	})
}

// bindVisitor finds the caller's shell, creating one and issuing its cookie
// when the token is missing, invalid or names an expired shell.
func (h *Handle) bindVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		shell, ok := h.registry.Get(client.ShellID(ctx))
		if !ok {
			if h.shellLimit != nil && !h.shellLimit.Allow(w, r) {
				return
			}
			var err error
			shell, err = h.newShell(ctx, w)
			if err != nil {
				client.RenderError(w, r, shellError(err))
				return
			}
		}

		v := &client.Visitor{Shell: shell, View: shell.View(ctx)}
		next.ServeHTTP(w, r.WithContext(client.NewContext(ctx, v)))
	})
}

func shellError(err error) *apperrors.Error {
	if errors.Is(err, portal.ErrRegistryFull) || errors.Is(err, portal.ErrRegistryClosed) {
		return apperrors.Wrap(err, apperrors.ErrCodeResourceUnavailable, "The portal is busy. Please try again later.")
	}
	return apperrors.FromBackend(err, "session")
}

func (h *Handle) newShell(ctx context.Context, w http.ResponseWriter) (*portal.Shell, error) {
	shell, err := h.registry.Create(ctx)
	if err != nil {
		h.logger.Error("Failed to create shell", "err", err)
		return nil, err
	}
	expire := time.Now().Add(h.cookieTTL)
	token, err := client.IssueVisitorToken(h.tokenAuth, shell.ID(), expire)
	if err != nil {
		h.registry.Remove(shell.ID())
		return nil, apperrors.InternalWrap(err, "failed to issue visitor cookie")
	}
	h.cookie.SetCookie(w, token, expire)
	h.logger.Debug("visitor bound to new shell", "shell", shell.ID())
	return shell, nil
}

// callContext detaches login calls from the request so a dropped connection
// cannot abandon a step halfway.
func (h *Handle) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.callTimeout)
}

func visitor(r *http.Request) *client.Visitor {
	v, _ := client.FromContext(r.Context())
	return v
}

// userID is the signed-in user of a gated route.
func userID(v *client.Visitor) string {
	if v == nil || v.View.User == nil {
		return ""
	}
	return v.View.User.ID
}

func (h *Handle) renderError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	appErr := apperrors.FromBackend(err, resource)
	if appErr.HTTPStatusCode() >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	client.RenderError(w, r, appErr)
}
