package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/backend/memory"
	"github.com/tendant/simple-portal/pkg/loginflow"
	"github.com/tendant/simple-portal/pkg/notification"
	"github.com/tendant/simple-portal/pkg/portal"
	"github.com/tendant/simple-portal/pkg/ratelimit"
	"github.com/tendant/simple-portal/pkg/timeentry"
)

type testPortal struct {
	srv     *httptest.Server
	store   *memory.Store
	mailbox *notification.MockNotifier
}

type viewBody struct {
	View struct {
		Kind  string `json:"kind"`
		Role  string `json:"role"`
		Login struct {
			Step          string `json:"step"`
			Email         string `json:"email"`
			MFAInProgress bool   `json:"mfa_in_progress"`
		} `json:"login"`
		User *backend.User `json:"user"`
	} `json:"view"`
	Error *loginflow.Error `json:"error"`
}

func newTestPortal(t *testing.T, limiter *ratelimit.Middleware) *testPortal {
	t.Helper()
	opts := []Option{}
	if limiter != nil {
		opts = append(opts, WithRateLimiter(limiter))
	}
	return newTestPortalWith(t, nil, opts...)
}

func newTestPortalWith(t *testing.T, regOpts []portal.RegistryOption, opts ...Option) *testPortal {
	t.Helper()
	mailbox := &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions(notification.WithOneTimeCodeTemplate())
	require.NoError(t, err)
	nm.RegisterNotifier(notification.EmailSystem, mailbox)

	store := memory.NewStore(memory.Config{JWTSecret: "test-secret"}, nm)
	registry := portal.NewRegistry(store, append([]portal.RegistryOption{portal.WithSweepInterval(0)}, regOpts...)...)
	t.Cleanup(registry.Close)

	h := NewHandle(registry, store, jwtauth.New("HS256", []byte("cookie-secret"), nil), opts...)

	r := chi.NewRouter()
	r.Route("/api/portal", h.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testPortal{srv: srv, store: store, mailbox: mailbox}
}

// browser keeps its own cookie jar, like a separate visitor.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func (p *testPortal) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: p.srv.URL + "/api/portal", c: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (b *browser) do(method, path string, body interface{}) *http.Response {
	b.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, rd)
	require.NoError(b.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.c.Do(req)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (b *browser) login(p *testPortal, email, password string) viewBody {
	b.t.Helper()
	resp := b.do(http.MethodPost, "/login/credentials", CredentialsRequest{Email: email, Password: password})
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
	sent, ok := p.mailbox.Last()
	require.True(b.t, ok)
	resp = b.do(http.MethodPost, "/login/code", CodeRequest{Code: sent.Data["Code"]})
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
	return decode[viewBody](b.t, resp)
}

func TestLoginRoundTrip(t *testing.T) {
	p := newTestPortal(t, nil)
	_, err := p.store.AddUser("ana@example.com", "S3cret!pw", backend.Profile{PrimerNombre: "Ana", Rol: "cliente"})
	require.NoError(t, err)
	b := p.browser(t)

	resp := b.do(http.MethodGet, "/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[viewBody](t, resp)
	assert.Equal(t, "login", v.View.Kind)
	assert.Equal(t, "credentials", v.View.Login.Step)

	var visitorCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "portal_session" {
			visitorCookie = c
		}
	}
	require.NotNil(t, visitorCookie)
	assert.True(t, visitorCookie.HttpOnly)

	resp = b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = b.do(http.MethodPost, "/login/credentials", CredentialsRequest{Email: "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	v = decode[viewBody](t, resp)
	require.NotNil(t, v.Error)
	assert.Equal(t, loginflow.ErrorTypeMissingFields, v.Error.Type)

	resp = b.do(http.MethodPost, "/login/credentials", CredentialsRequest{Email: "ana@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	v = decode[viewBody](t, resp)
	require.NotNil(t, v.Error)
	assert.Equal(t, loginflow.ErrorTypeInvalidCredentials, v.Error.Type)
	assert.Equal(t, "Invalid login credentials", v.Error.Message)
	assert.False(t, v.View.Login.MFAInProgress)

	resp = b.do(http.MethodPost, "/login/credentials", CredentialsRequest{Email: "ana@example.com", Password: "S3cret!pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v = decode[viewBody](t, resp)
	assert.Equal(t, "login", v.View.Kind, "the code step still shows the login screen")
	assert.Equal(t, "code", v.View.Login.Step)
	assert.True(t, v.View.Login.MFAInProgress)

	resp = b.do(http.MethodPost, "/login/code", CodeRequest{Code: "000000"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	v = decode[viewBody](t, resp)
	assert.Equal(t, loginflow.ErrorTypeCodeRejected, v.Error.Type)
	assert.Equal(t, "code", v.View.Login.Step)

	sent, ok := p.mailbox.Last()
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", sent.To)
	resp = b.do(http.MethodPost, "/login/code", CodeRequest{Code: sent.Data["Code"]})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v = decode[viewBody](t, resp)
	assert.Equal(t, "dashboard", v.View.Kind)
	assert.Equal(t, "client", v.View.Role)
	require.NotNil(t, v.View.User)
	assert.Equal(t, "ana@example.com", v.View.User.Email)

	resp = b.do(http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[backend.Profile](t, resp)
	assert.Equal(t, "Ana", me.PrimerNombre)

	resp = b.do(http.MethodPost, "/login/restart", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = b.do(http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v = decode[viewBody](t, resp)
	assert.Equal(t, "login", v.View.Kind)
	assert.Equal(t, "credentials", v.View.Login.Step)

	resp = b.do(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReturnToStart(t *testing.T) {
	p := newTestPortal(t, nil)
	_, err := p.store.AddUser("ana@example.com", "S3cret!pw", backend.Profile{Rol: "cliente"})
	require.NoError(t, err)
	b := p.browser(t)

	resp := b.do(http.MethodPost, "/login/credentials", CredentialsRequest{Email: "ana@example.com", Password: "S3cret!pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for i := 0; i < 2; i++ {
		resp = b.do(http.MethodPost, "/login/restart", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		v := decode[viewBody](t, resp)
		assert.Equal(t, "login", v.View.Kind)
		assert.Equal(t, "credentials", v.View.Login.Step)
		assert.Equal(t, "ana@example.com", v.View.Login.Email)
		assert.False(t, v.View.Login.MFAInProgress)
	}

	resp = b.do(http.MethodPost, "/login/code", CodeRequest{Code: "123456"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestVisitorsAreIsolated(t *testing.T) {
	p := newTestPortal(t, nil)
	_, err := p.store.AddUser("ana@example.com", "S3cret!pw", backend.Profile{Rol: "cliente"})
	require.NoError(t, err)

	ana := p.browser(t)
	ana.login(p, "ana@example.com", "S3cret!pw")

	other := p.browser(t)
	resp := other.do(http.MethodGet, "/view", nil)
	v := decode[viewBody](t, resp)
	assert.Equal(t, "login", v.View.Kind)

	resp = ana.do(http.MethodGet, "/view", nil)
	v = decode[viewBody](t, resp)
	assert.Equal(t, "dashboard", v.View.Kind)
}

func TestRoleGating(t *testing.T) {
	p := newTestPortal(t, nil)
	client, err := p.store.AddUser("ana@example.com", "S3cret!pw", backend.Profile{Rol: "cliente"})
	require.NoError(t, err)
	_, err = p.store.AddUser("leo@example.com", "S3cret!pw", backend.Profile{Rol: "trabajador"})
	require.NoError(t, err)
	_, err = p.store.AddUser("nobody@example.com", "S3cret!pw", backend.Profile{})
	require.NoError(t, err)
	p.store.AddCase(backend.Case{Titulo: "Divorcio", Estado: backend.CaseOpen, ClienteID: client.ID})
	p.store.AddCase(backend.Case{Titulo: "Herencia", Estado: backend.CaseClosed, ClienteID: "someone-else"})

	ana := p.browser(t)
	ana.login(p, "ana@example.com", "S3cret!pw")
	resp := ana.do(http.MethodGet, "/cases", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	own := decode[[]backend.Case](t, resp)
	require.Len(t, own, 1)
	assert.Equal(t, "Divorcio", own[0].Titulo)
	assert.Equal(t, http.StatusForbidden, ana.do(http.MethodGet, "/profiles", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, ana.do(http.MethodGet, "/time-entries", nil).StatusCode)

	leo := p.browser(t)
	v := leo.login(p, "leo@example.com", "S3cret!pw")
	assert.Equal(t, "staff", v.View.Role)
	resp = leo.do(http.MethodGet, "/cases", nil)
	assert.Len(t, decode[[]backend.Case](t, resp), 2)
	assert.Equal(t, http.StatusForbidden, leo.do(http.MethodGet, "/profiles", nil).StatusCode)

	nobody := p.browser(t)
	v = nobody.login(p, "nobody@example.com", "S3cret!pw")
	assert.Equal(t, "access_denied", v.View.Kind)
	assert.Equal(t, http.StatusForbidden, nobody.do(http.MethodGet, "/cases", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, nobody.do(http.MethodGet, "/me", nil).StatusCode)
}

func TestAdminProfiles(t *testing.T) {
	p := newTestPortal(t, nil)
	_, err := p.store.AddUser("root@example.com", "S3cret!pw", backend.Profile{Rol: "admin"})
	require.NoError(t, err)
	admin := p.browser(t)
	v := admin.login(p, "root@example.com", "S3cret!pw")
	require.Equal(t, "admin", v.View.Role)

	resp := admin.do(http.MethodPost, "/profiles", RegisterRequest{
		Email:          "eva@example.com",
		Password:       "Abcdef1!",
		PrimerNombre:   "Eva",
		PrimerApellido: "Ruiz",
		Cedula:         "V-1",
		Category:       "estudiante",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	eva := decode[backend.Profile](t, resp)
	assert.Equal(t, "trabajador", eva.Rol)

	resp = admin.do(http.MethodPost, "/profiles", RegisterRequest{Email: "x@example.com", Password: "weak", PrimerNombre: "X", PrimerApellido: "Y", Cedula: "1", Category: "cliente"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The administrator is still signed in after creating an account.
	v = decode[viewBody](t, admin.do(http.MethodGet, "/view", nil))
	assert.Equal(t, "admin", v.View.Role)

	resp = admin.do(http.MethodGet, "/profiles?categoria=estudiante", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]backend.Profile](t, resp), 1)

	name := "Evelyn"
	resp = admin.do(http.MethodPut, "/profiles/"+eva.ID, UpdateProfileRequest{PrimerNombre: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Evelyn", decode[backend.Profile](t, resp).PrimerNombre)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("photo", "eva foto.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req, err := http.NewRequest(http.MethodPost, admin.base+"/profiles/"+eva.ID+"/photo", &form)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err = admin.c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	withPhoto := decode[backend.Profile](t, resp)
	require.NotNil(t, withPhoto.FotoURL)
	assert.True(t, strings.Contains(*withPhoto.FotoURL, "eva_foto.png"))

	resp = admin.do(http.MethodDelete, "/profiles/"+eva.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = admin.do(http.MethodDelete, "/profiles/"+eva.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTimeEntries(t *testing.T) {
	p := newTestPortal(t, nil)
	_, err := p.store.AddUser("leo@example.com", "S3cret!pw", backend.Profile{Rol: "trabajador"})
	require.NoError(t, err)
	c := p.store.AddCase(backend.Case{Titulo: "Divorcio", Estado: backend.CaseOpen})
	leo := p.browser(t)
	leo.login(p, "leo@example.com", "S3cret!pw")

	resp := leo.do(http.MethodPut, "/time-entries", TimeEntryRequest{
		CasoID:      c.ID,
		Descripcion: "Audiencia",
		Fecha:       "2026-10-21",
		Hour:        9,
		Horas:       1.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[backend.TimeEntry](t, resp)
	assert.Equal(t, "09:00:00", saved.HoraInicio)
	assert.Equal(t, "pending", saved.Estado)

	resp = leo.do(http.MethodPut, "/time-entries", TimeEntryRequest{CasoID: c.ID, Fecha: "2026-10-21", Hour: 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = leo.do(http.MethodPatch, "/time-entries/"+saved.ID+"/slot", MoveRequest{Fecha: "2026-10-23", Hour: 14})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = leo.do(http.MethodPatch, "/time-entries/"+saved.ID+"/slot", MoveRequest{Fecha: "2026-10-23", Hour: 23})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = leo.do(http.MethodGet, "/time-entries?week=2026-10-22", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	week := decode[timeentry.WeekEntries](t, resp)
	assert.Equal(t, "2026-10-19", week.Start)
	assert.Equal(t, "2026-10-25", week.End)
	require.Len(t, week.Entries, 1)
	assert.Equal(t, "2026-10-23", week.Entries[0].FechaTarea)
	assert.Equal(t, "14:00:00", week.Entries[0].HoraInicio)

	resp = leo.do(http.MethodDelete, "/time-entries/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLoginIsRateLimited(t *testing.T) {
	limiter := ratelimit.NewMiddleware(&ratelimit.Config{PerIPCapacity: 2, PerIPRefillRate: 1.0 / 60.0}, nil)
	t.Cleanup(limiter.Close)
	p := newTestPortal(t, limiter)
	b := p.browser(t)

	for i := 0; i < 2; i++ {
		resp := b.do(http.MethodPost, "/login/credentials", CredentialsRequest{Email: "ana@example.com", Password: "x"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := b.do(http.MethodPost, "/login/credentials", CredentialsRequest{Email: "ana@example.com", Password: "x"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Only the login endpoints are limited.
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/view", nil).StatusCode)
}

func TestCookielessRequestsAreRateLimited(t *testing.T) {
	limiter := ratelimit.NewMiddleware(&ratelimit.Config{PerIPCapacity: 3, PerIPRefillRate: 1.0 / 60.0}, nil)
	t.Cleanup(limiter.Close)
	p := newTestPortalWith(t, nil, WithShellLimiter(limiter))

	// A client that drops its cookie asks for a new shell every time.
	noJar := &http.Client{Timeout: 5 * time.Second}
	for i := 0; i < 3; i++ {
		resp, err := noJar.Get(p.srv.URL + "/api/portal/view")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, err := noJar.Get(p.srv.URL + "/api/portal/view")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Visitors that already hold a shell are not charged again. The jar's
	// first request is also the IP's fourth, so reset the bucket first.
	limiter.Reset("127.0.0.1")
	b := p.browser(t)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/view", nil).StatusCode)
	}
}

func TestRegistryFullIsUnavailable(t *testing.T) {
	p := newTestPortalWith(t, []portal.RegistryOption{portal.WithMaxShells(1)})

	first := p.browser(t)
	assert.Equal(t, http.StatusOK, first.do(http.MethodGet, "/view", nil).StatusCode)

	resp := p.browser(t).do(http.MethodGet, "/view", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[struct {
		Code string `json:"code"`
	}](t, resp)
	assert.Equal(t, "RESOURCE_UNAVAILABLE", body.Code)

	// The existing visitor keeps its shell.
	assert.Equal(t, http.StatusOK, first.do(http.MethodGet, "/view", nil).StatusCode)
}
