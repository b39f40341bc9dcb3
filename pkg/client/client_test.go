package client

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/backend/memory"
	"github.com/tendant/simple-portal/pkg/loginflow"
	"github.com/tendant/simple-portal/pkg/portal"
	"github.com/tendant/simple-portal/pkg/role"
)

func TestVisitorToken(t *testing.T) {
	ja := jwtauth.New("HS256", []byte("test-cookie-secret"), nil)

	var got string
	h := Verifier(ja, "portal_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ShellID(r.Context())
	}))

	token, err := IssueVisitorToken(ja, "shell-42", time.Now().Add(time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/view", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "shell-42", got)

	req = httptest.NewRequest(http.MethodGet, "/view", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "shell-42", got)

	t.Run("expired", func(t *testing.T) {
		expired, err := IssueVisitorToken(ja, "shell-42", time.Now().Add(-time.Minute))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/view", nil)
		req.AddCookie(&http.Cookie{Name: "portal_session", Value: expired})
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Empty(t, got)
	})

	t.Run("other secret", func(t *testing.T) {
		forged, err := IssueVisitorToken(jwtauth.New("HS256", []byte("other"), nil), "shell-1", time.Now().Add(time.Hour))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/view", nil)
		req.AddCookie(&http.Cookie{Name: "portal_session", Value: forged})
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Empty(t, got)
	})
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		view   *portal.View
		roles  []role.Role
		status int
	}{
		{"no visitor", nil, nil, http.StatusUnauthorized},
		{"login", &portal.View{Kind: portal.ViewLogin}, nil, http.StatusUnauthorized},
		{"loading", &portal.View{Kind: portal.ViewLoading}, nil, http.StatusUnauthorized},
		{"access denied", &portal.View{Kind: portal.ViewAccessDenied}, nil, http.StatusForbidden},
		{"any dashboard", &portal.View{Kind: portal.ViewDashboard, Role: role.Client}, nil, http.StatusNoContent},
		{"admin only", &portal.View{Kind: portal.ViewDashboard, Role: role.Staff}, []role.Role{role.Admin}, http.StatusForbidden},
		{"staff allowed", &portal.View{Kind: portal.ViewDashboard, Role: role.Staff}, []role.Role{role.Admin, role.Staff}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cases", nil)
			if tt.view != nil {
				req = req.WithContext(NewContext(req.Context(), &Visitor{View: *tt.view}))
			}
			rec := httptest.NewRecorder()
			RequireRole(tt.roles...)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status >= 400 {
				assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			}
		})
	}
}

func TestVisitorLogValue(t *testing.T) {
	store := memory.NewStore(memory.Config{JWTSecret: "s"}, nil)
	shell := portal.NewShell("shell-7", store.Connect())
	t.Cleanup(shell.Close)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	v := &Visitor{Shell: shell, View: portal.View{
		Kind:  portal.ViewDashboard,
		Role:  role.Client,
		Login: loginflow.State{Email: "ana@example.com"},
		User:  &backend.User{ID: "u-1", Email: "ana@example.com"},
	}}
	logger.Info("request", "visitor", v)

	out := buf.String()
	assert.Contains(t, out, "visitor.shell=shell-7")
	assert.Contains(t, out, "visitor.user=u-1")
	assert.NotContains(t, out, "ana@example.com")

	buf.Reset()
	logger.Info("request", "visitor", (*Visitor)(nil))
	assert.Contains(t, buf.String(), "visitor=none")
}
