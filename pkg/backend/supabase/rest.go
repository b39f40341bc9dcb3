package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tendant/simple-portal/pkg/backend"
)

const (
	tableProfiles    = "profiles"
	tableCases       = "cases"
	tableTimeEntries = "time_entries"
)

// Rest is the PostgREST side of a visitor's handle.
type Rest struct {
	project *Project
	auth    *Client
}

func (r *Rest) query(ctx context.Context, method, table string, q url.Values, body any, prefer string, out any) error {
	req := request{
		method: method,
		path:   "/rest/v1/" + table,
		query:  q,
		body:   body,
		token:  r.auth.accessToken(),
	}
	if prefer != "" {
		req.headers = map[string]string{"Prefer": prefer}
	}
	return r.project.do(ctx, req, out)
}

func eq(v string) string {
	return "eq." + v
}

func (r *Rest) FetchRole(ctx context.Context, userID string) (string, error) {
	var rows []struct {
		Rol *string `json:"rol"`
	}
	q := url.Values{"select": {"rol"}, "id": {eq(userID)}, "limit": {"1"}}
	if err := r.query(ctx, http.MethodGet, tableProfiles, q, nil, "", &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].Rol == nil {
		return "", nil
	}
	return *rows[0].Rol, nil
}

func (r *Rest) FetchProfile(ctx context.Context, userID string) (*backend.Profile, error) {
	var rows []backend.Profile
	q := url.Values{"select": {"*"}, "id": {eq(userID)}, "limit": {"1"}}
	if err := r.query(ctx, http.MethodGet, tableProfiles, q, nil, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}
	return &rows[0], nil
}

func (r *Rest) ListProfiles(ctx context.Context, category string) ([]backend.Profile, error) {
	q := url.Values{"select": {"*"}, "order": {"primer_apellido.asc"}}
	if category != "" {
		q.Set("categoria_usuario", eq(category))
	}
	rows := []backend.Profile{}
	if err := r.query(ctx, http.MethodGet, tableProfiles, q, nil, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Rest) UpdateProfile(ctx context.Context, userID string, update backend.ProfileUpdate) (*backend.Profile, error) {
	var rows []backend.Profile
	q := url.Values{"id": {eq(userID)}}
	if err := r.query(ctx, http.MethodPatch, tableProfiles, q, update, "return=representation", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, backend.ErrNotFound
	}
	return &rows[0], nil
}

func (r *Rest) DeleteProfile(ctx context.Context, userID string) error {
	var rows []backend.Profile
	q := url.Values{"id": {eq(userID)}}
	if err := r.query(ctx, http.MethodDelete, tableProfiles, q, nil, "return=representation", &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (r *Rest) ListCases(ctx context.Context) ([]backend.Case, error) {
	rows := []backend.Case{}
	q := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	if err := r.query(ctx, http.MethodGet, tableCases, q, nil, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Rest) ListTimeEntries(ctx context.Context, from, to string) ([]backend.TimeEntry, error) {
	rows := []backend.TimeEntry{}
	q := url.Values{
		"select":      {"*"},
		"fecha_tarea": {"gte." + from, "lte." + to},
		"order":       {"fecha_tarea.asc,hora_inicio.asc"},
	}
	if err := r.query(ctx, http.MethodGet, tableTimeEntries, q, nil, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Rest) UpsertTimeEntry(ctx context.Context, entry backend.TimeEntry) (*backend.TimeEntry, error) {
	var rows []backend.TimeEntry
	err := r.query(ctx, http.MethodPost, tableTimeEntries, nil, entry, "resolution=merge-duplicates,return=representation", &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &entry, nil
	}
	return &rows[0], nil
}

func (r *Rest) MoveTimeEntry(ctx context.Context, id, date, startTime string) error {
	var rows []backend.TimeEntry
	q := url.Values{"id": {eq(id)}}
	body := map[string]string{"fecha_tarea": date, "hora_inicio": startTime}
	if err := r.query(ctx, http.MethodPatch, tableTimeEntries, q, body, "return=representation", &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (r *Rest) DeleteTimeEntry(ctx context.Context, id string) error {
	var rows []backend.TimeEntry
	q := url.Values{"id": {eq(id)}}
	if err := r.query(ctx, http.MethodDelete, tableTimeEntries, q, nil, "return=representation", &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// Storage is the object storage side of a visitor's handle.
type Storage struct {
	project *Project
	auth    *Client
}

func (s *Storage) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error) {
	var out struct {
		Key string `json:"Key"`
	}
	err := s.project.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/" + bucket + "/" + strings.TrimLeft(path, "/"),
		raw:    body,
		token:  s.auth.accessToken(),
		headers: map[string]string{
			"Content-Type": contentType,
			"x-upsert":     "true",
		},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Key == "" {
		out.Key = bucket + "/" + path
	}
	return out.Key, nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	return s.project.endpoint("/storage/v1/object/public/"+bucket+"/"+strings.TrimLeft(path, "/"), nil)
}
