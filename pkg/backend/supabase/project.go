package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-portal/pkg/backend"
)

var ErrMissingConfig = errors.New("supabase url and anon key are required")

type Config struct {
	URL     string
	AnonKey string
	// JWTSecret verifies access tokens when set; otherwise their claims are
	// only decoded.
	JWTSecret string
	Timeout   time.Duration
}

// Project is the process-wide connection to one Supabase project. It is
// created once at startup and hands out per-visitor clients that share its
// HTTP transport.
type Project struct {
	cfg    Config
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

type Option func(*Project)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Project) {
		if c != nil {
			p.http = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Project) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewProject(cfg Config, opts ...Option) (*Project, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, ErrMissingConfig
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	p := &Project{
		cfg:    cfg,
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Connect returns a handle for one visitor. Table and storage requests run
// with that visitor's access token so row-level security applies.
func (p *Project) Connect() backend.Handle {
	c := p.NewClient()
	return backend.Handle{
		Auth:  c,
		Data:  &Rest{project: p, auth: c},
		Files: &Storage{project: p, auth: c},
	}
}

func (p *Project) endpoint(path string, query url.Values) string {
	u := *p.base
	u.Path = p.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	raw     io.Reader
	token   string
	headers map[string]string
}

// do sends a request and decodes a JSON response into out. Non-2xx answers
// become *backend.Error carrying the service's message.
func (p *Project) do(ctx context.Context, r request, out any) error {
	var body io.Reader
	contentType := ""
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, p.endpoint(r.path, r.query), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", p.cfg.AnonKey)
	token := r.token
	if token == "" {
		token = p.cfg.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Warn("supabase request failed", "method", r.method, "path", r.path, "err", err)
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", backend.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := decodeError(resp.StatusCode, payload)
		p.logger.Debug("supabase error response", "method", r.method, "path", r.path, "status", e.Status, "code", e.Code)
		return e
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.path, err)
	}
	return nil
}

// errorBody covers the GoTrue, PostgREST and Storage error shapes.
type errorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(status int, payload []byte) *backend.Error {
	e := &backend.Error{Status: status}
	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		e.Message = strings.TrimSpace(string(payload))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = body.ErrorCode
	if e.Code == "" {
		if s, ok := body.Code.(string); ok {
			e.Code = s
		} else if body.Error != "" {
			e.Code = body.Error
		}
	}
	for _, m := range []string{body.Msg, body.ErrorDescription, body.Message, body.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
