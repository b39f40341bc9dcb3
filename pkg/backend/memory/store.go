package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/notification"
)

// CodeSender delivers one-time codes. *notification.NotificationManager
// satisfies it.
type CodeSender interface {
	Send(noticeType notification.NoticeType, data notification.NotificationData) error
}

type Config struct {
	JWTSecret  string
	Issuer     string
	SessionTTL time.Duration
	// CodeTTL is the validity window of emailed codes.
	CodeTTL time.Duration
	// PublicBaseURL prefixes public file URLs.
	PublicBaseURL string
}

func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = "simple-portal-memory"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = time.Hour
	}
	if c.CodeTTL < time.Minute {
		c.CodeTTL = 5 * time.Minute
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:4090"
	}
	return c
}

type account struct {
	user       backend.User
	hash       []byte
	totpSecret string
}

// Store emulates the auth service, tables and file storage in process.
// Accounts and rows are shared; each visitor gets its own Client.
type Store struct {
	cfg    Config
	codes  CodeSender
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account // by lower-cased email
	pending  map[string]time.Time
	profiles map[string]backend.Profile
	cases    map[string]backend.Case
	entries  map[string]backend.TimeEntry
	files    map[string][]byte
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for codes and sessions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(cfg Config, codes CodeSender, opts ...Option) *Store {
	s := &Store{
		cfg:      cfg.withDefaults(),
		codes:    codes,
		logger:   slog.Default(),
		now:      time.Now,
		accounts: make(map[string]*account),
		pending:  make(map[string]time.Time),
		profiles: make(map[string]backend.Profile),
		cases:    make(map[string]backend.Case),
		entries:  make(map[string]backend.TimeEntry),
		files:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect returns a handle with a fresh per-visitor auth client.
func (s *Store) Connect() backend.Handle {
	return backend.Handle{Auth: s.NewClient(), Data: s, Files: s}
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) createAccount(email, password string) (backend.User, error) {
	email = normEmail(email)
	if email == "" || password == "" {
		return backend.User{}, &backend.Error{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Email and password are required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return backend.User{}, fmt.Errorf("hash password: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.cfg.Issuer, AccountName: email})
	if err != nil {
		return backend.User{}, fmt.Errorf("generate code secret: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		return backend.User{}, &backend.Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	user := backend.User{ID: uuid.New().String(), Email: email}
	s.accounts[email] = &account{user: user, hash: hash, totpSecret: key.Secret()}
	// Mirrors the on-signup trigger that creates an empty profile row.
	s.profiles[user.ID] = backend.Profile{ID: user.ID, Email: email}
	return user, nil
}

// AddUser seeds an account with a profile.
func (s *Store) AddUser(email, password string, profile backend.Profile) (backend.User, error) {
	user, err := s.createAccount(email, password)
	if err != nil {
		return backend.User{}, err
	}
	profile.ID = user.ID
	profile.Email = user.Email

	s.mu.Lock()
	s.profiles[user.ID] = profile
	s.mu.Unlock()
	return user, nil
}

// AddCase seeds a case. A missing ID or creation time is filled in.
func (s *Store) AddCase(c backend.Case) backend.Case {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.cases[c.ID] = c
	s.mu.Unlock()
	return c
}

func notFound(table, id string) error {
	return &backend.Error{Status: http.StatusNotFound, Code: "not_found", Message: fmt.Sprintf("%s %s not found", table, id)}
}

func (s *Store) FetchRole(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID].Rol, nil
}

func (s *Store) FetchProfile(ctx context.Context, userID string) (*backend.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, notFound("profile", userID)
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context, category string) ([]backend.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]backend.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if category != "" && (p.CategoriaUsuario == nil || *p.CategoriaUsuario != category) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PrimerApellido != out[j].PrimerApellido {
			return out[i].PrimerApellido < out[j].PrimerApellido
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, u backend.ProfileUpdate) (*backend.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, notFound("profile", userID)
	}

	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setOpt := func(dst **string, v *string) {
		if v != nil {
			val := *v
			*dst = &val
		}
	}
	setStr(&p.PrimerNombre, u.PrimerNombre)
	setOpt(&p.SegundoNombre, u.SegundoNombre)
	setStr(&p.PrimerApellido, u.PrimerApellido)
	setOpt(&p.SegundoApellido, u.SegundoApellido)
	setStr(&p.Cedula, u.Cedula)
	setOpt(&p.MatriculaNro, u.MatriculaNro)
	setStr(&p.Email, u.Email)
	setOpt(&p.FotoURL, u.FotoURL)
	setStr(&p.Rol, u.Rol)
	setOpt(&p.CategoriaUsuario, u.CategoriaUsuario)

	s.profiles[userID] = p
	return &p, nil
}

func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		return notFound("profile", userID)
	}
	delete(s.profiles, userID)
	return nil
}

func (s *Store) ListCases(ctx context.Context) ([]backend.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]backend.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ListTimeEntries(ctx context.Context, from, to string) ([]backend.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]backend.TimeEntry, 0)
	for _, e := range s.entries {
		// ISO dates compare correctly as strings.
		if e.FechaTarea >= from && e.FechaTarea <= to {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FechaTarea != out[j].FechaTarea {
			return out[i].FechaTarea < out[j].FechaTarea
		}
		return out[i].HoraInicio < out[j].HoraInicio
	})
	return out, nil
}

func (s *Store) UpsertTimeEntry(ctx context.Context, entry backend.TimeEntry) (*backend.TimeEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[entry.CasoID]; !ok {
		return nil, &backend.Error{Status: http.StatusConflict, Code: "23503", Message: "case does not exist"}
	}
	s.entries[entry.ID] = entry
	return &entry, nil
}

func (s *Store) MoveTimeEntry(ctx context.Context, id, date, startTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return notFound("time entry", id)
	}
	e.FechaTarea = date
	e.HoraInicio = startTime
	s.entries[id] = e
	return nil
}

func (s *Store) DeleteTimeEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return notFound("time entry", id)
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	s.mu.Lock()
	s.files[bucket+"/"+path] = buf.Bytes()
	s.mu.Unlock()
	return bucket + "/" + path, nil
}

func (s *Store) PublicURL(bucket, path string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + path
}

// File returns an uploaded object.
func (s *Store) File(bucket, path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[bucket+"/"+path]
	return b, ok
}
