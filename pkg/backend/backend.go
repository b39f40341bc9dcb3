package backend

import (
	"context"
	"io"
	"time"
)

// Bucket holding profile photos.
const ProfileBucket = "archivos_perfil"

// User is the identity attached to a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the credential issued by the external auth service. Everything
// except the user is opaque to the portal.
type Session struct {
	ID           string    `json:"-"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Key identifies the session for per-session caches. It falls back to the
// user ID when the token carries no session identifier.
func (s *Session) Key() string {
	if s == nil {
		return ""
	}
	if s.ID != "" {
		return s.ID
	}
	return s.User.ID
}

// EventKind classifies auth state notifications.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// AuthEvent is delivered to subscribers on every auth state change. Session is
// nil for EventSignedOut.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// OTPOptions controls one-time code requests.
type OTPOptions struct {
	// CreateUser allows the service to create an account for an unknown email.
	CreateUser bool
}

// AuthClient is the authentication side of the external service, scoped to a
// single visitor.
type AuthClient interface {
	GetSession(ctx context.Context) (*Session, error)
	Subscribe(fn func(AuthEvent)) *Subscription
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	RequestOneTimeCode(ctx context.Context, email string, opts OTPOptions) error
	VerifyOneTimeCode(ctx context.Context, email, code string) (*Session, error)
	// SignUp registers an account without touching the caller's own session.
	SignUp(ctx context.Context, email, password string) (User, error)
}

// RoleFetcher reads the role tag of a user's profile. An empty tag with a nil
// error means no role is assigned.
type RoleFetcher interface {
	FetchRole(ctx context.Context, userID string) (string, error)
}

// Profile is a row of the profiles table.
type Profile struct {
	ID               string  `json:"id"`
	PrimerNombre     string  `json:"primer_nombre"`
	SegundoNombre    *string `json:"segundo_nombre"`
	PrimerApellido   string  `json:"primer_apellido"`
	SegundoApellido  *string `json:"segundo_apellido"`
	Cedula           string  `json:"cedula"`
	MatriculaNro     *string `json:"matricula_nro"`
	Email            string  `json:"email"`
	FotoURL          *string `json:"foto_url"`
	Rol              string  `json:"rol"`
	CategoriaUsuario *string `json:"categoria_usuario"`
}

// ProfileUpdate lists the columns to change; nil fields are left untouched.
type ProfileUpdate struct {
	PrimerNombre     *string `json:"primer_nombre,omitempty"`
	SegundoNombre    *string `json:"segundo_nombre,omitempty"`
	PrimerApellido   *string `json:"primer_apellido,omitempty"`
	SegundoApellido  *string `json:"segundo_apellido,omitempty"`
	Cedula           *string `json:"cedula,omitempty"`
	MatriculaNro     *string `json:"matricula_nro,omitempty"`
	Email            *string `json:"email,omitempty"`
	FotoURL          *string `json:"foto_url,omitempty"`
	Rol              *string `json:"rol,omitempty"`
	CategoriaUsuario *string `json:"categoria_usuario,omitempty"`
}

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	CaseOpen    CaseStatus = "Open"
	CasePending CaseStatus = "Pending"
	CaseClosed  CaseStatus = "Closed"
)

// Case is a row of the cases table.
type Case struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Titulo      string     `json:"titulo"`
	Descripcion string     `json:"descripcion"`
	Estado      CaseStatus `json:"estado"`
	ClienteID   string     `json:"cliente_id"`
}

// TimeEntry is a row of the time_entries table. FechaTarea is a calendar date
// (YYYY-MM-DD) and HoraInicio a slot start (HH:00:00).
type TimeEntry struct {
	ID                  string   `json:"id,omitempty"`
	PerfilID            string   `json:"perfil_id"`
	CasoID              string   `json:"caso_id"`
	DescripcionTarea    string   `json:"descripcion_tarea"`
	FechaTarea          string   `json:"fecha_tarea"`
	HoraInicio          string   `json:"hora_inicio"`
	Horas               float64  `json:"horas"`
	TarifaPersonalizada *float64 `json:"tarifa_personalizada"`
	Estado              string   `json:"estado"`
}

// DataStore is the table side of the external service.
type DataStore interface {
	RoleFetcher
	FetchProfile(ctx context.Context, userID string) (*Profile, error)
	ListProfiles(ctx context.Context, category string) ([]Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error)
	DeleteProfile(ctx context.Context, userID string) error
	ListCases(ctx context.Context) ([]Case, error)
	ListTimeEntries(ctx context.Context, from, to string) ([]TimeEntry, error)
	UpsertTimeEntry(ctx context.Context, entry TimeEntry) (*TimeEntry, error)
	MoveTimeEntry(ctx context.Context, id, date, startTime string) error
	DeleteTimeEntry(ctx context.Context, id string) error
}

// FileStore is the object storage side of the external service.
type FileStore interface {
	Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error)
	PublicURL(bucket, path string) string
}

// Handle bundles the collaborators one visitor talks to.
type Handle struct {
	Auth  AuthClient
	Data  DataStore
	Files FileStore
}

// Connector hands out a fresh handle per visitor. Implementations share the
// process-wide configuration and transport.
type Connector interface {
	Connect() Handle
}
