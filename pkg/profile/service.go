package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/tendant/simple-portal/pkg/backend"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
	"github.com/tendant/simple-portal/pkg/notification"
)

// Account categories an administrator can register.
const (
	CategoryLawyer  = "abogado"
	CategoryStudent = "estudiante"
	CategoryClient  = "cliente"
)

// roleForCategory maps a registration category to the stored role tag.
var roleForCategory = map[string]string{
	CategoryLawyer:  "trabajador",
	CategoryStudent: "trabajador",
	CategoryClient:  "cliente",
}

// ProfileInserter is implemented by data stores that do not create the
// profile row themselves when an account signs up.
type ProfileInserter interface {
	InsertProfile(ctx context.Context, p backend.Profile) error
}

// Notifier sends notices. *notification.NotificationManager satisfies it.
type Notifier interface {
	Send(noticeType notification.NoticeType, data notification.NotificationData) error
}

// ProfileService reads and maintains the profiles table on behalf of one
// visitor. Row-level permissions are enforced by the data store.
type ProfileService struct {
	data      backend.DataStore
	files     backend.FileStore
	registrar backend.Connector
	policy    PasswordPolicyChecker
	notifier  Notifier
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*ProfileService)

// WithRegistrar supplies the connector used to create accounts on a
// throw-away client, leaving the caller's session untouched.
func WithRegistrar(c backend.Connector) Option {
	return func(s *ProfileService) {
		s.registrar = c
	}
}

func WithPasswordPolicy(p PasswordPolicyChecker) Option {
	return func(s *ProfileService) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithNotifier sends a welcome notice to every registered account.
func WithNotifier(n Notifier) Option {
	return func(s *ProfileService) {
		s.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *ProfileService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ProfileService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewProfileService(h backend.Handle, opts ...Option) *ProfileService {
	s := &ProfileService{
		data:   h.Data,
		files:  h.Files,
		policy: NewDefaultPasswordPolicyChecker(nil),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProfileService) GetPasswordPolicy() *PasswordPolicy {
	return s.policy.GetPolicy()
}

func (s *ProfileService) Fetch(ctx context.Context, userID string) (*backend.Profile, error) {
	p, err := s.data.FetchProfile(ctx, userID)
	if err != nil {
		return nil, apperrors.FromBackend(err, "profile")
	}
	return p, nil
}

// List returns profiles filtered by categoria_usuario; an empty category
// lists everyone.
func (s *ProfileService) List(ctx context.Context, category string) ([]backend.Profile, error) {
	profiles, err := s.data.ListProfiles(ctx, category)
	if err != nil {
		return nil, apperrors.FromBackend(err, "profiles")
	}
	return profiles, nil
}

func (s *ProfileService) Update(ctx context.Context, userID string, update backend.ProfileUpdate) (*backend.Profile, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("id", "is required")
	}
	p, err := s.data.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, apperrors.FromBackend(err, "profile")
	}
	s.logger.Info("profile updated", "user_id", userID)
	return p, nil
}

func (s *ProfileService) Delete(ctx context.Context, userID string) error {
	if err := s.data.DeleteProfile(ctx, userID); err != nil {
		return apperrors.FromBackend(err, "profile")
	}
	s.logger.Info("profile deleted", "user_id", userID)
	return nil
}

// Photo is an uploaded profile picture.
type Photo struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// StorePhoto uploads a photo to the profile bucket and returns its public URL.
func (s *ProfileService) StorePhoto(ctx context.Context, photo Photo) (string, error) {
	if photo.Body == nil {
		return "", apperrors.InvalidInput("photo", "is required")
	}
	name := strings.ReplaceAll(path.Base(photo.Filename), " ", "_")
	if name == "." || name == "/" {
		name = "photo"
	}
	key := fmt.Sprintf("profile_%d_%s", s.now().UnixMilli(), name)

	contentType := photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.files.Upload(ctx, backend.ProfileBucket, key, contentType, photo.Body); err != nil {
		return "", apperrors.FromBackend(err, "photo")
	}
	return s.files.PublicURL(backend.ProfileBucket, key), nil
}

// UploadPhoto stores a photo and points the profile's foto_url at it.
func (s *ProfileService) UploadPhoto(ctx context.Context, userID string, photo Photo) (*backend.Profile, error) {
	url, err := s.StorePhoto(ctx, photo)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, userID, backend.ProfileUpdate{FotoURL: &url})
}

// RegisterParams describes an account created by an administrator.
type RegisterParams struct {
	Email           string
	Password        string
	ConfirmPassword string
	PrimerNombre    string
	SegundoNombre   string
	PrimerApellido  string
	SegundoApellido string
	Cedula          string
	MatriculaNro    string
	Category        string
	Photo           *Photo
}

func (p RegisterParams) validate() error {
	missing := map[string]interface{}{}
	for field, v := range map[string]string{
		"email":           p.Email,
		"password":        p.Password,
		"primer_nombre":   p.PrimerNombre,
		"primer_apellido": p.PrimerApellido,
		"cedula":          p.Cedula,
	} {
		if strings.TrimSpace(v) == "" {
			missing[field] = "is required"
		}
	}
	if p.Category == CategoryLawyer && strings.TrimSpace(p.MatriculaNro) == "" {
		missing["matricula_nro"] = "is required for lawyers"
	}
	if len(missing) > 0 {
		return apperrors.ValidationFailed(missing)
	}
	return nil
}

// Register creates an account and fills in its profile. A photo that cannot be
// uploaded is skipped; the account is still created.
func (s *ProfileService) Register(ctx context.Context, params RegisterParams) (*backend.Profile, error) {
	rol, ok := roleForCategory[params.Category]
	if !ok {
		return nil, apperrors.InvalidInput("categoria_usuario", "must be abogado, estudiante or cliente")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.ConfirmPassword != "" && params.ConfirmPassword != params.Password {
		return nil, apperrors.InvalidInput("confirm_password", "does not match")
	}
	if err := s.policy.CheckPasswordComplexity(params.Password); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePasswordComplexity, err.Error())
	}
	if s.registrar == nil {
		return nil, apperrors.Internal("account registration is not configured")
	}

	var fotoURL *string
	if params.Photo != nil {
		url, err := s.StorePhoto(ctx, *params.Photo)
		if err != nil {
			s.logger.Warn("profile photo skipped", "email", params.Email, "err", err)
		} else {
			fotoURL = &url
		}
	}

	user, err := s.registrar.Connect().Auth.SignUp(ctx, strings.TrimSpace(params.Email), params.Password)
	if err != nil {
		s.logger.Error("sign-up failed", "email", params.Email, "err", err)
		return nil, apperrors.FromBackend(err, "account")
	}

	category := params.Category
	update := backend.ProfileUpdate{
		PrimerNombre:     &params.PrimerNombre,
		SegundoNombre:    optional(params.SegundoNombre),
		PrimerApellido:   &params.PrimerApellido,
		SegundoApellido:  optional(params.SegundoApellido),
		Cedula:           &params.Cedula,
		Email:            &user.Email,
		FotoURL:          fotoURL,
		Rol:              &rol,
		CategoriaUsuario: &category,
	}
	if params.Category == CategoryLawyer {
		update.MatriculaNro = &params.MatriculaNro
	}

	if ins, ok := s.data.(ProfileInserter); ok {
		if err := ins.InsertProfile(ctx, backend.Profile{ID: user.ID, Email: user.Email}); err != nil {
			return nil, apperrors.FromBackend(err, "profile")
		}
	}
	p, err := s.data.UpdateProfile(ctx, user.ID, update)
	if err != nil {
		s.logger.Error("profile update after sign-up failed", "user_id", user.ID, "err", err)
		return nil, apperrors.FromBackend(err, "profile")
	}
	s.logger.Info("account registered", "user_id", user.ID, "category", params.Category)

	if s.notifier != nil {
		err := s.notifier.Send(notification.WelcomeNotice, notification.NotificationData{
			To:   p.Email,
			Data: map[string]string{"Email": p.Email, "Name": p.PrimerNombre},
		})
		if err != nil {
			s.logger.Warn("welcome notice not sent", "user_id", user.ID, "err", err)
		}
	}
	return p, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
