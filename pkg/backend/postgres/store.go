package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-portal/pkg/backend"
)

const (
	profileColumns = `id::text, primer_nombre, segundo_nombre, primer_apellido, segundo_apellido,
		cedula, matricula_nro, email, foto_url, coalesce(rol, ''), categoria_usuario`
	caseColumns  = `id::text, created_at, titulo, descripcion, estado, coalesce(cliente_id::text, '')`
	entryColumns = `id::text, perfil_id::text, caso_id::text, descripcion_tarea, fecha_tarea::text,
		hora_inicio::text, horas::float8, tarifa_personalizada::float8, estado`
)

// Postgres error codes mapped to service errors.
const (
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	invalidTextRep      = "22P02"
)

// Store is a backend.DataStore reading the portal tables directly.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	s := &Store{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) FetchRole(ctx context.Context, userID string) (string, error) {
	var rol *string
	err := s.pool.QueryRow(ctx, `SELECT rol FROM profiles WHERE id = $1`, userID).Scan(&rol)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.translate("fetch role", err)
	}
	if rol == nil {
		return "", nil
	}
	return *rol, nil
}

func (s *Store) FetchProfile(ctx context.Context, userID string) (*backend.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, s.translate("fetch profile", err)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context, category string) ([]backend.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	var args []any
	if category != "" {
		query += ` WHERE categoria_usuario = $1`
		args = append(args, category)
	}
	query += ` ORDER BY primer_apellido`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.translate("list profiles", err)
	}
	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (backend.Profile, error) {
		p, err := scanProfile(row)
		if err != nil {
			return backend.Profile{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, s.translate("list profiles", err)
	}
	if profiles == nil {
		profiles = []backend.Profile{}
	}
	return profiles, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, update backend.ProfileUpdate) (*backend.Profile, error) {
	sets, args := profileAssignments(update)
	if len(sets) == 0 {
		return s.FetchProfile(ctx, userID)
	}
	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE profiles SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), profileColumns)

	p, err := scanProfile(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, s.translate("update profile", err)
	}
	return p, nil
}

func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, userID)
	if err != nil {
		return s.translate("delete profile", err)
	}
	if tag.RowsAffected() == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (s *Store) ListCases(ctx context.Context) ([]backend.Case, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases ORDER BY created_at DESC`)
	if err != nil {
		return nil, s.translate("list cases", err)
	}
	cases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (backend.Case, error) {
		var c backend.Case
		err := row.Scan(&c.ID, &c.CreatedAt, &c.Titulo, &c.Descripcion, &c.Estado, &c.ClienteID)
		return c, err
	})
	if err != nil {
		return nil, s.translate("list cases", err)
	}
	if cases == nil {
		cases = []backend.Case{}
	}
	return cases, nil
}

// CreateCase inserts a case. It is used to seed deployments; the portal
// itself never creates cases.
func (s *Store) CreateCase(ctx context.Context, c backend.Case) (*backend.Case, error) {
	if c.Estado == "" {
		c.Estado = backend.CaseOpen
	}
	var cliente *string
	if c.ClienteID != "" {
		cliente = &c.ClienteID
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO cases (titulo, descripcion, estado, cliente_id) VALUES ($1, $2, $3, $4) RETURNING `+caseColumns,
		c.Titulo, c.Descripcion, string(c.Estado), cliente)
	var out backend.Case
	if err := row.Scan(&out.ID, &out.CreatedAt, &out.Titulo, &out.Descripcion, &out.Estado, &out.ClienteID); err != nil {
		return nil, s.translate("create case", err)
	}
	return &out, nil
}

func (s *Store) ListTimeEntries(ctx context.Context, from, to string) ([]backend.TimeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE fecha_tarea >= $1::date AND fecha_tarea <= $2::date
		 ORDER BY fecha_tarea, hora_inicio`, from, to)
	if err != nil {
		return nil, s.translate("list time entries", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (backend.TimeEntry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, s.translate("list time entries", err)
	}
	if entries == nil {
		entries = []backend.TimeEntry{}
	}
	return entries, nil
}

func (s *Store) UpsertTimeEntry(ctx context.Context, entry backend.TimeEntry) (*backend.TimeEntry, error) {
	args := []any{
		entry.PerfilID, entry.CasoID, entry.DescripcionTarea, entry.FechaTarea,
		entry.HoraInicio, entry.Horas, entry.TarifaPersonalizada, entry.Estado,
	}
	var query string
	if entry.ID == "" {
		query = `INSERT INTO time_entries
			(perfil_id, caso_id, descripcion_tarea, fecha_tarea, hora_inicio, horas, tarifa_personalizada, estado)
			VALUES ($1, $2, $3, $4::date, $5::time, $6, $7, $8)
			RETURNING ` + entryColumns
	} else {
		args = append(args, entry.ID)
		query = `INSERT INTO time_entries
			(perfil_id, caso_id, descripcion_tarea, fecha_tarea, hora_inicio, horas, tarifa_personalizada, estado, id)
			VALUES ($1, $2, $3, $4::date, $5::time, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				perfil_id = EXCLUDED.perfil_id,
				caso_id = EXCLUDED.caso_id,
				descripcion_tarea = EXCLUDED.descripcion_tarea,
				fecha_tarea = EXCLUDED.fecha_tarea,
				hora_inicio = EXCLUDED.hora_inicio,
				horas = EXCLUDED.horas,
				tarifa_personalizada = EXCLUDED.tarifa_personalizada,
				estado = EXCLUDED.estado
			RETURNING ` + entryColumns
	}

	saved, err := scanEntry(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, s.translate("upsert time entry", err)
	}
	return &saved, nil
}

func (s *Store) MoveTimeEntry(ctx context.Context, id, date, startTime string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE time_entries SET fecha_tarea = $1::date, hora_inicio = $2::time WHERE id = $3`,
		date, startTime, id)
	if err != nil {
		return s.translate("move time entry", err)
	}
	if tag.RowsAffected() == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTimeEntry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return s.translate("delete time entry", err)
	}
	if tag.RowsAffected() == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// InsertProfile creates the profile row for a freshly signed-up account.
func (s *Store) InsertProfile(ctx context.Context, p backend.Profile) error {
	var rol *string
	if p.Rol != "" {
		rol = &p.Rol
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, primer_nombre, segundo_nombre, primer_apellido, segundo_apellido,
			cedula, matricula_nro, email, foto_url, rol, categoria_usuario)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.PrimerNombre, p.SegundoNombre, p.PrimerApellido, p.SegundoApellido,
		p.Cedula, p.MatriculaNro, p.Email, p.FotoURL, rol, p.CategoriaUsuario)
	if err != nil {
		return s.translate("insert profile", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*backend.Profile, error) {
	var p backend.Profile
	err := row.Scan(&p.ID, &p.PrimerNombre, &p.SegundoNombre, &p.PrimerApellido, &p.SegundoApellido,
		&p.Cedula, &p.MatriculaNro, &p.Email, &p.FotoURL, &p.Rol, &p.CategoriaUsuario)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanEntry(row pgx.Row) (backend.TimeEntry, error) {
	var e backend.TimeEntry
	err := row.Scan(&e.ID, &e.PerfilID, &e.CasoID, &e.DescripcionTarea, &e.FechaTarea,
		&e.HoraInicio, &e.Horas, &e.TarifaPersonalizada, &e.Estado)
	return e, err
}

func profileAssignments(u backend.ProfileUpdate) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("primer_nombre", u.PrimerNombre)
	add("segundo_nombre", u.SegundoNombre)
	add("primer_apellido", u.PrimerApellido)
	add("segundo_apellido", u.SegundoApellido)
	add("cedula", u.Cedula)
	add("matricula_nro", u.MatriculaNro)
	add("email", u.Email)
	add("foto_url", u.FotoURL)
	add("rol", u.Rol)
	add("categoria_usuario", u.CategoriaUsuario)
	return sets, args
}

// translate maps driver errors onto the service error vocabulary so callers
// handle every data store the same way.
func (s *Store) translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return backend.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolation:
			return &backend.Error{Status: http.StatusConflict, Code: pgErr.Code, Message: pgErr.Message}
		case checkViolation, invalidTextRep:
			return &backend.Error{Status: http.StatusBadRequest, Code: pgErr.Code, Message: pgErr.Message}
		}
	}
	s.logger.Error("postgres query failed", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, err)
}
