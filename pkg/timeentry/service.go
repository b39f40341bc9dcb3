package timeentry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-portal/pkg/backend"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
)

const StatusPending = "pending"

var (
	ErrInvalidSlot = errors.New("hour is outside the bookable slots")
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
)

// EntryInput is a time entry as submitted from the weekly grid.
type EntryInput struct {
	ID          string   `json:"id,omitempty"`
	CasoID      string   `json:"caso_id"`
	Descripcion string   `json:"descripcion_tarea"`
	Fecha       string   `json:"fecha_tarea"`
	Hour        int      `json:"hora"`
	Horas       float64  `json:"horas"`
	Tarifa      *float64 `json:"tarifa_personalizada,omitempty"`
}

// WeekEntries is one week of the billing grid.
type WeekEntries struct {
	Start   string              `json:"start"`
	End     string              `json:"end"`
	Days    []string            `json:"days"`
	Slots   []int               `json:"slots"`
	Entries []backend.TimeEntry `json:"entries"`
}

type TimeEntryService struct {
	data   backend.DataStore
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*TimeEntryService)

func WithClock(now func() time.Time) Option {
	return func(s *TimeEntryService) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *TimeEntryService) { s.logger = logger }
}

func NewTimeEntryService(data backend.DataStore, opts ...Option) *TimeEntryService {
	s := &TimeEntryService{data: data, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListWeek returns the entries of the week containing day. An empty day
// means the current week.
func (s *TimeEntryService) ListWeek(ctx context.Context, day string) (*WeekEntries, error) {
	ref := s.now()
	if day != "" {
		t, err := parseDate(day)
		if err != nil {
			return nil, apperrors.InvalidInput("week", err.Error())
		}
		ref = t
	}
	week := WeekOf(ref)

	entries, err := s.data.ListTimeEntries(ctx, week.From(), week.To())
	if err != nil {
		return nil, apperrors.FromBackend(err, "time entries")
	}
	if entries == nil {
		entries = []backend.TimeEntry{}
	}
	return &WeekEntries{
		Start:   week.From(),
		End:     week.To(),
		Days:    week.Days(),
		Slots:   Slots(),
		Entries: entries,
	}, nil
}

// Save creates or replaces an entry logged by perfilID. Every save puts the
// entry back into pending review.
func (s *TimeEntryService) Save(ctx context.Context, perfilID string, in EntryInput) (*backend.TimeEntry, error) {
	missing := map[string]interface{}{}
	if perfilID == "" {
		missing["perfil_id"] = "is required"
	}
	if in.CasoID == "" {
		missing["caso_id"] = "is required"
	}
	if strings.TrimSpace(in.Descripcion) == "" {
		missing["descripcion_tarea"] = "is required"
	}
	if in.Horas <= 0 {
		missing["horas"] = "must be greater than zero"
	}
	if len(missing) > 0 {
		return nil, apperrors.ValidationFailed(missing)
	}
	if _, err := parseDate(in.Fecha); err != nil {
		return nil, apperrors.InvalidInput("fecha_tarea", err.Error())
	}
	start, err := SlotTime(in.Hour)
	if err != nil {
		return nil, apperrors.InvalidInput("hora", err.Error())
	}

	var rate *float64
	if in.Tarifa != nil && *in.Tarifa > 0 {
		v := *in.Tarifa
		rate = &v
	}

	saved, err := s.data.UpsertTimeEntry(ctx, backend.TimeEntry{
		ID:                  in.ID,
		PerfilID:            perfilID,
		CasoID:              in.CasoID,
		DescripcionTarea:    strings.TrimSpace(in.Descripcion),
		FechaTarea:          in.Fecha,
		HoraInicio:          start,
		Horas:               in.Horas,
		TarifaPersonalizada: rate,
		Estado:              StatusPending,
	})
	if err != nil {
		s.logger.Error("failed to save time entry", "perfil_id", perfilID, "caso_id", in.CasoID, "err", err)
		return nil, apperrors.FromBackend(err, "time entry")
	}
	s.logger.Info("time entry saved", "id", saved.ID, "perfil_id", perfilID, "fecha", in.Fecha, "hora", start)
	return saved, nil
}

// Move places an entry on another day and hour slot.
func (s *TimeEntryService) Move(ctx context.Context, id, date string, hour int) error {
	if id == "" {
		return apperrors.InvalidInput("id", "is required")
	}
	if _, err := parseDate(date); err != nil {
		return apperrors.InvalidInput("fecha_tarea", err.Error())
	}
	start, err := SlotTime(hour)
	if err != nil {
		return apperrors.InvalidInput("hora", err.Error())
	}
	if err := s.data.MoveTimeEntry(ctx, id, date, start); err != nil {
		return apperrors.FromBackend(err, "time entry")
	}
	return nil
}

func (s *TimeEntryService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("id", "is required")
	}
	if err := s.data.DeleteTimeEntry(ctx, id); err != nil {
		return apperrors.FromBackend(err, "time entry")
	}
	return nil
}
