package timeentry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/backend/memory"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
)

func TestWeekOf(t *testing.T) {
	tests := []struct {
		day   string
		start string
		end   string
	}{
		{"2026-10-19", "2026-10-19", "2026-10-25"}, // Monday
		{"2026-10-22", "2026-10-19", "2026-10-25"},
		{"2026-10-25", "2026-10-19", "2026-10-25"}, // Sunday belongs to the week before it
		{"2026-11-01", "2026-10-26", "2026-11-01"},
		{"2027-01-01", "2026-12-28", "2027-01-03"},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			d, err := time.Parse(dateLayout, tt.day)
			require.NoError(t, err)
			w := WeekOf(d)
			assert.Equal(t, tt.start, w.From())
			assert.Equal(t, tt.end, w.To())
			assert.Equal(t, time.Monday, w.Start.Weekday())
			assert.Len(t, w.Days(), 7)
		})
	}

	w := WeekOf(time.Date(2026, 10, 21, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, "2026-10-26", w.Next().From())
	assert.Equal(t, "2026-10-12", w.Prev().From())
}

func TestSlots(t *testing.T) {
	slots := Slots()
	require.Len(t, slots, 17)
	assert.Equal(t, 6, slots[0])
	assert.Equal(t, 22, slots[16])

	s, err := SlotTime(9)
	require.NoError(t, err)
	assert.Equal(t, "09:00:00", s)

	_, err = SlotTime(5)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = SlotTime(23)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func newTestService(t *testing.T) (*TimeEntryService, backend.Case) {
	t.Helper()
	store := memory.NewStore(memory.Config{JWTSecret: "s"}, nil)
	c := store.AddCase(backend.Case{Titulo: "Divorcio", ClienteID: "ana", Estado: backend.CaseOpen})
	svc := NewTimeEntryService(store, WithClock(func() time.Time {
		return time.Date(2026, 10, 22, 10, 0, 0, 0, time.UTC)
	}))
	return svc, c
}

func TestSave(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()
	zero := 0.0

	saved, err := svc.Save(ctx, "staff-1", EntryInput{
		CasoID: c.ID, Descripcion: "  Audiencia ", Fecha: "2026-10-20", Hour: 8, Horas: 1.5, Tarifa: &zero,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "08:00:00", saved.HoraInicio)
	assert.Equal(t, "Audiencia", saved.DescripcionTarea)
	assert.Equal(t, StatusPending, saved.Estado)
	assert.Nil(t, saved.TarifaPersonalizada)

	rate := 120.0
	updated, err := svc.Save(ctx, "staff-1", EntryInput{
		ID: saved.ID, CasoID: c.ID, Descripcion: "Audiencia", Fecha: "2026-10-20", Hour: 8, Horas: 2, Tarifa: &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	require.NotNil(t, updated.TarifaPersonalizada)
	assert.Equal(t, 120.0, *updated.TarifaPersonalizada)

	week, err := svc.ListWeek(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", week.Start)
	assert.Equal(t, "2026-10-25", week.End)
	require.Len(t, week.Entries, 1)
	assert.Equal(t, 2.0, week.Entries[0].Horas)

	other, err := svc.ListWeek(ctx, "2026-10-27")
	require.NoError(t, err)
	assert.Empty(t, other.Entries)
	assert.NotNil(t, other.Entries)
}

func TestSave_Validation(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, "staff-1", EntryInput{Fecha: "2026-10-20", Hour: 8})
	require.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
	details := apperrors.GetDetails(err)
	assert.Contains(t, details, "caso_id")
	assert.Contains(t, details, "descripcion_tarea")
	assert.Contains(t, details, "horas")

	valid := EntryInput{CasoID: c.ID, Descripcion: "x", Fecha: "2026-10-20", Hour: 8, Horas: 1}

	bad := valid
	bad.Horas = -1
	_, err = svc.Save(ctx, "staff-1", bad)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	bad = valid
	bad.Hour = 23
	_, err = svc.Save(ctx, "staff-1", bad)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

	bad = valid
	bad.Fecha = "20/10/2026"
	_, err = svc.Save(ctx, "staff-1", bad)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

	_, err = svc.Save(ctx, "", valid)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	bad = valid
	bad.CasoID = "missing"
	_, err = svc.Save(ctx, "staff-1", bad)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))

	_, err = svc.ListWeek(ctx, "next week")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestMoveAndDelete(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, "staff-1", EntryInput{CasoID: c.ID, Descripcion: "x", Fecha: "2026-10-20", Hour: 8, Horas: 1})
	require.NoError(t, err)

	require.NoError(t, svc.Move(ctx, saved.ID, "2026-10-23", 22))
	week, err := svc.ListWeek(ctx, "2026-10-23")
	require.NoError(t, err)
	require.Len(t, week.Entries, 1)
	assert.Equal(t, "2026-10-23", week.Entries[0].FechaTarea)
	assert.Equal(t, "22:00:00", week.Entries[0].HoraInicio)

	assert.True(t, apperrors.IsCode(svc.Move(ctx, saved.ID, "2026-10-23", 5), apperrors.ErrCodeInvalidInput))
	assert.True(t, apperrors.IsCode(svc.Move(ctx, "", "2026-10-23", 9), apperrors.ErrCodeInvalidInput))

	require.NoError(t, svc.Delete(ctx, saved.ID))
	assert.True(t, apperrors.IsCode(svc.Delete(ctx, saved.ID), apperrors.ErrCodeNotFound))
	assert.True(t, apperrors.IsCode(svc.Move(ctx, saved.ID, "2026-10-23", 9), apperrors.ErrCodeNotFound))
}
