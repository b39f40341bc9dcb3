package api

import (
	"net/http"

	"github.com/ggicci/httpin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/tendant/simple-portal/pkg/cases"
	"github.com/tendant/simple-portal/pkg/client"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
	"github.com/tendant/simple-portal/pkg/timeentry"
)

// ListCases handles GET /cases
func (h *Handle) ListCases(w http.ResponseWriter, r *http.Request) {
	v := visitor(r)
	svc := cases.NewCaseService(v.Shell.Handle().Data, h.logger)
	list, err := svc.List(r.Context(), v.View.Role, userID(v))
	if err != nil {
		h.renderError(w, r, err, "cases")
		return
	}
	render.JSON(w, r, list)
}

func (h *Handle) timeEntries(v *client.Visitor) *timeentry.TimeEntryService {
	return timeentry.NewTimeEntryService(v.Shell.Handle().Data, timeentry.WithLogger(h.logger))
}

// ListWeek handles GET /time-entries?week=YYYY-MM-DD
func (h *Handle) ListWeek(w http.ResponseWriter, r *http.Request) {
	input := r.Context().Value(httpin.Input).(*WeekInput)
	week, err := h.timeEntries(visitor(r)).ListWeek(r.Context(), input.Week)
	if err != nil {
		h.renderError(w, r, err, "time entries")
		return
	}
	render.JSON(w, r, week)
}

// SaveTimeEntry handles PUT /time-entries
func (h *Handle) SaveTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req TimeEntryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		client.RenderError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}
	in := timeentry.EntryInput{}
	copier.Copy(&in, &req)

	v := visitor(r)
	saved, err := h.timeEntries(v).Save(r.Context(), userID(v), in)
	if err != nil {
		h.renderError(w, r, err, "time entry")
		return
	}
	render.JSON(w, r, saved)
}

// MoveTimeEntry handles PATCH /time-entries/{id}/slot
func (h *Handle) MoveTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		client.RenderError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}
	if err := h.timeEntries(visitor(r)).Move(r.Context(), chi.URLParam(r, "id"), req.Fecha, req.Hour); err != nil {
		h.renderError(w, r, err, "time entry")
		return
	}
	render.NoContent(w, r)
}

// DeleteTimeEntry handles DELETE /time-entries/{id}
func (h *Handle) DeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.timeEntries(visitor(r)).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.renderError(w, r, err, "time entry")
		return
	}
	render.NoContent(w, r)
}
