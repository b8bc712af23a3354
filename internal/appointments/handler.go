package appointments

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/http/respond"
	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

// Planner computes slot grids. *scheduling.Planner implements it.
type Planner interface {
	DaySlots(ctx context.Context, q scheduling.Query) (*scheduling.DayPlan, error)
	ValidateBooking(ctx context.Context, req scheduling.BookingRequest) (scheduling.Validation, *scheduling.DayPlan, error)
}

// Booker is the write path. *Service implements it.
type Booker interface {
	Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	List(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, scope scheduling.Scope) ([]scheduling.Appointment, error)
	Book(ctx context.Context, in BookInput) (*scheduling.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput) (*scheduling.Appointment, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, to scheduling.Status) (*scheduling.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler serves the public slot and appointment endpoints.
type Handler struct {
	planner Planner
	service Booker
	logger  *logging.Logger
}

func NewHandler(planner Planner, service Booker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{planner: planner, service: service, logger: logger}
}

// Routes is mounted under /v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/practitioners/{practitionerID}/slots", h.GetSlots)
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/validate", h.Validate)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Reschedule)
		r.Patch("/{id}/status", h.ChangeStatus)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

// GetSlots returns the annotated slot grid for a practitioner day.
// GET /v1/practitioners/{practitionerID}/slots?date=&duration=&exclude=&scope=
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID, err := uuid.Parse(chi.URLParam(r, "practitionerID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid practitioner id")
		return
	}
	q := r.URL.Query()
	day, err := scheduling.ParseDate(q.Get("date"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	query := scheduling.Query{PractitionerID: practitionerID, Date: day}
	if raw := q.Get("duration"); raw != "" {
		if query.DurationMinutes, err = strconv.Atoi(raw); err != nil || query.DurationMinutes <= 0 {
			respond.Error(w, http.StatusBadRequest, "duration must be a positive number of minutes")
			return
		}
	}
	if raw := q.Get("exclude"); raw != "" {
		if query.ExcludeAppointmentID, err = uuid.Parse(raw); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid exclude id")
			return
		}
	}
	switch scope := scheduling.Scope(q.Get("scope")); scope {
	case "", scheduling.ScopeAll, scheduling.ScopeVisible:
		query.Scope = scope
	default:
		respond.Error(w, http.StatusBadRequest, "scope must be all or visible")
		return
	}

	plan, err := h.planner.DaySlots(r.Context(), query)
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to compute slots", "practitioner_id", practitionerID, "date", day, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, plan)
}

// Validate checks a proposed chain without booking it. An invalid chain is
// a normal 200 response.
// POST /v1/appointments/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req scheduling.BookingRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PractitionerID == uuid.Nil || req.Date.IsZero() {
		respond.Error(w, http.StatusBadRequest, "practitionerId and date are required")
		return
	}
	v, _, err := h.planner.ValidateBooking(r.Context(), req)
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to validate booking", "practitioner_id", req.PractitionerID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, v)
}

// Create books a new appointment.
// POST /v1/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	appt, err := h.service.Book(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, appt)
}

// List returns a practitioner's appointments for one day.
// GET /v1/appointments?practitionerId=&date=&scope=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	practitionerID, err := uuid.Parse(q.Get("practitionerId"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "practitionerId is required")
		return
	}
	day, err := scheduling.ParseDate(q.Get("date"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	scope := scheduling.ScopeAll
	if q.Get("scope") == string(scheduling.ScopeVisible) {
		scope = scheduling.ScopeVisible
	}
	appts, err := h.service.List(r.Context(), practitionerID, day, scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// Get returns one appointment.
// GET /v1/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// Reschedule moves an appointment.
// PUT /v1/appointments/{id}
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in RescheduleInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	appt, err := h.service.Reschedule(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus applies a lifecycle transition.
// PATCH /v1/appointments/{id}/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := scheduling.ParseStatus(req.Status)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	appt, err := h.service.ChangeStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// Delete soft-deletes an appointment.
// DELETE /v1/appointments/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid appointment id")
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps service errors to status codes. Refused chains carry
// their validation code so clients can pick the right remedy.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *scheduling.ValidationError
	switch {
	case errors.As(err, &verr):
		status := http.StatusConflict
		if verr.Code == scheduling.CodeClinicClosed {
			status = http.StatusUnprocessableEntity
		}
		respond.ErrorCode(w, status, string(verr.Code), verr.Reason)
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		respond.ErrorCode(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, ErrNotEditable):
		respond.ErrorCode(w, http.StatusConflict, "not_editable", err.Error())
	case errors.Is(err, ErrStale):
		respond.ErrorCode(w, http.StatusConflict, "stale_appointment", "the appointment changed while the request was processed; reload and retry")
	case errors.Is(err, ErrLockNotAcquired):
		w.Header().Set("Retry-After", "1")
		respond.ErrorCode(w, http.StatusConflict, "slot_locked", "another booking for this day is in progress")
	default:
		h.logger.FromContext(r.Context()).Error("appointment request failed", "path", r.URL.Path, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
