package availability

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/cache"
	"github.com/jdavido74/medical-pro/internal/events"
	"github.com/jdavido74/medical-pro/internal/http/respond"
	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

// Repository is the persistence the handler needs.
type Repository interface {
	Weekly(ctx context.Context, practitionerID uuid.UUID) (scheduling.WeeklyAvailability, error)
	SaveDay(ctx context.Context, practitionerID uuid.UUID, weekday scheduling.Weekday, day scheduling.DayAvailability) error
	SaveWeekly(ctx context.Context, practitionerID uuid.UUID, week scheduling.WeeklyAvailability) error
}

// EventAppender records a change for asynchronous fan-out.
type EventAppender interface {
	Append(ctx context.Context, aggregate, eventType string, payload any) error
}

// Handler exposes availability edit operations for one practitioner.
type Handler struct {
	repo   Repository
	cache  *cache.Cache
	events EventAppender
	logger *logging.Logger
}

// NewHandler builds the handler. c and events may be nil.
func NewHandler(repo Repository, c *cache.Cache, events EventAppender, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, cache: c, events: events, logger: logger}
}

// Routes is mounted under /admin/practitioners.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/{practitionerID}/availability", func(r chi.Router) {
		r.Get("/", h.GetWeekly)
		r.Put("/", h.ReplaceWeekly)
		r.Post("/template/{name}", h.ApplyTemplate)
		r.Put("/{weekday}/enabled", h.SetDayEnabled)
		r.Post("/{weekday}/windows", h.AddWindow)
		r.Put("/{weekday}/windows/{index}", h.UpdateWindow)
		r.Delete("/{weekday}/windows/{index}", h.RemoveWindow)
	})
	return r
}

// ListTemplates returns the template names.
// GET /v1/availability/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{"templates": scheduling.TemplateNames()})
}

func practitionerParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "practitionerID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid practitioner id")
		return uuid.Nil, false
	}
	return id, true
}

func weekdayParam(w http.ResponseWriter, r *http.Request) (scheduling.Weekday, bool) {
	wd, err := scheduling.ParseWeekday(chi.URLParam(r, "weekday"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "unknown weekday")
		return "", false
	}
	return wd, true
}

// GetWeekly returns the practitioner's week.
// GET /admin/practitioners/{practitionerID}/availability
func (h *Handler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	id, ok := practitionerParam(w, r)
	if !ok {
		return
	}
	week, err := h.repo.Weekly(r.Context(), id)
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to load availability", "practitioner_id", id, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, week)
}

// ReplaceWeekly overwrites all seven days.
// PUT /admin/practitioners/{practitionerID}/availability
func (h *Handler) ReplaceWeekly(w http.ResponseWriter, r *http.Request) {
	id, ok := practitionerParam(w, r)
	if !ok {
		return
	}
	var week scheduling.WeeklyAvailability
	if err := respond.Decode(r, &week); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := week.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.saveWeek(w, r, id, week)
}

// ApplyTemplate replaces the week with a named template.
// POST /admin/practitioners/{practitionerID}/availability/template/{name}
func (h *Handler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := practitionerParam(w, r)
	if !ok {
		return
	}
	week, err := scheduling.Template(chi.URLParam(r, "name"))
	if err != nil {
		respond.Error(w, http.StatusNotFound, "unknown template")
		return
	}
	h.saveWeek(w, r, id, week)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetDayEnabled toggles a day.
// PUT /admin/practitioners/{practitionerID}/availability/{weekday}/enabled
func (h *Handler) SetDayEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := respond.Decode(r, &req); err != nil || req.Enabled == nil {
		respond.Error(w, http.StatusBadRequest, "enabled (bool) required")
		return
	}
	h.editDay(w, r, func(week scheduling.WeeklyAvailability, wd scheduling.Weekday) error {
		return week.SetDayEnabled(wd, *req.Enabled)
	})
}

// AddWindow appends a time window to a day.
// POST /admin/practitioners/{practitionerID}/availability/{weekday}/windows
func (h *Handler) AddWindow(w http.ResponseWriter, r *http.Request) {
	var win scheduling.TimeWindow
	if err := respond.Decode(r, &win); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.editDay(w, r, func(week scheduling.WeeklyAvailability, wd scheduling.Weekday) error {
		return week.AddWindow(wd, win)
	})
}

// UpdateWindow replaces the window at index.
// PUT /admin/practitioners/{practitionerID}/availability/{weekday}/windows/{index}
func (h *Handler) UpdateWindow(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid window index")
		return
	}
	var win scheduling.TimeWindow
	if err := respond.Decode(r, &win); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.editDay(w, r, func(week scheduling.WeeklyAvailability, wd scheduling.Weekday) error {
		return week.UpdateWindow(wd, index, win)
	})
}

// RemoveWindow deletes the window at index.
// DELETE /admin/practitioners/{practitionerID}/availability/{weekday}/windows/{index}
func (h *Handler) RemoveWindow(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid window index")
		return
	}
	h.editDay(w, r, func(week scheduling.WeeklyAvailability, wd scheduling.Weekday) error {
		return week.RemoveWindow(wd, index)
	})
}

// editDay loads the week, applies edit to one day and saves that day.
func (h *Handler) editDay(w http.ResponseWriter, r *http.Request, edit func(scheduling.WeeklyAvailability, scheduling.Weekday) error) {
	id, ok := practitionerParam(w, r)
	if !ok {
		return
	}
	wd, ok := weekdayParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	week, err := h.repo.Weekly(ctx, id)
	if err != nil {
		h.logger.FromContext(ctx).Error("failed to load availability", "practitioner_id", id, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := edit(week, wd); err != nil {
		switch {
		case errors.Is(err, scheduling.ErrWindowIndex):
			respond.Error(w, http.StatusNotFound, err.Error())
		default:
			respond.Error(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if err := h.repo.SaveDay(ctx, id, wd, week[wd]); err != nil {
		h.logger.FromContext(ctx).Error("failed to save availability", "practitioner_id", id, "weekday", wd, "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to save availability")
		return
	}
	h.changed(ctx, id)
	respond.JSON(w, http.StatusOK, week[wd])
}

func (h *Handler) saveWeek(w http.ResponseWriter, r *http.Request, id uuid.UUID, week scheduling.WeeklyAvailability) {
	ctx := r.Context()
	if err := h.repo.SaveWeekly(ctx, id, week); err != nil {
		h.logger.FromContext(ctx).Error("failed to save availability", "practitioner_id", id, "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to save availability")
		return
	}
	h.changed(ctx, id)
	respond.JSON(w, http.StatusOK, week)
}

func (h *Handler) changed(ctx context.Context, id uuid.UUID) {
	InvalidatePractitioner(h.cache, id)
	if h.events == nil {
		return
	}
	if err := h.events.Append(ctx, "practitioner", events.TypeAvailabilityUpdated, events.ScheduleChange{PractitionerID: id}); err != nil {
		h.logger.FromContext(ctx).Warn("availability change event not recorded", "practitioner_id", id, "error", err)
	}
}
