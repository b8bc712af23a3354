package clinic

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jdavido74/medical-pro/internal/cache"
	"github.com/jdavido74/medical-pro/internal/http/respond"
	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

// SettingsRepository is the persistence the handler needs.
type SettingsRepository interface {
	Get(ctx context.Context) (*scheduling.ClinicSettings, error)
	Set(ctx context.Context, settings *scheduling.ClinicSettings) error
}

// Handler provides HTTP endpoints for clinic calendar management.
type Handler struct {
	store  SettingsRepository
	cache  *cache.Cache
	logger *logging.Logger
}

// NewHandler creates a clinic settings handler. c may be nil.
func NewHandler(store SettingsRepository, c *cache.Cache, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, cache: c, logger: logger}
}

// Routes returns a chi router with clinic admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	r.Post("/closed-dates", h.AddClosedDate)
	r.Delete("/closed-dates/{date}", h.RemoveClosedDate)
	return r
}

// load returns stored settings or the defaults when none exist yet.
func (h *Handler) load(ctx context.Context) (*scheduling.ClinicSettings, error) {
	settings, err := h.store.Get(ctx)
	if errors.Is(err, scheduling.ErrSettingsNotFound) {
		return scheduling.DefaultClinicSettings(), nil
	}
	return settings, err
}

func (h *Handler) save(ctx context.Context, settings *scheduling.ClinicSettings) error {
	if err := h.store.Set(ctx, settings); err != nil {
		return err
	}
	if h.cache != nil {
		h.cache.Invalidate(CacheKey)
	}
	return nil
}

// GetSettings returns the clinic calendar.
// GET /admin/clinic/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.load(r.Context())
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to get clinic settings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, settings)
}

// UpdateSettingsRequest replaces the parts that are present.
type UpdateSettingsRequest struct {
	OperatingHours map[scheduling.Weekday]scheduling.DayStatus `json:"operatingHours,omitempty"`
	ClosedDates    []scheduling.ClosedDate                     `json:"closedDates,omitempty"`
}

// UpdateSettings replaces operating hours and/or closed dates.
// PUT /admin/clinic/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	settings, err := h.load(r.Context())
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to get clinic settings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if req.OperatingHours != nil {
		settings.OperatingHours = req.OperatingHours
	}
	if req.ClosedDates != nil {
		settings.ClosedDates = []scheduling.ClosedDate{}
		for _, cd := range req.ClosedDates {
			settings.AddClosedDate(cd)
		}
	}
	if err := settings.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.save(r.Context(), settings); err != nil {
		h.logger.FromContext(r.Context()).Error("failed to save clinic settings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	h.logger.FromContext(r.Context()).Info("clinic settings updated", "closed_dates", len(settings.ClosedDates))
	respond.JSON(w, http.StatusOK, settings)
}

// AddClosedDate closes the clinic on one date.
// POST /admin/clinic/closed-dates
func (h *Handler) AddClosedDate(w http.ResponseWriter, r *http.Request) {
	var cd scheduling.ClosedDate
	if err := respond.Decode(r, &cd); err != nil || cd.Date.IsZero() {
		respond.Error(w, http.StatusBadRequest, "date (YYYY-MM-DD) required")
		return
	}

	settings, err := h.load(r.Context())
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to get clinic settings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	settings.AddClosedDate(cd)
	if err := h.save(r.Context(), settings); err != nil {
		h.logger.FromContext(r.Context()).Error("failed to save closed date", "date", cd.Date.String(), "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	respond.JSON(w, http.StatusCreated, settings)
}

// RemoveClosedDate reopens a date.
// DELETE /admin/clinic/closed-dates/{date}
func (h *Handler) RemoveClosedDate(w http.ResponseWriter, r *http.Request) {
	d, err := scheduling.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	settings, err := h.load(r.Context())
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to get clinic settings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !settings.RemoveClosedDate(d) {
		respond.Error(w, http.StatusNotFound, "date is not closed")
		return
	}
	if err := h.save(r.Context(), settings); err != nil {
		h.logger.FromContext(r.Context()).Error("failed to remove closed date", "date", d.String(), "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
