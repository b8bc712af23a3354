package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/http/respond"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

type reader interface {
	Recent(ctx context.Context, practitionerID uuid.UUID, limit int) ([]Event, error)
}

// Handler serves GET /admin/audit/practitioners/{practitionerID}.
type Handler struct {
	events reader
	logger *logging.Logger
}

func NewHandler(events reader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{events: events, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/practitioners/{practitionerID}", h.ListRecent)
	return r
}

func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "practitionerID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid practitioner id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.events.Recent(r.Context(), id, limit)
	if err != nil {
		h.logger.FromContext(r.Context()).Error("failed to read audit trail", "practitioner_id", id, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if events == nil {
		events = []Event{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"events": events})
}
