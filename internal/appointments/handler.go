package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelink-health/agenda-platform/pkg/logging"
)

// Handler exposes the appointment lifecycle over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an appointments HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("appointments: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts appointment endpoints under a chi router.
// Expected to be mounted under /api/v1/groups/{groupID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/agenda", h.agenda)
	r.Route("/appointments/{appointmentID}", func(r chi.Router) {
		r.Get("/instances", h.instances)
		r.Delete("/", h.delete)
		r.Post("/start", h.start)
		r.Post("/end", h.end)
		r.Post("/confirm", h.confirm)
	})
}

func (h *Handler) agenda(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}
	from, to, ok := parseWindow(w, r)
	if !ok {
		return
	}

	instances, err := h.service.Agenda(r.Context(), groupID, from, to)
	if err != nil {
		h.writeError(w, "agenda", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instances": instances,
		"count":     len(instances),
	})
}

func (h *Handler) instances(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	from, to, ok := parseWindow(w, r)
	if !ok {
		return
	}

	instances, err := h.service.Instances(r.Context(), id, from, to)
	if err != nil {
		h.writeError(w, "instances", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instances": instances,
		"count":     len(instances),
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	req := DeleteRequest{
		ID:        id,
		Confirmed: r.URL.Query().Get("confirm") == "true",
	}
	if raw := r.URL.Query().Get("instance_date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid instance_date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		req.InstanceDate = &d
	}

	res, err := h.service.Delete(r.Context(), req)
	if err != nil {
		h.writeError(w, "delete", err)
		return
	}
	if res.NeedsConfirmation {
		// Nothing was committed; the client must repeat with confirm=true.
		writeJSON(w, http.StatusConflict, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	app, err := h.service.Start(r.Context(), id)
	if err != nil {
		var notStartable *NotStartableError
		if errors.As(err, &notStartable) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":               "consultation cannot start yet",
				"minutes_until_start": notStartable.MinutesUntilStart,
			})
			return
		}
		h.writeError(w, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	app, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.writeError(w, "end", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	app, err := h.service.ConfirmRealized(r.Context(), id)
	if err != nil {
		h.writeError(w, "confirm", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidWindow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidInstanceDate):
		http.Error(w, "instance date is not an occurrence of this appointment", http.StatusBadRequest)
	case errors.Is(err, ErrNotTeleconsultation):
		http.Error(w, "appointment is not a teleconsultation", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, "invalid state transition", http.StatusConflict)
	case errors.Is(err, ErrVersionConflict):
		http.Error(w, "appointment was modified concurrently, reload and retry", http.StatusConflict)
	case errors.Is(err, ErrStoreUnavailable):
		http.Error(w, "temporarily unavailable, retry shortly", http.StatusServiceUnavailable)
	default:
		h.logger.Error("appointments handler: "+op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// parseWindow reads the start/end query params, defaulting to the
// coming 90 days when absent.
func parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	start := DateOnly(now)
	end := start.AddDate(0, 0, 90)

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid start, want YYYY-MM-DD", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid end, want YYYY-MM-DD", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	return start, end, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
