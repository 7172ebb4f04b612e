package groups

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelink-health/agenda-platform/pkg/logging"
)

// Handler exposes group membership reads over HTTP.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a groups HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// ListMembers serves GET /groups/{groupID}/members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return
	}

	members, err := h.store.ListMembers(r.Context(), groupID)
	if err != nil {
		h.logger.Error("groups handler: list members", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"members": members,
		"count":   len(members),
	})
}
