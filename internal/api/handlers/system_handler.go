package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger reports whether the datastore is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves the UI shell and the health probe.
type SystemHandler struct {
	db    Pinger
	index []byte
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(db Pinger, index []byte) *SystemHandler {
	return &SystemHandler{db: db, index: index}
}

// Index serves the static UI page.
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(h.index)
}

// Health pings the datastore.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "database unreachable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
