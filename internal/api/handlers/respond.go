package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/mealsnap-be/internal/common"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response body")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondServiceError maps err onto the API's error taxonomy. Client errors
// and upstream failures are reported with their message; anything else is
// logged and hidden behind a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	status := common.StatusCode(err)
	switch {
	case status == http.StatusBadRequest:
		log.Debug().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg(action + " rejected")
		respondError(w, status, common.Message(err))
	case common.IsUpstreamError(err):
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg(action + " failed")
		respondError(w, status, err.Error())
	default:
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg(action + " failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
