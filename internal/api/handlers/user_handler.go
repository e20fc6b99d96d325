package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/mealsnap-be/internal/common"
	"github.com/isdelr/mealsnap-be/internal/services"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUserPayload defines the structure for user creation requests.
type CreateUserPayload struct {
	Username string `json:"username"`
}

// List handles retrieving all users ordered by username.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "List users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// Create handles new user creation.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.Username)
	switch {
	case errors.Is(err, common.ErrValidation):
		respondError(w, http.StatusBadRequest, "Username is required")
		return
	case errors.Is(err, common.ErrAlreadyExists):
		log.Info().Str("username", payload.Username).Msg("Rejected duplicate username")
		respondError(w, http.StatusBadRequest, "Username already exists")
		return
	case err != nil:
		respondServiceError(w, r, err, "Create user")
		return
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User created")
	respondJSON(w, http.StatusCreated, user)
}
