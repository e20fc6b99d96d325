package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/mealsnap-be/internal/common"
	"github.com/isdelr/mealsnap-be/internal/models"
	"github.com/isdelr/mealsnap-be/internal/services"
)

// MealHandler handles HTTP requests for logging and reading meals.
type MealHandler struct {
	service services.MealServiceProvider
	now     func() time.Time
}

// NewMealHandler creates a new MealHandler.
func NewMealHandler(service services.MealServiceProvider) *MealHandler {
	return &MealHandler{service: service, now: time.Now}
}

// SaveMealPayload defines the structure for /save_meal requests.
// Pointer fields distinguish an absent value from zero.
type SaveMealPayload struct {
	UserID      *int64   `json:"user_id"`
	Weight      *float64 `json:"weight"`
	Description string   `json:"description"`
	Calories    *float64 `json:"calories"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fat         *float64 `json:"fat"`
	ImageData   *string  `json:"image_data"`
	// Date is optional; RFC 3339 or YYYY-MM-DD. Defaults to the time of the request.
	Date string `json:"date"`
}

// SaveMealResponse is returned when a meal has been stored.
type SaveMealResponse struct {
	Success bool        `json:"success"`
	Meal    models.Meal `json:"meal"`
}

func (p SaveMealPayload) toMeal() (models.Meal, error) {
	if p.UserID == nil || *p.UserID <= 0 {
		return models.Meal{}, errors.New("user_id is required")
	}
	required := []struct {
		name  string
		value *float64
	}{
		{"weight", p.Weight},
		{"calories", p.Calories},
		{"protein", p.Protein},
		{"carbs", p.Carbs},
		{"fat", p.Fat},
	}
	for _, f := range required {
		if f.value == nil {
			return models.Meal{}, fmt.Errorf("%s is required", f.name)
		}
	}

	meal := models.Meal{
		UserID:      *p.UserID,
		Weight:      *p.Weight,
		Description: p.Description,
		Calories:    *p.Calories,
		Protein:     *p.Protein,
		Carbs:       *p.Carbs,
		Fat:         *p.Fat,
		ImageData:   p.ImageData,
	}
	if p.Date != "" {
		date, err := parseMealDate(p.Date)
		if err != nil {
			return models.Meal{}, err
		}
		meal.Date = date
	}
	return meal, nil
}

func parseMealDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(services.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected RFC 3339 or YYYY-MM-DD", s)
}

// Save handles persisting an analyzed (and possibly edited) meal.
func (h *MealHandler) Save(w http.ResponseWriter, r *http.Request) {
	var payload SaveMealPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	meal, err := payload.toMeal()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.service.CreateMeal(r.Context(), meal)
	switch {
	case errors.Is(err, common.ErrNotFound):
		respondError(w, http.StatusBadRequest, "User not found")
		return
	case err != nil:
		respondServiceError(w, r, err, "Save meal")
		return
	}

	log.Info().
		Int64("meal_id", saved.ID).
		Int64("user_id", saved.UserID).
		Float64("calories", saved.Calories).
		Msg("Meal saved")

	respondJSON(w, http.StatusCreated, SaveMealResponse{Success: true, Meal: saved})
}

// List handles retrieving a user's meals for one calendar day.
func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	day := services.TruncateDay(h.now())
	if s := r.URL.Query().Get("date"); s != "" {
		parsed, err := services.ParseDay(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	meals, err := h.service.ListMealsByDate(r.Context(), userID, day)
	if err != nil {
		respondServiceError(w, r, err, "List meals")
		return
	}
	respondJSON(w, http.StatusOK, meals)
}

// History handles per-day nutrition totals over an inclusive date range.
func (h *MealHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		respondError(w, http.StatusBadRequest, "start and end are required")
		return
	}
	start, err := services.ParseDay(q.Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD")
		return
	}
	end, err := services.ParseDay(q.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD")
		return
	}

	history, err := h.service.GetHistory(r.Context(), userID, start, end)
	if err != nil {
		respondServiceError(w, r, err, "Meal history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if raw == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "user_id must be a positive integer")
		return 0, false
	}
	return id, true
}
