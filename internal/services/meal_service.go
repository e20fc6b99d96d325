package services

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/mealsnap-be/internal/common"
	"github.com/isdelr/mealsnap-be/internal/database"
	"github.com/isdelr/mealsnap-be/internal/models"
)

const (
	// DateLayout is the calendar-day format used on the wire.
	DateLayout = "2006-01-02"
	// MaxHistoryDays bounds a single /meal_history request.
	MaxHistoryDays = 366
)

// MealServiceProvider defines the interface for meal services.
type MealServiceProvider interface {
	CreateMeal(ctx context.Context, meal models.Meal) (models.Meal, error)
	ListMealsByDate(ctx context.Context, userID int64, day time.Time) ([]models.Meal, error)
	ListMealsInRange(ctx context.Context, userID int64, from, to time.Time) ([]models.Meal, error)
	GetHistory(ctx context.Context, userID int64, start, end time.Time) (models.MealHistory, error)
}

// MealService stores meals and computes per-day totals on read.
type MealService struct {
	db  *database.DB
	now func() time.Time
}

// NewMealService creates a new MealService.
func NewMealService(db *database.DB) *MealService {
	return &MealService{db: db, now: time.Now}
}

// TruncateDay returns midnight UTC of t's UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string as a UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	day, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, common.ErrValidation)
	}
	return day, nil
}

func validateMeal(meal models.Meal) error {
	switch {
	case meal.UserID <= 0:
		return fmt.Errorf("user_id is required: %w", common.ErrValidation)
	case meal.Weight <= 0:
		return fmt.Errorf("weight must be positive: %w", common.ErrValidation)
	case meal.Calories < 0, meal.Protein < 0, meal.Carbs < 0, meal.Fat < 0:
		return fmt.Errorf("nutrition values must not be negative: %w", common.ErrValidation)
	}
	return nil
}

// CreateMeal inserts a single meal row. A user_id that matches no user is
// rejected by the foreign key and reported as common.ErrNotFound.
func (s *MealService) CreateMeal(ctx context.Context, meal models.Meal) (models.Meal, error) {
	if err := validateMeal(meal); err != nil {
		return models.Meal{}, err
	}

	if meal.Date.IsZero() {
		meal.Date = s.now()
	}
	meal.Date = meal.Date.UTC().Truncate(time.Microsecond)

	query := s.db.Rebind(`
		INSERT INTO meal (date, weight, description, calories, protein, carbs, fat, image_data, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := s.db.QueryRowContext(ctx, query,
		meal.Date, meal.Weight, meal.Description,
		meal.Calories, meal.Protein, meal.Carbs, meal.Fat,
		meal.ImageData, meal.UserID,
	).Scan(&meal.ID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.Meal{}, fmt.Errorf("user %d: %w", meal.UserID, common.ErrNotFound)
		}
		return models.Meal{}, fmt.Errorf("db error: %w", err)
	}
	return meal, nil
}

// ListMealsByDate returns a user's meals on one UTC calendar day, oldest first.
func (s *MealService) ListMealsByDate(ctx context.Context, userID int64, day time.Time) ([]models.Meal, error) {
	from := TruncateDay(day)
	return s.ListMealsInRange(ctx, userID, from, from.AddDate(0, 0, 1))
}

// ListMealsInRange returns a user's meals with from <= date < to, oldest first.
func (s *MealService) ListMealsInRange(ctx context.Context, userID int64, from, to time.Time) ([]models.Meal, error) {
	query := s.db.Rebind(`
		SELECT id, date, weight, description, calories, protein, carbs, fat, image_data, user_id
		FROM meal
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date, id`)

	rows, err := s.db.QueryContext(ctx, query, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	meals := []models.Meal{}
	for rows.Next() {
		var (
			m           models.Meal
			description *string
		)
		if err := rows.Scan(&m.ID, &m.Date, &m.Weight, &description,
			&m.Calories, &m.Protein, &m.Carbs, &m.Fat, &m.ImageData, &m.UserID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if description != nil {
			m.Description = *description
		}
		m.Date = m.Date.UTC()
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

// GetHistory sums each day's macros over the inclusive range [start, end].
// Every day of the range gets an entry, zero when nothing was logged.
func (s *MealService) GetHistory(ctx context.Context, userID int64, start, end time.Time) (models.MealHistory, error) {
	start, end = TruncateDay(start), TruncateDay(end)
	if end.Before(start) {
		return models.MealHistory{}, fmt.Errorf("end date is before start date: %w", common.ErrValidation)
	}

	days := int(end.Sub(start).Hours()/24) + 1
	if days > MaxHistoryDays {
		return models.MealHistory{}, fmt.Errorf("range of %d days exceeds %d: %w", days, MaxHistoryDays, common.ErrValidation)
	}

	meals, err := s.ListMealsInRange(ctx, userID, start, end.AddDate(0, 0, 1))
	if err != nil {
		return models.MealHistory{}, err
	}

	return aggregateByDay(meals, start, days), nil
}

func aggregateByDay(meals []models.Meal, start time.Time, days int) models.MealHistory {
	totals := make([]models.Macros, days)
	index := make(map[string]int, days)

	history := models.MealHistory{Dates: make([]string, days)}
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format(DateLayout)
		history.Dates[i] = key
		index[key] = i
	}

	for _, m := range meals {
		i, ok := index[TruncateDay(m.Date).Format(DateLayout)]
		if !ok {
			continue
		}
		totals[i].Add(m.Macros())
	}

	history.Calories = make([]float64, days)
	history.Protein = make([]float64, days)
	history.Carbs = make([]float64, days)
	history.Fat = make([]float64, days)
	for i, t := range totals {
		history.Calories[i] = t.Calories
		history.Protein[i] = t.Protein
		history.Carbs[i] = t.Carbs
		history.Fat[i] = t.Fat
	}
	return history
}
