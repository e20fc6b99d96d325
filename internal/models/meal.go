package models

import "time"

// Meal is a single logged eating event. Meals are never modified after insert.
type Meal struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	Weight      float64   `json:"weight"` // grams
	Description string    `json:"description"`
	Calories    float64   `json:"calories"` // kcal
	Protein     float64   `json:"protein"`  // grams
	Carbs       float64   `json:"carbs"`    // grams
	Fat         float64   `json:"fat"`      // grams
	ImageData   *string   `json:"image_data"`
	UserID      int64     `json:"user_id"`
}

// Macros are the four nutrition fields of a meal.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Add accumulates m into the receiver.
func (t *Macros) Add(m Macros) {
	t.Calories += m.Calories
	t.Protein += m.Protein
	t.Carbs += m.Carbs
	t.Fat += m.Fat
}

// Macros returns the meal's nutrition fields.
func (m Meal) Macros() Macros {
	return Macros{Calories: m.Calories, Protein: m.Protein, Carbs: m.Carbs, Fat: m.Fat}
}

// MealHistory holds per-day totals as parallel sequences aligned by index.
type MealHistory struct {
	Dates    []string  `json:"dates"`
	Calories []float64 `json:"calories"`
	Protein  []float64 `json:"protein"`
	Carbs    []float64 `json:"carbs"`
	Fat      []float64 `json:"fat"`
}
