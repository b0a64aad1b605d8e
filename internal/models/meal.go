// internal/models/meal.go
package models

import (
	"time"
)

// Product is one food item within a meal. Nil WeightGrams or Calories means the
// value is unknown, which is different from an explicit zero.
type Product struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	WeightGrams *int   `json:"weight_g,omitempty"`
	Calories    *int   `json:"calories,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type Meal struct {
	ID            string    `json:"id,omitempty"`
	Products      []Product `json:"products"`
	TotalCalories int       `json:"total_calories"`
	Timestamp     time.Time `json:"timestamp"`
	Note          string    `json:"note,omitempty"`
}

// MealRecord is a persisted meal as returned by history queries.
type MealRecord struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	MealTime      time.Time     `json:"meal_time"`
	TotalCalories int           `json:"total_calories"`
	Note          string        `json:"note,omitempty"`
	Products      []MealProduct `json:"products"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type MealProduct struct {
	ID          string `json:"id"`
	MealID      string `json:"meal_id"`
	ProductName string `json:"product_name"`
	WeightGrams *int   `json:"weight_g,omitempty"`
	Calories    *int   `json:"calories,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// MealUpdate carries the fields a persisted meal may change. Nil fields are left
// untouched; replacing Products recomputes the total.
type MealUpdate struct {
	Note     *string    `json:"note,omitempty"`
	MealTime *time.Time `json:"meal_time,omitempty"`
	Products []Product  `json:"products,omitempty"`
}

// IntPtr is a convenience for building optional weights and calories.
func IntPtr(v int) *int {
	return &v
}
