// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calorie-chat/internal/config"
	"calorie-chat/internal/models"
)

var ErrNotFound = errors.New("meal not found")

// MealQuery filters history. Zero From/To are unbounded; From is inclusive and
// To exclusive. Limit <= 0 returns every match.
type MealQuery struct {
	UserID      string
	From        time.Time
	To          time.Time
	Limit       int
	MinCalories *int
	MaxCalories *int
}

// Store is the persistence gateway for confirmed meals.
type Store interface {
	SaveMeal(ctx context.Context, userID string, meal models.Meal) (*models.MealRecord, error)
	GetMeals(ctx context.Context, q MealQuery) ([]*models.MealRecord, error)
	UpdateMeal(ctx context.Context, mealID string, upd models.MealUpdate) (*models.MealRecord, error)
	Close() error
}

// Open builds the store selected by configuration.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		return NewSQLiteStorage(cfg.DBPath)
	case config.StorePostgres:
		return NewPostgresStorage(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// DayRange returns [start of day, start of next day) for a YYYY-MM-DD date.
func DayRange(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// mealTime is the time a confirmed meal is filed under.
func mealTime(m models.Meal) time.Time {
	if m.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return m.Timestamp.UTC()
}
