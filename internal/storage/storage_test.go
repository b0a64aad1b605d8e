package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calorie-chat/internal/models"
)

func setupSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "meals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMeal(at time.Time, kcal ...int) models.Meal {
	m := models.Meal{Timestamp: at, Note: "обед"}
	for i, k := range kcal {
		m.Products = append(m.Products, models.Product{
			ID:          "temp_x",
			Name:        []string{"рис", "курица", "салат"}[i%3],
			WeightGrams: models.IntPtr(100 + i),
			Calories:    models.IntPtr(k),
		})
	}
	m.Products = append(m.Products, models.Product{Name: "соус", Notes: "unknown"})
	return models.RecomputeTotal(m)
}

// exerciseStore runs the same contract checks against any Store implementation.
func exerciseStore(t *testing.T, s Store, user string) {
	ctx := context.Background()
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	breakfast, err := s.SaveMeal(ctx, user, testMeal(day.Add(8*time.Hour), 150, 90))
	require.NoError(t, err)
	lunch, err := s.SaveMeal(ctx, user, testMeal(day.Add(13*time.Hour), 400, 200, 50))
	require.NoError(t, err)
	_, err = s.SaveMeal(ctx, user, testMeal(day.Add(-time.Hour), 700))
	require.NoError(t, err)
	_, err = s.SaveMeal(ctx, user+"-other", testMeal(day.Add(9*time.Hour), 1))
	require.NoError(t, err)

	t.Run("save returns persisted meal", func(t *testing.T) {
		assert.NotEmpty(t, breakfast.ID)
		assert.Equal(t, user, breakfast.UserID)
		assert.Equal(t, 240, breakfast.TotalCalories)
		assert.Equal(t, day.Add(8*time.Hour), breakfast.MealTime)
		require.Len(t, breakfast.Products, 3)
		assert.Equal(t, "рис", breakfast.Products[0].ProductName)
		assert.NotEqual(t, "temp_x", breakfast.Products[0].ID)
		assert.Equal(t, 100, *breakfast.Products[0].WeightGrams)
		assert.Nil(t, breakfast.Products[2].Calories)
		assert.Nil(t, breakfast.Products[2].WeightGrams)
	})

	t.Run("query newest first", func(t *testing.T) {
		meals, err := s.GetMeals(ctx, MealQuery{UserID: user})
		require.NoError(t, err)
		require.Len(t, meals, 3)
		assert.Equal(t, lunch.ID, meals[0].ID)
		assert.Equal(t, breakfast.ID, meals[1].ID)
	})

	t.Run("day window", func(t *testing.T) {
		from, to, err := DayRange("2024-01-15", time.UTC)
		require.NoError(t, err)
		meals, err := s.GetMeals(ctx, MealQuery{UserID: user, From: from, To: to})
		require.NoError(t, err)
		assert.Len(t, meals, 2)
	})

	t.Run("limit and calorie filters", func(t *testing.T) {
		meals, err := s.GetMeals(ctx, MealQuery{UserID: user, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, meals, 1)

		meals, err = s.GetMeals(ctx, MealQuery{UserID: user, MinCalories: models.IntPtr(600)})
		require.NoError(t, err)
		require.Len(t, meals, 2)

		meals, err = s.GetMeals(ctx, MealQuery{UserID: user, MaxCalories: models.IntPtr(300)})
		require.NoError(t, err)
		require.Len(t, meals, 1)
		assert.Equal(t, breakfast.ID, meals[0].ID)
	})

	t.Run("update note and products", func(t *testing.T) {
		note := "завтрак дома"
		updated, err := s.UpdateMeal(ctx, breakfast.ID, models.MealUpdate{
			Note:     &note,
			Products: []models.Product{{Name: "овсянка", Calories: models.IntPtr(150)}},
		})
		require.NoError(t, err)
		assert.Equal(t, note, updated.Note)
		assert.Equal(t, 150, updated.TotalCalories)
		require.Len(t, updated.Products, 1)
		assert.Equal(t, "овсянка", updated.Products[0].ProductName)
	})

	t.Run("update moves meal time", func(t *testing.T) {
		at := day.Add(10 * time.Hour)
		updated, err := s.UpdateMeal(ctx, lunch.ID, models.MealUpdate{MealTime: &at})
		require.NoError(t, err)
		assert.Equal(t, at, updated.MealTime)
		assert.Len(t, updated.Products, 4, "products untouched")
	})

	t.Run("update missing meal", func(t *testing.T) {
		_, err := s.UpdateMeal(ctx, "does-not-exist", models.MealUpdate{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteStorage(t *testing.T) {
	exerciseStore(t, setupSQLite(t), "user-1")
}

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("MEAL_LOG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEAL_LOG_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStorage(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	exerciseStore(t, s, "pg-"+time.Now().Format("150405.000000"))
}

func TestDayRange(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	from, to, err := DayRange("2024-01-15", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-14T21:00:00Z", from.UTC().Format(time.RFC3339))
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	_, _, err = DayRange("15.01.2024", loc)
	assert.Error(t, err)
}
