// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"calorie-chat/internal/models"
)

// Times are stored as fixed-width UTC text so range filters compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps pragmas in effect and avoids SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS meals (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        meal_time TEXT NOT NULL,
        total_calories INTEGER NOT NULL DEFAULT 0,
        note TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS meal_products (
        id TEXT PRIMARY KEY,
        meal_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        product_name TEXT NOT NULL,
        weight_g INTEGER,
        calories INTEGER,
        notes TEXT NOT NULL DEFAULT '',
        FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_meals_user_time ON meals(user_id, meal_time);
    CREATE INDEX IF NOT EXISTS idx_meal_products_meal_id ON meal_products(meal_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) SaveMeal(ctx context.Context, userID string, meal models.Meal) (*models.MealRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	mealID := uuid.NewString()

	mealQuery := `
        INSERT INTO meals (id, user_id, meal_time, total_calories, note, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, mealQuery,
		mealID, userID, formatTime(mealTime(meal)), meal.TotalCalories, meal.Note, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meal: %w", err)
	}

	if err := insertProducts(ctx, tx, mealID, meal.Products); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meal: %w", err)
	}
	return s.getMeal(ctx, mealID)
}

func insertProducts(ctx context.Context, tx *sql.Tx, mealID string, products []models.Product) error {
	productQuery := `
        INSERT INTO meal_products (id, meal_id, position, product_name, weight_g, calories, notes)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	for i, p := range products {
		_, err := tx.ExecContext(ctx, productQuery,
			uuid.NewString(), mealID, i, p.Name, nullInt(p.WeightGrams), nullInt(p.Calories), p.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) GetMeals(ctx context.Context, q MealQuery) ([]*models.MealRecord, error) {
	query := `
        SELECT id, user_id, meal_time, total_calories, note, created_at, updated_at
        FROM meals
        WHERE user_id = ?
    `
	args := []interface{}{q.UserID}

	if !q.From.IsZero() {
		query += " AND meal_time >= ?"
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		query += " AND meal_time < ?"
		args = append(args, formatTime(q.To))
	}
	if q.MinCalories != nil {
		query += " AND total_calories >= ?"
		args = append(args, *q.MinCalories)
	}
	if q.MaxCalories != nil {
		query += " AND total_calories <= ?"
		args = append(args, *q.MaxCalories)
	}

	query += " ORDER BY meal_time DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	meals, err := s.queryMeals(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// Products are loaded after the meal rows are closed; the pool has one connection.
	for _, meal := range meals {
		if err := s.loadProductsForMeal(ctx, meal); err != nil {
			return nil, fmt.Errorf("failed to load products for meal %s: %w", meal.ID, err)
		}
	}
	return meals, nil
}

func (s *SQLiteStorage) queryMeals(ctx context.Context, query string, args ...interface{}) ([]*models.MealRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var meals []*models.MealRecord
	for rows.Next() {
		meal := &models.MealRecord{}
		var mealTimeStr, createdAtStr, updatedAtStr string

		err := rows.Scan(
			&meal.ID, &meal.UserID, &mealTimeStr, &meal.TotalCalories,
			&meal.Note, &createdAtStr, &updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}

		if meal.MealTime, err = parseTime(mealTimeStr); err != nil {
			return nil, fmt.Errorf("failed to parse meal_time: %w", err)
		}
		if meal.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if meal.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}

		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read meals: %w", err)
	}
	return meals, nil
}

func (s *SQLiteStorage) loadProductsForMeal(ctx context.Context, meal *models.MealRecord) error {
	query := `
        SELECT id, meal_id, product_name, weight_g, calories, notes
        FROM meal_products
        WHERE meal_id = ?
        ORDER BY position
    `

	rows, err := s.db.QueryContext(ctx, query, meal.ID)
	if err != nil {
		return fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.MealProduct{}
	for rows.Next() {
		p := models.MealProduct{}
		var weight, kcal sql.NullInt64

		if err := rows.Scan(&p.ID, &p.MealID, &p.ProductName, &weight, &kcal, &p.Notes); err != nil {
			return fmt.Errorf("failed to scan product: %w", err)
		}
		p.WeightGrams = intFromNull(weight)
		p.Calories = intFromNull(kcal)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read products: %w", err)
	}

	meal.Products = products
	return nil
}

func (s *SQLiteStorage) getMeal(ctx context.Context, mealID string) (*models.MealRecord, error) {
	meals, err := s.queryMeals(ctx, `
        SELECT id, user_id, meal_time, total_calories, note, created_at, updated_at
        FROM meals
        WHERE id = ?
    `, mealID)
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return nil, ErrNotFound
	}
	if err := s.loadProductsForMeal(ctx, meals[0]); err != nil {
		return nil, err
	}
	return meals[0], nil
}

func (s *SQLiteStorage) UpdateMeal(ctx context.Context, mealID string, upd models.MealUpdate) (*models.MealRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM meals WHERE id = ?", mealID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up meal: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	set := "updated_at = ?"
	args := []interface{}{formatTime(time.Now())}
	if upd.Note != nil {
		set += ", note = ?"
		args = append(args, *upd.Note)
	}
	if upd.MealTime != nil {
		set += ", meal_time = ?"
		args = append(args, formatTime(*upd.MealTime))
	}
	if upd.Products != nil {
		total := models.RecomputeTotal(models.Meal{Products: upd.Products}).TotalCalories
		set += ", total_calories = ?"
		args = append(args, total)

		if _, err := tx.ExecContext(ctx, "DELETE FROM meal_products WHERE meal_id = ?", mealID); err != nil {
			return nil, fmt.Errorf("failed to replace products: %w", err)
		}
		if err := insertProducts(ctx, tx, mealID, upd.Products); err != nil {
			return nil, err
		}
	}
	args = append(args, mealID)

	if _, err := tx.ExecContext(ctx, "UPDATE meals SET "+set+" WHERE id = ?", args...); err != nil {
		return nil, fmt.Errorf("failed to update meal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meal update: %w", err)
	}
	return s.getMeal(ctx, mealID)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return models.IntPtr(int(v.Int64))
}
