package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"calorie-chat/internal/models"
)

type mealRow struct {
	ID            string       `gorm:"type:varchar(36);primaryKey"`
	UserID        string       `gorm:"type:varchar(64);not null;index:idx_meals_user_time,priority:1"`
	MealTime      time.Time    `gorm:"not null;index:idx_meals_user_time,priority:2"`
	TotalCalories int          `gorm:"not null;default:0"`
	Note          string       `gorm:"not null;default:''"`
	Products      []productRow `gorm:"foreignKey:MealID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (mealRow) TableName() string { return "meals" }

type productRow struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	MealID      string `gorm:"type:varchar(36);not null;index"`
	Position    int    `gorm:"not null"`
	ProductName string `gorm:"not null"`
	WeightG     *int
	Calories    *int
	Notes       string `gorm:"not null;default:''"`
}

func (productRow) TableName() string { return "meal_products" }

// PostgresStorage keeps meals in the same two-table layout as the SQLite store.
type PostgresStorage struct {
	db *gorm.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&mealRow{}, &productRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toProductRows(mealID string, products []models.Product) []productRow {
	rows := make([]productRow, 0, len(products))
	for i, p := range products {
		rows = append(rows, productRow{
			ID:          uuid.NewString(),
			MealID:      mealID,
			Position:    i,
			ProductName: p.Name,
			WeightG:     p.WeightGrams,
			Calories:    p.Calories,
			Notes:       p.Notes,
		})
	}
	return rows
}

func (r *mealRow) record() *models.MealRecord {
	rec := &models.MealRecord{
		ID:            r.ID,
		UserID:        r.UserID,
		MealTime:      r.MealTime.UTC(),
		TotalCalories: r.TotalCalories,
		Note:          r.Note,
		Products:      make([]models.MealProduct, 0, len(r.Products)),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	for _, p := range r.Products {
		rec.Products = append(rec.Products, models.MealProduct{
			ID:          p.ID,
			MealID:      p.MealID,
			ProductName: p.ProductName,
			WeightGrams: p.WeightG,
			Calories:    p.Calories,
			Notes:       p.Notes,
		})
	}
	return rec
}

func orderedProducts(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

func (s *PostgresStorage) SaveMeal(ctx context.Context, userID string, meal models.Meal) (*models.MealRecord, error) {
	row := &mealRow{
		ID:            uuid.NewString(),
		UserID:        userID,
		MealTime:      mealTime(meal),
		TotalCalories: meal.TotalCalories,
		Note:          meal.Note,
	}
	row.Products = toProductRows(row.ID, meal.Products)

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to insert meal: %w", err)
	}
	return s.getMeal(ctx, row.ID)
}

func (s *PostgresStorage) GetMeals(ctx context.Context, q MealQuery) ([]*models.MealRecord, error) {
	tx := s.db.WithContext(ctx).
		Preload("Products", orderedProducts).
		Where("user_id = ?", q.UserID)
	if !q.From.IsZero() {
		tx = tx.Where("meal_time >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		tx = tx.Where("meal_time < ?", q.To.UTC())
	}
	if q.MinCalories != nil {
		tx = tx.Where("total_calories >= ?", *q.MinCalories)
	}
	if q.MaxCalories != nil {
		tx = tx.Where("total_calories <= ?", *q.MaxCalories)
	}
	tx = tx.Order("meal_time DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []mealRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	out := make([]*models.MealRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out, nil
}

func (s *PostgresStorage) getMeal(ctx context.Context, mealID string) (*models.MealRecord, error) {
	var row mealRow
	err := s.db.WithContext(ctx).Preload("Products", orderedProducts).First(&row, "id = ?", mealID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meal: %w", err)
	}
	return row.record(), nil
}

func (s *PostgresStorage) UpdateMeal(ctx context.Context, mealID string, upd models.MealUpdate) (*models.MealRecord, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row mealRow
		if err := tx.First(&row, "id = ?", mealID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		changes := map[string]interface{}{"updated_at": time.Now().UTC()}
		if upd.Note != nil {
			changes["note"] = *upd.Note
		}
		if upd.MealTime != nil {
			changes["meal_time"] = upd.MealTime.UTC()
		}
		if upd.Products != nil {
			changes["total_calories"] = models.RecomputeTotal(models.Meal{Products: upd.Products}).TotalCalories
			if err := tx.Where("meal_id = ?", mealID).Delete(&productRow{}).Error; err != nil {
				return fmt.Errorf("failed to replace products: %w", err)
			}
			if rows := toProductRows(mealID, upd.Products); len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return fmt.Errorf("failed to insert products: %w", err)
				}
			}
		}
		return tx.Model(&mealRow{}).Where("id = ?", mealID).Updates(changes).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update meal: %w", err)
	}
	return s.getMeal(ctx, mealID)
}
