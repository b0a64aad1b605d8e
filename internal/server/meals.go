package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"calorie-chat/internal/analytics"
	"calorie-chat/internal/apierr"
	"calorie-chat/internal/extract"
	"calorie-chat/internal/models"
	"calorie-chat/internal/storage"
)

const (
	defaultMealsLimit    = 50
	defaultAnalyticsDays = 7
	maxAnalyticsDays     = 366
)

// The operations below back both the REST handlers and the MCP tools.

func (s *MealLogServer) analyzeMeal(ctx context.Context, text string) (*extract.Result, error) {
	res, err := s.extractor.ExtractMeal(ctx, text)
	if err != nil {
		return nil, extractionError(err)
	}
	return res, nil
}

// extractionError maps extraction failures to HTTP statuses: bad input is the
// caller's fault, an unusable model answer is an upstream failure.
func extractionError(err error) error {
	var e *extract.Error
	if !errors.As(err, &e) {
		return apierr.Internal("meal analysis failed", err)
	}
	status := http.StatusBadGateway
	switch e.Kind {
	case extract.EmptyInput, extract.InputTooLong:
		status = http.StatusBadRequest
	case extract.NoValidProducts:
		status = http.StatusUnprocessableEntity
	}
	return &apierr.Error{Status: status, Message: e.Message, Details: e.Details, Err: e}
}

func (s *MealLogServer) saveMeal(ctx context.Context, userID string, meal *models.Meal) (*models.MealRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apierr.BadRequest("userId is required", nil)
	}
	if meal == nil || len(meal.Products) == 0 {
		return nil, apierr.BadRequest("mealData with products is required", nil)
	}

	valid, err := models.ValidateForSave(*meal)
	if err != nil {
		return nil, apierr.BadRequest(err.Error(), err)
	}

	rec, err := s.storage.SaveMeal(ctx, userID, valid)
	if err != nil {
		return nil, apierr.Internal("failed to save meal", err)
	}
	s.log.Info("meal saved", "user_id", userID, "meal_id", rec.ID, "total_calories", rec.TotalCalories)
	return rec, nil
}

type mealsQuery struct {
	UserID      string
	Date        string
	Limit       int
	MinCalories *int
	MaxCalories *int
}

func (s *MealLogServer) getMeals(ctx context.Context, q mealsQuery) ([]*models.MealRecord, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, apierr.BadRequest("userId is required", nil)
	}

	sq := storage.MealQuery{
		UserID:      q.UserID,
		Limit:       q.Limit,
		MinCalories: q.MinCalories,
		MaxCalories: q.MaxCalories,
	}
	if sq.Limit <= 0 {
		sq.Limit = defaultMealsLimit
	}
	if q.Date != "" {
		from, to, err := storage.DayRange(q.Date, s.config.Location)
		if err != nil {
			return nil, apierr.BadRequest("date must be YYYY-MM-DD", err)
		}
		sq.From, sq.To = from, to
	}

	meals, err := s.storage.GetMeals(ctx, sq)
	if err != nil {
		return nil, apierr.Internal("failed to retrieve meals", err)
	}
	if meals == nil {
		meals = []*models.MealRecord{}
	}
	return meals, nil
}

type mealUpdates struct {
	Note     *string          `json:"note,omitempty"`
	MealTime *string          `json:"meal_time,omitempty"`
	Products []models.Product `json:"products,omitempty"`
}

func (s *MealLogServer) updateMeal(ctx context.Context, mealID string, u mealUpdates) (*models.MealRecord, error) {
	if strings.TrimSpace(mealID) == "" {
		return nil, apierr.BadRequest("mealId is required", nil)
	}

	upd := models.MealUpdate{Note: u.Note}
	if u.MealTime != nil {
		t, err := time.Parse(time.RFC3339, *u.MealTime)
		if err != nil {
			return nil, apierr.BadRequest("meal_time must be an RFC 3339 timestamp", err)
		}
		upd.MealTime = &t
	}
	if u.Products != nil {
		valid, err := models.ValidateForSave(models.Meal{Products: u.Products})
		if err != nil {
			return nil, apierr.BadRequest(err.Error(), err)
		}
		upd.Products = valid.Products
	}

	rec, err := s.storage.UpdateMeal(ctx, mealID, upd)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierr.NotFound("meal not found", err)
	}
	if err != nil {
		return nil, apierr.Internal("failed to update meal", err)
	}
	s.log.Info("meal updated", "meal_id", mealID, "total_calories", rec.TotalCalories)
	return rec, nil
}

type analyticsQuery struct {
	UserID string
	Days   int
	Goal   int
	End    string
}

func (s *MealLogServer) dailyAnalytics(ctx context.Context, q analyticsQuery) (*analytics.Summary, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, apierr.BadRequest("userId is required", nil)
	}
	if q.Days <= 0 {
		q.Days = defaultAnalyticsDays
	}
	if q.Days > maxAnalyticsDays {
		return nil, apierr.BadRequest("days is out of range", nil)
	}
	if q.Goal <= 0 {
		q.Goal = s.config.DailyGoal
	}

	end := time.Now().In(s.config.Location)
	if q.End != "" {
		day, _, err := storage.DayRange(q.End, s.config.Location)
		if err != nil {
			return nil, apierr.BadRequest("end must be YYYY-MM-DD", err)
		}
		end = day
	}

	from, to := analytics.Window(end, q.Days, s.config.Location)
	meals, err := s.storage.GetMeals(ctx, storage.MealQuery{UserID: q.UserID, From: from, To: to})
	if err != nil {
		return nil, apierr.Internal("failed to retrieve meals", err)
	}
	summary := analytics.Daily(meals, end, q.Days, q.Goal, s.config.Location)
	return &summary, nil
}
