package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"calorie-chat/internal/apierr"
	"calorie-chat/internal/models"
)

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apierr.StatusOf(err), apierr.BodyOf(err))
}

func (s *MealLogServer) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
}

type analyzeRequest struct {
	Text string `json:"text"`
}

func (s *MealLogServer) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.BadRequest("invalid request body", err))
		return
	}

	res, err := s.analyzeMeal(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"mealData":    res.Meal,
		"displayText": res.DisplayText,
	})
}

type saveMealRequest struct {
	UserID   string       `json:"userId"`
	MealData *models.Meal `json:"mealData"`
}

func (s *MealLogServer) handleSaveMeal(c *gin.Context) {
	var req saveMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.BadRequest("invalid request body", err))
		return
	}

	rec, err := s.saveMeal(c.Request.Context(), req.UserID, req.MealData)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "mealId": rec.ID, "meal": rec})
}

func (s *MealLogServer) handleGetMeals(c *gin.Context) {
	q := mealsQuery{
		UserID: c.Query("userId"),
		Date:   c.Query("date"),
	}
	var err error
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		respondError(c, err)
		return
	}
	if q.MinCalories, err = queryIntPtr(c, "minCalories"); err != nil {
		respondError(c, err)
		return
	}
	if q.MaxCalories, err = queryIntPtr(c, "maxCalories"); err != nil {
		respondError(c, err)
		return
	}

	meals, err := s.getMeals(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meals": meals, "count": len(meals)})
}

type updateMealRequest struct {
	MealID  string      `json:"mealId"`
	Updates mealUpdates `json:"updates"`
}

func (s *MealLogServer) handleUpdateMeal(c *gin.Context) {
	var req updateMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierr.BadRequest("invalid request body", err))
		return
	}

	rec, err := s.updateMeal(c.Request.Context(), req.MealID, req.Updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "meal": rec})
}

func (s *MealLogServer) handleAnalytics(c *gin.Context) {
	q := analyticsQuery{
		UserID: c.Query("userId"),
		End:    c.Query("end"),
	}
	var err error
	if q.Days, err = queryInt(c, "days"); err != nil {
		respondError(c, err)
		return
	}
	if q.Goal, err = queryInt(c, "goal"); err != nil {
		respondError(c, err)
		return
	}

	summary, err := s.dailyAnalytics(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analytics": summary})
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apierr.BadRequest(name+" must be an integer", err)
	}
	return n, nil
}

func queryIntPtr(c *gin.Context, name string) (*int, error) {
	if c.Query(name) == "" {
		return nil, nil
	}
	n, err := queryInt(c, name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
