package analytics

import (
	"math"
	"time"

	"calorie-chat/internal/models"
)

const (
	StatusNoData = "no_data"
	StatusLow    = "low"
	StatusNormal = "normal"
	StatusHigh   = "high"

	LowThreshold  = 1200
	HighThreshold = 2500
)

type DayStat struct {
	Date      string `json:"date"`
	Calories  int    `json:"calories"`
	MealCount int    `json:"meal_count"`
	Status    string `json:"status"`
}

type Summary struct {
	Days            []DayStat `json:"days"`
	TotalCalories   int       `json:"total_calories"`
	AverageCalories int       `json:"average_calories"`
	Goal            int       `json:"goal"`
	GoalProgress    float64   `json:"goal_progress"`
}

func DayStatus(kcal int) string {
	switch {
	case kcal == 0:
		return StatusNoData
	case kcal < LowThreshold:
		return StatusLow
	case kcal > HighThreshold:
		return StatusHigh
	default:
		return StatusNormal
	}
}

// Window returns the half-open range covering the given number of days ending
// with (and including) the day of end.
func Window(end time.Time, days int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	e := end.In(loc)
	last := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
	return last.AddDate(0, 0, -(days - 1)), last.AddDate(0, 0, 1)
}

// Daily buckets meals by calendar day in loc, newest day first. Days with no
// meals are included with zero calories.
func Daily(meals []*models.MealRecord, end time.Time, days, goal int, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	if days <= 0 {
		days = 1
	}
	from, _ := Window(end, days, loc)

	index := make(map[string]int, days)
	stats := make([]DayStat, days)
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, days-1-i).Format("2006-01-02")
		stats[i] = DayStat{Date: d}
		index[d] = i
	}

	total := 0
	for _, m := range meals {
		i, ok := index[m.MealTime.In(loc).Format("2006-01-02")]
		if !ok {
			continue
		}
		stats[i].Calories += m.TotalCalories
		stats[i].MealCount++
		total += m.TotalCalories
	}
	for i := range stats {
		stats[i].Status = DayStatus(stats[i].Calories)
	}

	s := Summary{
		Days:            stats,
		TotalCalories:   total,
		AverageCalories: int(math.Round(float64(total) / float64(days))),
		Goal:            goal,
	}
	if goal > 0 {
		s.GoalProgress = math.Min(float64(total)/float64(goal*days)*100, 100)
	}
	return s
}
