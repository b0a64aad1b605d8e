package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"calorie-chat/internal/calories"
	"calorie-chat/internal/logger"
	"calorie-chat/internal/models"
)

// DefaultMaxInputChars bounds the user text sent to the model.
const DefaultMaxInputChars = 1000

// Completer is the language-model collaborator.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Result struct {
	Meal        models.Meal `json:"mealData"`
	DisplayText string      `json:"displayText"`
}

type Service struct {
	completer     Completer
	log           *logger.Logger
	maxInputChars int

	// Now stamps extracted meals; tests may replace it.
	Now func() time.Time
}

func NewService(completer Completer, maxInputChars int, log *logger.Logger) *Service {
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		completer:     completer,
		log:           log,
		maxInputChars: maxInputChars,
		Now:           time.Now,
	}
}

// CheckInput validates text before any external call. Length is counted in
// Unicode characters.
func (s *Service) CheckInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return newError(EmptyInput, "meal description is required", nil)
	}
	if n := utf8.RuneCountInString(text); n > s.maxInputChars {
		return newError(InputTooLong, fmt.Sprintf("meal description is %d characters, limit is %d", n, s.maxInputChars), nil)
	}
	return nil
}

// ExtractMeal turns a free-text meal description into a normalized meal. It makes
// exactly one model call and returns either a complete result or an *Error.
func (s *Service) ExtractMeal(ctx context.Context, text string) (*Result, error) {
	if err := s.CheckInput(text); err != nil {
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, BuildPrompt(text))
	if err != nil {
		return nil, newError(ModelCallFailed, "language model call failed", err)
	}
	s.log.Debug("model response", "chars", len(raw))

	span, ok := FindJSONObject(raw)
	if !ok {
		return nil, newError(NoJSONFound, "no JSON object in model response", nil)
	}

	rawProducts, err := parseResponse(span)
	if err != nil {
		return nil, err
	}

	meal := models.Meal{
		Products:  normalizeProducts(rawProducts),
		Timestamp: s.Now().UTC(),
	}
	if len(meal.Products) == 0 {
		return nil, newError(NoValidProducts, "model returned no named products", nil)
	}
	meal = models.RecomputeTotal(meal)

	s.log.Info("meal extracted", "products", len(meal.Products), "total_calories", meal.TotalCalories)
	return &Result{Meal: meal, DisplayText: Summary(meal)}, nil
}

func normalizeProducts(raw []rawProduct) []models.Product {
	out := make([]models.Product, 0, len(raw))
	for _, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		p := models.Product{
			ID:       "temp_" + strconv.Itoa(len(out)),
			Name:     name,
			Calories: r.Calories,
			Notes:    strings.TrimSpace(r.Notes),
		}
		if r.WeightG != nil && *r.WeightG > 0 {
			p.WeightGrams = models.IntPtr(*r.WeightG)
		}
		out = append(out, fillMissing(p))
	}
	return out
}

// fillMissing supplies calories the model left out, estimating the portion from
// the wording when the weight is unknown too. Known products only.
func fillMissing(p models.Product) models.Product {
	if p.Calories != nil {
		return p
	}
	kcal, ok := calories.LookupKcalPer100g(p.Name)
	if !ok {
		return p
	}
	if p.WeightGrams == nil {
		w := calories.EstimateWeightGrams(p.Name + " " + p.Notes)
		p.WeightGrams = models.IntPtr(w)
		note := fmt.Sprintf("estimated portion %dg", w)
		if p.Notes == "" {
			p.Notes = note
		} else {
			p.Notes += "; " + note
		}
	}
	p.Calories = models.IntPtr(calories.CalculateCalories(*p.WeightGrams, kcal))
	return p
}

// Summary renders the chat reply for a meal. The output depends only on the meal.
func Summary(m models.Meal) string {
	var b strings.Builder
	for i, p := range m.Products {
		weight, kcal := "?", "?"
		if p.WeightGrams != nil {
			weight = strconv.Itoa(*p.WeightGrams)
		}
		if p.Calories != nil {
			kcal = strconv.Itoa(*p.Calories)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s — %s г → %s ккал", i+1, p.Name, weight, kcal)
	}
	fmt.Fprintf(&b, "\n\n**Итого:** %d ккал", m.TotalCalories)
	return b.String()
}
