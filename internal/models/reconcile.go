package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"calorie-chat/internal/calories"
)

// Upper bounds for a single product. They keep meal totals far from int overflow.
const (
	MaxProductCalories = 100000
	MaxWeightGrams     = 100000
)

var (
	ErrEmptyProductName = errors.New("product name must not be empty")
	ErrNegativeCalories = errors.New("product calories must not be negative")
	ErrCaloriesTooLarge = errors.New("product calories exceed the limit")
	ErrWeightTooLarge   = errors.New("product weight exceeds the limit")
	ErrProductNotFound  = errors.New("product not found")
	ErrNoValidProducts  = errors.New("meal has no valid products")
)

// TempProductID returns a client-side identifier for a product that has not been
// persisted yet.
func TempProductID() string {
	return "temp_" + uuid.NewString()
}

// ProductPatch is a partial product edit. ClearCalories drops the current value
// so the estimation table default can take over.
type ProductPatch struct {
	Name          *string
	WeightGrams   *int
	Calories      *int
	ClearCalories bool
	Notes         *string
}

func cloneMeal(m Meal) Meal {
	out := m
	out.Products = make([]Product, len(m.Products))
	copy(out.Products, m.Products)
	return out
}

// RecomputeTotal sets TotalCalories to the sum of known product calories.
func RecomputeTotal(m Meal) Meal {
	out := cloneMeal(m)
	total := 0
	for _, p := range out.Products {
		if p.Calories != nil {
			total += *p.Calories
		}
	}
	out.TotalCalories = total
	return out
}

// fillCalories defaults absent calories from the estimation table when the weight
// is known. Explicit calories, including zero, are never touched.
func fillCalories(p Product) Product {
	if p.Calories != nil || p.WeightGrams == nil {
		return p
	}
	if kcal, ok := calories.Estimate(p.Name, *p.WeightGrams); ok {
		p.Calories = IntPtr(kcal)
	}
	return p
}

func checkProduct(p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, ErrEmptyProductName
	}
	if p.Calories != nil && *p.Calories < 0 {
		return p, ErrNegativeCalories
	}
	if p.Calories != nil && *p.Calories > MaxProductCalories {
		return p, ErrCaloriesTooLarge
	}
	if p.WeightGrams != nil && *p.WeightGrams > MaxWeightGrams {
		return p, ErrWeightTooLarge
	}
	if p.WeightGrams != nil && *p.WeightGrams <= 0 {
		p.WeightGrams = nil
	}
	return p, nil
}

// AddOrReplaceProduct replaces the product with the same ID or appends it.
func AddOrReplaceProduct(m Meal, p Product) (Meal, error) {
	p, err := checkProduct(p)
	if err != nil {
		return m, err
	}
	if p.ID == "" {
		p.ID = TempProductID()
	}
	p = fillCalories(p)

	out := cloneMeal(m)
	replaced := false
	for i := range out.Products {
		if out.Products[i].ID == p.ID {
			out.Products[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		out.Products = append(out.Products, p)
	}
	return RecomputeTotal(out), nil
}

// UpdateProduct applies a partial edit to one product.
func UpdateProduct(m Meal, productID string, patch ProductPatch) (Meal, error) {
	idx := -1
	for i, p := range m.Products {
		if p.ID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return m, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	p := m.Products[idx]
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.WeightGrams != nil {
		p.WeightGrams = IntPtr(*patch.WeightGrams)
	}
	if patch.ClearCalories {
		p.Calories = nil
	}
	if patch.Calories != nil {
		p.Calories = IntPtr(*patch.Calories)
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	return AddOrReplaceProduct(m, p)
}

// RemoveProduct drops the product with the given ID, if present.
func RemoveProduct(m Meal, productID string) Meal {
	out := cloneMeal(m)
	kept := out.Products[:0]
	for _, p := range out.Products {
		if p.ID != productID {
			kept = append(kept, p)
		}
	}
	out.Products = kept
	return RecomputeTotal(out)
}

// ValidateForSave filters out unnamed products and checks what is left before a
// meal is handed to storage.
func ValidateForSave(m Meal) (Meal, error) {
	out := cloneMeal(m)
	kept := out.Products[:0]
	for _, p := range out.Products {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		p, err := checkProduct(p)
		if err != nil {
			return m, fmt.Errorf("product %q: %w", p.Name, err)
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return m, ErrNoValidProducts
	}
	out.Products = kept
	return RecomputeTotal(out), nil
}
