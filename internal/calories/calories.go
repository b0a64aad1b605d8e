// internal/calories/calories.go
package calories

import (
	"math"
	"strings"
)

// Entry is one row of the estimation table.
type Entry struct {
	Name        string
	KcalPer100g int
}

// Table is searched in order; on ambiguous substring matches the first entry wins.
var Table = []Entry{
	// meat and poultry
	{"куриная грудка", 165},
	{"курица", 165},
	{"индейка", 189},
	{"говядина", 250},
	{"свинина", 242},
	{"баранина", 294},

	// fish
	{"лосось", 208},
	{"тунец", 144},
	{"треска", 82},
	{"минтай", 72},

	// vegetables
	{"огурец", 16},
	{"помидор", 18},
	{"морковь", 41},
	{"картофель", 77},
	{"капуста", 25},
	{"брокколи", 34},
	{"шпинат", 23},
	{"салат", 17},

	// fruit
	{"яблоко", 52},
	{"банан", 89},
	{"апельсин", 47},
	{"груша", 57},
	{"виноград", 62},

	// grains
	{"рис", 130},
	{"гречка", 110},
	{"овсянка", 68},
	{"хлеб", 265},
	{"хлеб белый", 265},
	{"хлеб ржаной", 259},
	{"хлеб цельнозерновой", 247},

	// dairy
	{"молоко", 42},
	{"йогурт", 59},
	{"творог", 98},
	{"сыр", 402},
	{"сметана", 193},

	// eggs and fats
	{"яйцо", 155},
	{"масло сливочное", 717},
	{"масло растительное", 884},
	{"оливковое масло", 884},

	// sweets
	{"сахар", 400},
	{"мед", 304},
	{"шоколад", 545},
	{"варенье", 250},

	// drinks
	{"чай", 1},
	{"кофе", 2},
	{"сок апельсиновый", 45},
	{"сок яблочный", 46},

	// nuts and seeds
	{"грецкий орех", 654},
	{"миндаль", 579},
	{"подсолнечник", 584},
	{"тыквенные семечки", 559},

	// english names the model sometimes answers with
	{"chicken breast", 165},
	{"chicken", 165},
	{"beef", 250},
	{"salmon", 208},
	{"potato", 77},
	{"apple", 52},
	{"banana", 89},
	{"rice", 130},
	{"oatmeal", 68},
	{"bread", 265},
	{"milk", 42},
	{"cheese", 402},
	{"egg", 155},
}

var exact = func() map[string]int {
	m := make(map[string]int, len(Table))
	for _, e := range Table {
		if _, dup := m[e.Name]; !dup {
			m[e.Name] = e.KcalPer100g
		}
	}
	return m
}()

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// LookupKcalPer100g returns the energy density of a product by name. The name is
// matched exactly first, then by substring containment in either direction.
func LookupKcalPer100g(name string) (int, bool) {
	n := normalize(name)
	if n == "" {
		return 0, false
	}
	if kcal, ok := exact[n]; ok {
		return kcal, true
	}
	for _, e := range Table {
		if strings.Contains(n, e.Name) || strings.Contains(e.Name, n) {
			return e.KcalPer100g, true
		}
	}
	return 0, false
}

type weightRule struct {
	keywords []string
	grams    int
}

// Portion wording is checked before food-type wording.
var weightRules = []weightRule{
	{[]string{"кусочек", "ломтик", "slice", "piece"}, 30},
	{[]string{"чайная ложка", "ч.л.", "teaspoon", "tsp"}, 5},
	{[]string{"столовая ложка", "ст.л.", "tablespoon", "tbsp", "ложка", "spoon"}, 15},
	{[]string{"стакан", "чашка", "cup", "glass"}, 200},
	{[]string{"маленькая", "маленький", "small"}, 100},
	{[]string{"большая", "большой", "large", "big"}, 200},
	{[]string{"порция", "portion", "serving"}, 150},
	{[]string{"хлеб", "bread"}, 30},
	{[]string{"салат", "salad"}, 200},
	{[]string{"суп", "soup"}, 300},
	{[]string{"каша", "porridge"}, 200},
	{[]string{"мясо", "рыба", "meat", "fish"}, 150},
}

// DefaultWeightGrams is returned when no portion wording is recognised.
const DefaultWeightGrams = 100

// EstimateWeightGrams guesses a portion weight from free-text wording.
func EstimateWeightGrams(description string) int {
	text := strings.ToLower(description)
	for _, r := range weightRules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.grams
			}
		}
	}
	return DefaultWeightGrams
}

// CalculateCalories rounds kcalPer100g/100*weightGrams half away from zero.
func CalculateCalories(weightGrams, kcalPer100g int) int {
	return int(math.Round(float64(weightGrams*kcalPer100g) / 100))
}

// Estimate returns calories for a product of known weight, if the table knows it.
func Estimate(name string, weightGrams int) (int, bool) {
	kcal, ok := LookupKcalPer100g(name)
	if !ok {
		return 0, false
	}
	return CalculateCalories(weightGrams, kcal), true
}
