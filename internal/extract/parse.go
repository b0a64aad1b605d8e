package extract

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"

	"calorie-chat/internal/models"
)

// FindJSONObject returns the first balanced {...} span in s. Braces inside JSON
// strings are ignored. An opening brace that is never closed is skipped.
func FindJSONObject(s string) (span string, ok bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if end := matchBrace(s, start); end >= 0 {
			return s[start : end+1], true
		}
	}
	return "", false
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func bound(v float64) *float64 {
	return &v
}

var (
	rootSchema = &jsonschema.Schema{
		Type:     "object",
		Required: []string{"products", "total_calories"},
		Properties: map[string]*jsonschema.Schema{
			"products":       {Type: "array"},
			"total_calories": {Type: "integer"},
		},
	}
	productSchema = &jsonschema.Schema{
		Type:     "object",
		Required: []string{"name"},
		Properties: map[string]*jsonschema.Schema{
			"name":     {Type: "string"},
			"weight_g": {Types: []string{"integer", "null"}, Maximum: bound(models.MaxWeightGrams)},
			"calories": {Types: []string{"integer", "null"}, Minimum: bound(0), Maximum: bound(models.MaxProductCalories)},
			"notes":    {Types: []string{"string", "null"}},
		},
	}

	resolvedRoot    = mustResolve(rootSchema)
	resolvedProduct = mustResolve(productSchema)
)

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("invalid meal schema: %v", err))
	}
	return r
}

// rawProduct is a schema-checked product before normalization.
type rawProduct struct {
	Name     string
	WeightG  *int
	Calories *int
	Notes    string
}

// parseResponse turns the model's JSON span into products, collecting every
// schema violation instead of stopping at the first one.
func parseResponse(span string) ([]rawProduct, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return nil, newError(MalformedJSON, "response JSON could not be parsed", err)
	}

	if err := resolvedRoot.Validate(doc); err != nil {
		return nil, &Error{Kind: SchemaViolation, Message: "response does not match meal schema", Details: []string{err.Error()}}
	}

	obj := doc.(map[string]interface{})
	items := obj["products"].([]interface{})

	var violations []string
	products := make([]rawProduct, 0, len(items))
	for i, item := range items {
		if err := resolvedProduct.Validate(item); err != nil {
			violations = append(violations, fmt.Sprintf("products[%d]: %v", i, err))
			continue
		}
		fields := item.(map[string]interface{})
		p := rawProduct{
			WeightG:  intField(fields, "weight_g"),
			Calories: intField(fields, "calories"),
		}
		p.Name, _ = fields["name"].(string)
		p.Notes, _ = fields["notes"].(string)
		products = append(products, p)
	}
	if len(violations) > 0 {
		return nil, &Error{Kind: SchemaViolation, Message: "response does not match meal schema", Details: violations}
	}
	return products, nil
}

// intField reads an integer-valued JSON number; null, missing or out-of-range
// values yield nil. The schema bounds are checked before this runs.
func intField(m map[string]interface{}, key string) *int {
	f, ok := m[key].(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	v := int(f)
	return &v
}
