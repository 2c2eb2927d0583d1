package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/recipe"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var leadingNumberPattern = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d+)?)`)

// Wire shapes of the three model outputs

type detectionPayload struct {
	Ingredients []detectedIngredient `json:"ingredients" validate:"dive"`
}

type detectedIngredient struct {
	Name            string  `json:"name" validate:"required"`
	Count           float64 `json:"count" validate:"gt=0"`
	Units           string  `json:"units"`
	Expiry          int     `json:"expiry" validate:"gte=0"`
	CarbonFootprint int     `json:"carbon_footprint" validate:"min=1,max=3"`
}

type recipePayload struct {
	RecipeName       string         `json:"recipe_name" validate:"required"`
	ShortDescription string         `json:"short_description" validate:"required"`
	CookingTime      float64        `json:"cooking_time" validate:"gt=0"`
	Difficulty       string         `json:"difficulty" validate:"oneof=Easy Medium Hard"`
	Ingredients      []string       `json:"ingredients" validate:"min=1,dive,required"`
	Instructions     []string       `json:"instructions" validate:"min=1,dive,required"`
	URL              string         `json:"url"`
	IngredientUsage  []usagePayload `json:"ingredient_usage" validate:"dive"`
}

type usagePayload struct {
	Name   string  `json:"name" validate:"required"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

type pointsPayload struct {
	NutritionalValues     string   `json:"nutritional_values" validate:"required"`
	CarbonFootprint       *float64 `json:"carbon_footprint" validate:"omitempty,gte=0"`
	PointsResponse        int      `json:"points_response" validate:"gte=0"`
	JustificationResponse string   `json:"justification_response" validate:"required"`
	Warnings              string   `json:"warnings"`
}

// decoder validates a coerced document against a schema and the wire struct
type decoder struct {
	validate *validator.Validate
}

func newDecoder() *decoder {
	return &decoder{validate: validator.New()}
}

func (d *decoder) decode(schema *outputSchema, doc map[string]interface{}, out interface{}) error {
	if err := schema.compiled.Validate(doc); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s output does not match schema: %v", schema.name, err))
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s output has wrong types: %v", schema.name, err))
	}
	if err := d.validate.Struct(out); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

// Coercion of loosely typed model output. Values that cannot be coerced
// are left untouched so schema validation reports them.

func coerceDetection(doc map[string]interface{}) {
	items, ok := doc["ingredients"].([]interface{})
	if !ok {
		return
	}
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := item["name"].(string); ok {
			item["name"] = inventory.NormalizeName(name)
		}
		if n, ok := leadingNumber(item["count"]); ok {
			item["count"] = toNumber(n)
		}
		if units, ok := item["units"].(string); !ok || strings.TrimSpace(units) == "" {
			item["units"] = "piece"
		}
		if n, ok := leadingNumber(item["expiry"]); ok {
			item["expiry"] = toNumber(math.Max(0, math.Trunc(n)))
		}
		if n, ok := leadingNumber(item["carbon_footprint"]); ok {
			item["carbon_footprint"] = toNumber(clampFootprint(n))
		}
	}
}

func coerceRecipe(doc map[string]interface{}) {
	if n, ok := leadingNumber(doc["cooking_time"]); ok {
		doc["cooking_time"] = toNumber(n)
	}
	if s, ok := doc["difficulty"].(string); ok {
		if level, err := recipe.ParseDifficulty(s); err == nil {
			doc["difficulty"] = string(level)
		}
	}
	if s, ok := doc["url"].(string); ok {
		if !isHTTPURL(s) {
			delete(doc, "url")
		}
	} else if doc["url"] == nil {
		delete(doc, "url")
	}

	switch usage := doc["ingredient_usage"].(type) {
	case []interface{}:
		for _, raw := range usage {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if name, ok := item["name"].(string); ok {
				item["name"] = inventory.NormalizeName(name)
			}
			if n, ok := leadingNumber(item["amount"]); ok {
				item["amount"] = toNumber(n)
			}
		}
	case nil:
		delete(doc, "ingredient_usage")
	}
}

// coercePoints fails when points_response is present but not numeric.
func coercePoints(doc map[string]interface{}) error {
	if raw, present := doc["points_response"]; present {
		n, ok := strictNumber(raw)
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("points_response is not numeric: %v", raw))
		}
		doc["points_response"] = toNumber(math.Trunc(n))
	}

	switch v := doc["nutritional_values"].(type) {
	case string, nil:
	default:
		data, _ := json.Marshal(v)
		doc["nutritional_values"] = string(data)
	}

	if raw, present := doc["carbon_footprint"]; present {
		if n, ok := leadingNumber(raw); ok {
			doc["carbon_footprint"] = toNumber(n)
		} else {
			delete(doc, "carbon_footprint")
		}
	}

	switch w := doc["warnings"].(type) {
	case nil:
		doc["warnings"] = ""
	case []interface{}:
		parts := make([]string, 0, len(w))
		for _, item := range w {
			parts = append(parts, fmt.Sprint(item))
		}
		doc["warnings"] = strings.Join(parts, "; ")
	case string:
	default:
		doc["warnings"] = fmt.Sprint(w)
	}
	return nil
}

// strictNumber accepts JSON numbers and strings that are entirely a number.
func strictNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

// leadingNumber also accepts strings that start with a number ("200 grams").
func leadingNumber(v interface{}) (float64, bool) {
	if f, ok := strictNumber(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	m := leadingNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	return f, err == nil
}

func toNumber(f float64) json.Number {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}

func clampFootprint(f float64) float64 {
	f = math.Round(f)
	if f < inventory.MinCarbonFootprint {
		return inventory.MinCarbonFootprint
	}
	if f > inventory.MaxCarbonFootprint {
		return inventory.MaxCarbonFootprint
	}
	return f
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
