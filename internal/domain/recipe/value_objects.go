package recipe

import (
	"strings"
)

// DifficultyLevel represents recipe difficulty
type DifficultyLevel string

const (
	DifficultyLevelEasy   DifficultyLevel = "Easy"
	DifficultyLevelMedium DifficultyLevel = "Medium"
	DifficultyLevelHard   DifficultyLevel = "Hard"
)

// DifficultyLevels lists the accepted values in schema order
var DifficultyLevels = []DifficultyLevel{DifficultyLevelEasy, DifficultyLevelMedium, DifficultyLevelHard}

// IsValid reports whether d is one of the accepted levels
func (d DifficultyLevel) IsValid() bool {
	for _, level := range DifficultyLevels {
		if d == level {
			return true
		}
	}
	return false
}

// ParseDifficulty accepts any casing ("easy", "EASY") of a known level
func ParseDifficulty(s string) (DifficultyLevel, error) {
	for _, level := range DifficultyLevels {
		if strings.EqualFold(strings.TrimSpace(s), string(level)) {
			return level, nil
		}
	}
	return "", ErrInvalidDifficulty
}

// IngredientUsage names an inventory item and the units a recipe consumes.
type IngredientUsage struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// RecipeHeader is the short summary of a recipe. It is never persisted on its own.
type RecipeHeader struct {
	RecipeName       string  `json:"recipe_name"`
	ShortDescription string  `json:"short_description"`
	CookingTime      float64 `json:"cooking_time"`
}
