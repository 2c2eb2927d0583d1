package recipe

import "errors"

// Domain errors for recipe operations

var (
	// Generated record validation errors
	ErrMissingName            = errors.New("recipe name is required")
	ErrMissingDescription     = errors.New("recipe short description is required")
	ErrInvalidCookingTime     = errors.New("cooking time must be greater than 0")
	ErrInvalidDifficulty      = errors.New("difficulty must be Easy, Medium or Hard")
	ErrNoIngredients          = errors.New("recipe must have at least one ingredient")
	ErrNoInstructions         = errors.New("recipe must have at least one instruction")
	ErrInvalidUsage           = errors.New("ingredient usage needs a name and a positive amount")
	ErrMissingNutrition       = errors.New("nutritional values are required")
	ErrMissingJustification   = errors.New("points justification is required")
	ErrNegativePoints         = errors.New("points must not be negative")
	ErrInvalidCarbonFootprint = errors.New("carbon footprint estimate must not be negative")

	// Confirmation errors
	ErrNameMismatch     = errors.New("confirmed recipe name does not match the record")
	ErrProposalNotFound = errors.New("proposal not found or expired")
	ErrRecipeNotFound   = errors.New("recipe not found")
)
