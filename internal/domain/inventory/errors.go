package inventory

import (
	"errors"
	"fmt"
)

// Domain errors for inventory records
var (
	ErrEmptyName              = errors.New("ingredient name must not be empty")
	ErrNonPositiveCount       = errors.New("ingredient count must be greater than 0")
	ErrNegativeExpiry         = errors.New("ingredient expiry must not be negative")
	ErrInvalidCarbonFootprint = errors.New("carbon footprint must be 1, 2 or 3")
	ErrIngredientNotFound     = errors.New("ingredient not found")
)

// InvalidIngredientError names the offending record in a batch.
type InvalidIngredientError struct {
	Name string
	Err  error
}

func (e *InvalidIngredientError) Error() string {
	return fmt.Sprintf("ingredient %q: %v", e.Name, e.Err)
}

func (e *InvalidIngredientError) Unwrap() error {
	return e.Err
}
