// Package inventory contains the household food inventory domain.
// An inventory is a set of ingredients keyed by normalised name; a record
// whose count reaches zero or below no longer exists.
package inventory

import (
	"sort"
	"strings"
)

// Carbon footprint bounds (1 = low, 3 = high)
const (
	MinCarbonFootprint = 1
	MaxCarbonFootprint = 3
)

// Ingredient is one inventory record.
type Ingredient struct {
	Name            string  `json:"name"`
	Count           float64 `json:"count"`
	Units           string  `json:"units"`
	Expiry          int     `json:"expiry"`
	CarbonFootprint int     `json:"carbon_footprint"`
}

// NormalizeName returns the inventory key for a display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NewIngredient creates a validated ingredient with a normalised name
func NewIngredient(name string, count float64, units string, expiry, carbonFootprint int) (Ingredient, error) {
	ing := Ingredient{
		Name:            NormalizeName(name),
		Count:           count,
		Units:           strings.TrimSpace(units),
		Expiry:          expiry,
		CarbonFootprint: carbonFootprint,
	}
	if err := ing.Validate(); err != nil {
		return Ingredient{}, err
	}
	return ing, nil
}

// Validate checks the record invariants
func (i Ingredient) Validate() error {
	if NormalizeName(i.Name) == "" {
		return ErrEmptyName
	}
	if i.Count <= 0 {
		return ErrNonPositiveCount
	}
	if i.Expiry < 0 {
		return ErrNegativeExpiry
	}
	if i.CarbonFootprint < MinCarbonFootprint || i.CarbonFootprint > MaxCarbonFootprint {
		return ErrInvalidCarbonFootprint
	}
	return nil
}

// Normalized returns a copy keyed by its normalised name
func (i Ingredient) Normalized() Ingredient {
	i.Name = NormalizeName(i.Name)
	i.Units = strings.TrimSpace(i.Units)
	return i
}

// MergeAdd folds incoming into i: counts add, the other fields take the
// incoming values.
func (i Ingredient) MergeAdd(incoming Ingredient) Ingredient {
	return Ingredient{
		Name:            i.Name,
		Count:           i.Count + incoming.Count,
		Units:           incoming.Units,
		Expiry:          incoming.Expiry,
		CarbonFootprint: incoming.CarbonFootprint,
	}
}

// Decrement removes amount units. removed is true when the record must be
// deleted because nothing is left.
func (i Ingredient) Decrement(amount float64) (remaining Ingredient, removed bool) {
	i.Count -= amount
	if i.Count <= 0 {
		return Ingredient{}, true
	}
	return i, false
}

// Inventory is a snapshot of a tenant's ingredients.
type Inventory []Ingredient

// Names returns the ingredient names in inventory order
func (inv Inventory) Names() []string {
	names := make([]string, 0, len(inv))
	for _, ing := range inv {
		names = append(names, ing.Name)
	}
	return names
}

// Find looks an ingredient up by (normalised) name
func (inv Inventory) Find(name string) (Ingredient, bool) {
	key := NormalizeName(name)
	for _, ing := range inv {
		if ing.Name == key {
			return ing, true
		}
	}
	return Ingredient{}, false
}

// Sorted returns a copy ordered by name.
func (inv Inventory) Sorted() Inventory {
	out := make(Inventory, len(inv))
	copy(out, inv)
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Collapse merges duplicate names in a batch using MergeAdd, keeping first
// appearance order. Every element is validated first; nothing is merged if
// any element is invalid.
func Collapse(batch []Ingredient) (Inventory, error) {
	index := make(map[string]int, len(batch))
	out := make(Inventory, 0, len(batch))
	for _, raw := range batch {
		ing := raw.Normalized()
		if err := ing.Validate(); err != nil {
			return nil, &InvalidIngredientError{Name: raw.Name, Err: err}
		}
		if pos, ok := index[ing.Name]; ok {
			out[pos] = out[pos].MergeAdd(ing)
			continue
		}
		index[ing.Name] = len(out)
		out = append(out, ing)
	}
	return out, nil
}
