package pantry

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/recipe"
)

// Source of a consumption plan
const (
	consumptionExplicit = "explicit"
	consumptionUsage    = "usage"
	consumptionDerived  = "derived"
)

var leadingQuantity = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)(?:\s*/\s*(\d+))?`)

// consumption is the inventory depletion a confirmation applies
type consumption struct {
	source  string
	amounts map[string]float64
	skipped []string
}

// names returns the consumed names in a fixed order
func (c consumption) names() []string {
	names := make([]string, 0, len(c.amounts))
	for name := range c.amounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateExplicit rejects non-positive amounts in a caller supplied map
func validateExplicit(explicit map[string]float64) error {
	for name, amount := range explicit {
		if inventory.NormalizeName(name) == "" {
			return fmt.Errorf("consumption entry has an empty name")
		}
		if amount <= 0 {
			return fmt.Errorf("consumption of %q must be greater than 0", name)
		}
	}
	return nil
}

// planConsumption resolves what a confirmed recipe uses up: the explicit
// map when given, otherwise the record's ingredient_usage, otherwise the
// recipe's ingredient lines matched against inventory names with their
// leading quantity (default 1). Names not in the inventory are skipped.
func planConsumption(rec *recipe.Recipe, explicit map[string]float64, inv inventory.Inventory) consumption {
	plan := consumption{amounts: make(map[string]float64)}

	add := func(name string, amount float64) {
		key := inventory.NormalizeName(name)
		if _, ok := inv.Find(key); !ok {
			plan.skipped = append(plan.skipped, key)
			return
		}
		plan.amounts[key] += amount
	}

	switch {
	case len(explicit) > 0:
		plan.source = consumptionExplicit
		for name, amount := range explicit {
			add(name, amount)
		}
	case len(rec.IngredientUsage) > 0:
		plan.source = consumptionUsage
		for _, u := range rec.IngredientUsage {
			add(u.Name, u.Amount)
		}
	default:
		plan.source = consumptionDerived
		for _, line := range rec.Ingredients {
			if name, ok := matchInventory(line, inv); ok {
				plan.amounts[name] += quantityOf(line)
			}
		}
	}

	sort.Strings(plan.skipped)
	return plan
}

// matchInventory returns the longest inventory name the line mentions, so
// "cherry tomato" wins over "tomato".
func matchInventory(line string, inv inventory.Inventory) (string, bool) {
	lower := strings.ToLower(line)
	best := ""
	for _, ing := range inv {
		if len(ing.Name) > len(best) && mentionsWord(lower, ing.Name) {
			best = ing.Name
		}
	}
	return best, best != ""
}

// mentionsWord reports a whole-word match, tolerating a plural suffix
func mentionsWord(text, word string) bool {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], word)
		if idx == -1 {
			return false
		}
		start := offset + idx
		rest := text[start+len(word):]
		rest = strings.TrimPrefix(strings.TrimPrefix(rest, "es"), "s")
		offset = start + 1

		if start > 0 && isLetter(text[start-1]) {
			continue
		}
		if rest != "" && isLetter(rest[0]) {
			continue
		}
		return true
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// quantityOf parses "2 tomatoes", "1.5 cups", "1/2 onion"; anything else is 1
func quantityOf(line string) float64 {
	m := leadingQuantity.FindStringSubmatch(line)
	if m == nil {
		return 1
	}
	n, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || n <= 0 {
		return 1
	}
	if m[2] != "" {
		d, err := strconv.ParseFloat(m[2], 64)
		if err != nil || d == 0 {
			return 1
		}
		n /= d
	}
	return n
}
