package generation

import (
	"strings"
	"unicode"

	"github.com/ecofridge/server/internal/domain/profile"
)

// Common products of allergen categories. A forbidden category also
// forbids its members.
var allergenFamilies = map[string][]string{
	"dairy":      {"milk", "cheese", "butter", "cream", "yogurt", "yoghurt", "ghee", "whey", "casein", "parmesan", "mozzarella"},
	"lactose":    {"milk", "cheese", "cream", "yogurt", "yoghurt"},
	"gluten":     {"wheat", "flour", "bread", "pasta", "barley", "rye", "couscous", "semolina"},
	"nuts":       {"peanut", "almond", "walnut", "cashew", "hazelnut", "pecan", "pistachio"},
	"tree nuts":  {"almond", "walnut", "cashew", "hazelnut", "pecan", "pistachio"},
	"shellfish":  {"shrimp", "prawn", "crab", "lobster", "mussel", "oyster", "clam", "scallop"},
	"seafood":    {"fish", "shrimp", "prawn", "crab", "lobster", "salmon", "tuna"},
	"eggs":       {"egg", "mayonnaise"},
	"egg":        {"eggs", "mayonnaise"},
	"soy":        {"tofu", "soy sauce", "edamame", "tempeh", "miso"},
	"meat":       {"beef", "pork", "chicken", "lamb", "bacon", "ham", "sausage", "turkey"},
	"pork":       {"bacon", "ham", "prosciutto", "pancetta", "lard"},
	"vegetarian": {"beef", "pork", "chicken", "lamb", "bacon", "ham", "sausage", "turkey", "fish", "gelatin"},
	"vegan":      append(meatAndFish(), "milk", "cheese", "butter", "cream", "yogurt", "egg", "eggs", "honey", "gelatin"),
}

func meatAndFish() []string {
	return []string{"beef", "pork", "chicken", "lamb", "bacon", "ham", "sausage", "turkey", "fish"}
}

// Qualifiers that turn a dairy word into a plant product ("oat milk").
var plantQualifiers = map[string]bool{
	"coconut": true, "almond": true, "oat": true, "soy": true, "rice": true,
	"peanut": true, "cashew": true, "vegan": true, "plant": true, "plant-based": true,
}

// expandTerms returns the terms plus the members of any known family.
func expandTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range profile.DedupeTerms(terms) {
		out = append(out, t)
		out = append(out, allergenFamilies[strings.ToLower(t)]...)
	}
	return profile.DedupeTerms(out)
}

// forbiddenMentions returns the terms that text mentions as whole words.
// "dairy-free" and "dairy free" do not count as a mention of dairy.
func forbiddenMentions(text string, terms []string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, term := range expandTerms(terms) {
		if mentions(lower, strings.ToLower(term)) {
			hits = append(hits, term)
		}
	}
	return hits
}

func mentions(text, term string) bool {
	for offset := 0; ; {
		idx := strings.Index(text[offset:], term)
		if idx == -1 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		offset = start + 1

		if start > 0 && isWordByte(text[start-1]) {
			continue
		}
		if prev := previousWord(text, start); plantQualifiers[prev] || prev == "free" || strings.HasSuffix(prev, "-free") {
			continue
		}
		// allow simple plurals: egg -> eggs, tomato -> tomatoes
		rest := text[end:]
		rest = strings.TrimPrefix(rest, "es")
		rest = strings.TrimPrefix(rest, "s")
		if rest != "" && isWordByte(rest[0]) {
			continue
		}
		if strings.HasPrefix(rest, "-free") || strings.HasPrefix(rest, " free") {
			continue
		}
		return true
	}
}

func previousWord(text string, start int) string {
	fields := strings.Fields(text[:start])
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], ",;:()")
}

func isWordByte(b byte) bool {
	return b < unicode.MaxASCII && (unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b)))
}
