package generation

import (
	"fmt"
	"strings"

	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
)

// forbiddenTerms is what a synthesized recipe must never contain
func forbiddenTerms(allergies, restrictions []string) []string {
	p := profile.Profile{Allergies: allergies, Restrictions: restrictions}
	return p.ForbiddenTerms()
}

// DetectionPrompt asks for the ingredients visible in a photo.
func DetectionPrompt() string {
	return strings.TrimSpace(`
Analyze the image to detect food ingredients and return a JSON object with the following structure:

{
    "ingredients": [
        {
            "name": "ingredient_name",
            "count": number_of_items_detected,
            "units": "measurement_units_if_applicable_or_piece",
            "expiry": expiration_in_days_assuming_recent_purchase,
            "carbon_footprint": 1, 2 or 3 where 3 represents the highest footprint
        }
    ]
}

For each ingredient:
- Provide the count of items or the measured amount as a number (e.g. 1 for one piece, 200 for 200 grams).
- Estimate the expiration time in whole days assuming the ingredient was recently bought.
- Assess the carbon footprint on a scale of 1 to 3, where 3 is the least environmentally friendly.

Required fields: name, count, units, expiry, carbon_footprint.
Do not include any text outside of the JSON format.`)
}

// SynthesisPrompt asks for one recipe built from the available ingredients.
// Inventory names matching a forbidden term are left out of the list so a
// forbidden item is never offered as a required ingredient.
func SynthesisPrompt(ingredientNames, allergies, restrictions []string) string {
	forbidden := forbiddenTerms(allergies, restrictions)
	available := make([]string, 0, len(ingredientNames))
	for _, name := range profile.DedupeTerms(ingredientNames) {
		if len(forbiddenMentions(name, forbidden)) == 0 {
			available = append(available, name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate one structured recipe using only the following ingredients: %s.\n", strings.Join(available, ", "))
	b.WriteString("You may assume we have common household commodities (salt, pepper, oil, water, basic spices).\n\n")

	if len(forbidden) > 0 {
		fmt.Fprintf(&b, "The recipe must not contain any of the following, in any form: %s.\n", quoteAll(forbidden))
		b.WriteString("Do not list any of these terms, or products made from them, as an ingredient.\n\n")
	}

	b.WriteString("Also return ingredient_usage: for every listed available ingredient the recipe uses, ")
	b.WriteString("give its exact name from the list and the number of units consumed.\n\n")
	b.WriteString("Required fields: recipe_name, short_description, cooking_time (minutes), difficulty (Easy, Medium or Hard), ")
	b.WriteString("ingredients (list of strings), instructions (list of strings). Optional fields: url, ingredient_usage.\n")
	b.WriteString("Structure the response in JSON format as given.")
	return b.String()
}

// AssessmentPrompt asks for a points score of a recipe against the
// profile's restrictions and diseases.
func AssessmentPrompt(full recipe.FullRecipe, restrictions, diseases []string) string {
	conditions := profile.DedupeTerms(append(append([]string{}, restrictions...), diseases...))
	conditionText := "none"
	if len(conditions) > 0 {
		conditionText = strings.Join(conditions, ", ")
	}

	var b strings.Builder
	b.WriteString("Assess the recipe below with a points system based upon its nutritional value and carbon footprint.\n")
	b.WriteString("Use real and accurate nutritional values and carbon footprint values to the best of your abilities ")
	b.WriteString("based on the recipe name and description.\n\n")
	fmt.Fprintf(&b, "Recipe: %s, %s.\n", full.RecipeName, full.ShortDescription)
	fmt.Fprintf(&b, "Ingredients: %s.\n", strings.Join(full.Ingredients, ", "))
	fmt.Fprintf(&b, "Restrictions and diseases: %s.\n\n", conditionText)
	b.WriteString("If any of them apply to the recipe, mention it in warnings and deduct points accordingly.\n\n")
	b.WriteString("Explain the points you give, clearly based upon:\n")
	b.WriteString("- Real nutritional values and healthiness of the food\n")
	b.WriteString("- Carbon footprint values\n")
	b.WriteString("- Deductions for violated restrictions and diseases\n\n")
	b.WriteString("Required fields: nutritional_values (string), points_response (non-negative integer), ")
	b.WriteString("justification_response (string). Optional fields: carbon_footprint (grams, number), warnings (string).\n")
	b.WriteString("Structure your response in JSON format as given.")
	return b.String()
}

func quoteAll(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(quoted, ", ")
}

