// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/google/uuid"
)

var produce = []string{
	"tomato", "onion", "garlic", "carrot", "spinach", "potato", "pepper",
	"zucchini", "mushroom", "lentils", "rice", "egg", "milk", "cheese",
}

var units = []string{"piece", "gram", "ml", "bunch", "cup"}

// IngredientFactory creates valid inventory ingredients
type IngredientFactory struct {
	faker *gofakeit.Faker
}

// NewIngredientFactory creates a new ingredient factory with seeded faker
func NewIngredientFactory(seed int64) *IngredientFactory {
	return &IngredientFactory{faker: gofakeit.New(seed)}
}

// Create returns one random valid ingredient
func (f *IngredientFactory) Create() inventory.Ingredient {
	return inventory.Ingredient{
		Name:            f.faker.RandomString(produce),
		Count:           float64(f.faker.Number(1, 6)),
		Units:           f.faker.RandomString(units),
		Expiry:          f.faker.Number(1, 14),
		CarbonFootprint: f.faker.Number(1, 3),
	}
}

// Named returns a random valid ingredient with a fixed name
func (f *IngredientFactory) Named(name string, count float64) inventory.Ingredient {
	ing := f.Create()
	ing.Name = name
	ing.Count = count
	return ing
}

// Batch returns n ingredients with distinct names. n is capped at the
// size of the produce list.
func (f *IngredientFactory) Batch(n int) []inventory.Ingredient {
	names := append([]string(nil), produce...)
	f.faker.ShuffleStrings(names)
	if n > len(names) {
		n = len(names)
	}

	batch := make([]inventory.Ingredient, 0, n)
	for _, name := range names[:n] {
		batch = append(batch, f.Named(name, float64(f.faker.Number(1, 6))))
	}
	return batch
}

// RecipeFactory creates valid generated recipes and assessments
type RecipeFactory struct {
	faker *gofakeit.Faker
}

// NewRecipeFactory creates a new recipe factory with seeded faker
func NewRecipeFactory(seed int64) *RecipeFactory {
	return &RecipeFactory{faker: gofakeit.New(seed)}
}

// Full returns a synthesized recipe that only uses the given names
func (f *RecipeFactory) Full(names ...string) recipe.FullRecipe {
	if len(names) == 0 {
		names = []string{f.faker.RandomString(produce)}
	}

	lines := make([]string, 0, len(names))
	usage := make([]recipe.IngredientUsage, 0, len(names))
	for _, name := range names {
		amount := float64(f.faker.Number(1, 3))
		lines = append(lines, fmt.Sprintf("%g %s", amount, name))
		usage = append(usage, recipe.IngredientUsage{Name: name, Amount: amount})
	}

	return recipe.FullRecipe{
		RecipeName:       capitalize(f.faker.Adjective()) + " " + capitalize(names[0]) + " Bowl",
		ShortDescription: f.faker.Sentence(8),
		CookingTime:      float64(f.faker.Number(10, 90)),
		Difficulty:       recipe.DifficultyLevels[f.faker.Number(0, len(recipe.DifficultyLevels)-1)],
		Ingredients:      lines,
		Instructions:     []string{f.faker.Sentence(6), f.faker.Sentence(6), f.faker.Sentence(4)},
		IngredientUsage:  usage,
	}
}

// Assessment returns a valid points assessment
func (f *RecipeFactory) Assessment() recipe.PointsAssessment {
	carbon := f.faker.Float64Range(0.2, 4)
	return recipe.PointsAssessment{
		NutritionalValues:     fmt.Sprintf("%d kcal, %dg protein", f.faker.Number(150, 800), f.faker.Number(3, 40)),
		CarbonFootprint:       &carbon,
		PointsResponse:        f.faker.Number(0, 100),
		JustificationResponse: f.faker.Sentence(10),
	}
}

// Recipe returns a persisted recipe built from a random recipe and assessment
func (f *RecipeFactory) Recipe(names ...string) *recipe.Recipe {
	r, err := recipe.NewRecipe(f.Full(names...), f.Assessment())
	if err != nil {
		panic(fmt.Sprintf("recipe factory produced an invalid recipe: %v", err))
	}
	return r
}

// Confirmation returns a ledger entry for a recipe
func (f *RecipeFactory) Confirmation(tenantID string, r *recipe.Recipe) recipe.Confirmation {
	return recipe.Confirmation{
		TenantID:       tenantID,
		ConfirmationID: uuid.NewString(),
		RecipeName:     r.RecipeName,
		Points:         r.PointsResponse,
		ConfirmedAt:    time.Now().UTC(),
	}
}

// ProfileFactory creates dietary profiles
type ProfileFactory struct {
	faker *gofakeit.Faker
}

// NewProfileFactory creates a new profile factory with seeded faker
func NewProfileFactory(seed int64) *ProfileFactory {
	return &ProfileFactory{faker: gofakeit.New(seed)}
}

// Create returns a normalized profile for the tenant
func (f *ProfileFactory) Create(tenantID string) *profile.Profile {
	p := profile.New(tenantID)
	p.Name = f.faker.Name()
	p.Exp = f.faker.Number(0, 500)
	p.Allergies = []string{f.faker.RandomString([]string{"dairy", "nuts", "gluten", "shellfish"})}
	p.Restrictions = []string{f.faker.RandomString([]string{"pork", "beef", "alcohol"})}
	p.Normalize()
	return p
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
