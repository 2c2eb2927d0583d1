// Package gatewaytest holds the behaviour every persistence gateway must share.
package gatewaytest

import (
	"context"
	"testing"
	"time"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty gateway for one subtest
type Factory func(t *testing.T) outbound.Gateway

// Run exercises a fresh gateway per case against the gateway contract
func Run(t *testing.T, factory Factory) {
	t.Run("IngestMergeAdds", func(t *testing.T) { testIngestMergeAdds(t, factory(t)) })
	t.Run("DecrementFloorsAndDeletes", func(t *testing.T) { testDecrement(t, factory(t)) })
	t.Run("DecrementMissing", func(t *testing.T) { testDecrementMissing(t, factory(t)) })
	t.Run("ProfileDefaultsAndExperience", func(t *testing.T) { testProfile(t, factory(t)) })
	t.Run("RecipeOverwriteByName", func(t *testing.T) { testRecipes(t, factory(t)) })
	t.Run("ConfirmationLedger", func(t *testing.T) { testConfirmations(t, factory(t)) })
	t.Run("TenantsAreIsolated", func(t *testing.T) { testTenants(t, factory(t)) })
	t.Run("TransactionRollsBack", func(t *testing.T) { testTransaction(t, factory(t)) })
}

// Tomato returns a valid ingredient with the given count
func Tomato(count float64) inventory.Ingredient {
	return inventory.Ingredient{Name: "tomato", Count: count, Units: "piece", Expiry: 5, CarbonFootprint: 1}
}

// SampleRecipe returns a valid persisted recipe
func SampleRecipe(name string, points int) *recipe.Recipe {
	carbon := 1.5
	r, err := recipe.NewRecipe(
		recipe.FullRecipe{
			RecipeName:       name,
			ShortDescription: "A quick dish",
			CookingTime:      20,
			Difficulty:       recipe.DifficultyLevelEasy,
			Ingredients:      []string{"2 tomatoes"},
			Instructions:     []string{"Chop", "Serve"},
		},
		recipe.PointsAssessment{
			NutritionalValues:     "120 kcal",
			CarbonFootprint:       &carbon,
			PointsResponse:        points,
			JustificationResponse: "Mostly vegetables",
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func testIngestMergeAdds(t *testing.T, gw outbound.Gateway) {
	ctx := context.Background()

	require.NoError(t, gw.UpsertInventoryIngredient(ctx, "t1", Tomato(2)))
	later := Tomato(3)
	later.Name = " Tomato "
	later.Expiry = 2
	require.NoError(t, gw.UpsertInventoryIngredient(ctx, "t1", later))

	inv, err := gw.GetInventory(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, "tomato", inv[0].Name)
	assert.Equal(t, 5.0, inv[0].Count)
	assert.Equal(t, 2, inv[0].Expiry)
}

func testDecrement(t *testing.T, gw outbound.Gateway) {
	ctx := context.Background()
	require.NoError(t, gw.UpsertInventoryIngredient(ctx, "t1", Tomato(4)))

	removed, err := gw.DecrementInventoryIngredient(ctx, "t1", "tomato", 2)
	require.NoError(t, err)
	assert.False(t, removed)

	inv, err := gw.GetInventory(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, 2.0, inv[0].Count)

	removed, err = gw.DecrementInventoryIngredient(ctx, "t1", "Tomato", 5)
	require.NoError(t, err)
	assert.True(t, removed)

	inv, err = gw.GetInventory(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, inv)
}

func testDecrementMissing(t *testing.T, gw outbound.Gateway) {
	_, err := gw.DecrementInventoryIngredient(context.Background(), "t1", "basil", 1)
	assert.ErrorIs(t, err, inventory.ErrIngredientNotFound)
}

func testProfile(t *testing.T, gw outbound.Gateway) {
	ctx := context.Background()

	p, err := gw.GetProfile(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", p.TenantID)
	assert.Zero(t, p.Exp)

	require.NoError(t, gw.AddExperience(ctx, "t1", 7))
	require.NoError(t, gw.SetProfile(ctx, &profile.Profile{
		TenantID:     "t1",
		Name:         "Sam",
		Exp:          7,
		Allergies:    []string{"dairy"},
		Restrictions: []string{"pork"},
		Diseases:     []string{},
	}))
	require.NoError(t, gw.AddExperience(ctx, "t1", 3))

	p, err = gw.GetProfile(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", p.Name)
	assert.Equal(t, 10, p.Exp)
	assert.Equal(t, []string{"dairy"}, p.Allergies)
	assert.Equal(t, []string{"pork"}, p.Restrictions)
}

func testRecipes(t *testing.T, gw outbound.Gateway) {
	ctx := context.Background()

	require.NoError(t, gw.UpsertRecipe(ctx, "t1", SampleRecipe("Salad", 5)))
	require.NoError(t, gw.UpsertRecipe(ctx, "t1", SampleRecipe("Soup", 6)))
	require.NoError(t, gw.UpsertRecipe(ctx, "t1", SampleRecipe("Salad", 9)))

	recipes, err := gw.ListRecipes(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, "Salad", recipes[0].RecipeName)
	assert.Equal(t, 9, recipes[0].PointsResponse)
	assert.Equal(t, []string{"Chop", "Serve"}, recipes[0].Instructions)
	require.NotNil(t, recipes[0].CarbonFootprint)
	assert.Equal(t, 1.5, *recipes[0].CarbonFootprint)
}

func testConfirmations(t *testing.T, gw outbound.Gateway) {
	ctx := context.Background()
	c := recipe.Confirmation{
		TenantID:       "t1",
		ConfirmationID: "abc",
		RecipeName:     "Salad",
		Points:         5,
		ConfirmedAt:    time.Now().UTC(),
	}

	seen, err := gw.HasConfirmation(ctx, "t1", "abc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, gw.RecordConfirmation(ctx, c))
	assert.ErrorIs(t, gw.RecordConfirmation(ctx, c), outbound.ErrDuplicateConfirmation)

	seen, err = gw.HasConfirmation(ctx, "t1", "abc")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, gw.ReleaseConfirmation(ctx, "t1", "abc"))
	require.NoError(t, gw.ReleaseConfirmation(ctx, "t1", "abc"), "releasing twice is harmless")
	seen, err = gw.HasConfirmation(ctx, "t1", "abc")
	require.NoError(t, err)
	assert.False(t, seen)
	require.NoError(t, gw.RecordConfirmation(ctx, c), "a released id can be claimed again")
}

func testTenants(t *testing.T, gw outbound.Gateway) {
	ctx := context.Background()
	require.NoError(t, gw.UpsertInventoryIngredient(ctx, "t1", Tomato(1)))
	require.NoError(t, gw.AddExperience(ctx, "t1", 4))

	inv, err := gw.GetInventory(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, inv)

	p, err := gw.GetProfile(ctx, "t2")
	require.NoError(t, err)
	assert.Zero(t, p.Exp)
}

func testTransaction(t *testing.T, gw outbound.Gateway) {
	tx, ok := gw.(outbound.Transactor)
	if !ok {
		t.Skip("gateway is not transactional")
	}
	ctx := context.Background()
	require.NoError(t, gw.UpsertInventoryIngredient(ctx, "t1", Tomato(4)))

	err := tx.InTransaction(ctx, func(g outbound.Gateway) error {
		if _, err := g.DecrementInventoryIngredient(ctx, "t1", "tomato", 4); err != nil {
			return err
		}
		if err := g.AddExperience(ctx, "t1", 5); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	inv, err := gw.GetInventory(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, 4.0, inv[0].Count)

	p, err := gw.GetProfile(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, p.Exp)
}
