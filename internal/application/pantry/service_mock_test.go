package pantry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ecofridge/server/internal/application/pantry"
	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/ports/inbound"
	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/ecofridge/server/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMockedService(t *testing.T) (*pantry.Service, *testutils.MockGateway, *testutils.MockGenerator) {
	gw := &testutils.MockGateway{}
	gen := &testutils.MockGenerator{}
	svc := pantry.NewService(gw, gen, nil, nil, pantry.DefaultOptions(), zaptest.NewLogger(t))
	return svc, gw, gen
}

func TestConfirmRecipe_WriteFailureIsCommitStageDatabaseError(t *testing.T) {
	svc, gw, _ := newMockedService(t)
	ctx := context.Background()

	recipes := testutils.NewRecipeFactory(7)
	rec := recipes.Recipe("tomato")
	tomato := testutils.NewIngredientFactory(7).Named("tomato", 10)

	gw.On("HasConfirmation", ctx, "user1", rec.Fingerprint()).Return(false, nil)
	gw.On("GetInventory", ctx, "user1").Return(inventory.Inventory{tomato}, nil)
	gw.On("RecordConfirmation", ctx, mock.AnythingOfType("recipe.Confirmation")).Return(nil)
	gw.On("DecrementInventoryIngredient", ctx, "user1", "tomato", mock.AnythingOfType("float64")).Return(false, nil)
	gw.On("AddExperience", ctx, "user1", rec.PointsResponse).Return(nil)
	gw.On("UpsertRecipe", ctx, "user1", mock.AnythingOfType("*recipe.Recipe")).Return(errors.New("disk full"))
	gw.On("ReleaseConfirmation", mock.Anything, "user1", rec.Fingerprint()).Return(nil)

	_, err := svc.ConfirmRecipe(ctx, inbound.ConfirmCommand{RecipeName: rec.RecipeName, Record: rec})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeDatabaseError))
	assert.Equal(t, apperrors.StageCommit, apperrors.StageOf(err))
	gw.AssertExpectations(t)
}

func TestConfirmRecipe_LedgerClaimedFirst(t *testing.T) {
	svc, gw, _ := newMockedService(t)
	ctx := context.Background()

	rec := testutils.NewRecipeFactory(7).Recipe("tomato")
	tomato := testutils.NewIngredientFactory(7).Named("tomato", 10)

	var order []string
	gw.On("HasConfirmation", ctx, "user1", rec.Fingerprint()).Return(false, nil)
	gw.On("GetInventory", ctx, "user1").Return(inventory.Inventory{tomato}, nil)
	gw.On("RecordConfirmation", ctx, mock.AnythingOfType("recipe.Confirmation")).
		Run(func(mock.Arguments) { order = append(order, "ledger") }).Return(nil)
	gw.On("DecrementInventoryIngredient", ctx, "user1", "tomato", mock.AnythingOfType("float64")).
		Run(func(mock.Arguments) { order = append(order, "inventory") }).Return(false, nil)
	gw.On("AddExperience", ctx, "user1", rec.PointsResponse).
		Run(func(mock.Arguments) { order = append(order, "exp") }).Return(nil)
	gw.On("UpsertRecipe", ctx, "user1", mock.AnythingOfType("*recipe.Recipe")).
		Run(func(mock.Arguments) { order = append(order, "recipe") }).Return(nil)
	gw.On("GetProfile", ctx, "user1").Return(profile.New("user1"), nil)

	_, err := svc.ConfirmRecipe(ctx, inbound.ConfirmCommand{RecipeName: rec.RecipeName, Record: rec})

	require.NoError(t, err)
	assert.Equal(t, []string{"ledger", "inventory", "exp", "recipe"}, order)
	gw.AssertNotCalled(t, "ReleaseConfirmation", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmRecipe_ConcurrentWriterWinsLedger(t *testing.T) {
	svc, gw, _ := newMockedService(t)
	ctx := context.Background()

	rec := testutils.NewRecipeFactory(4).Recipe("tomato")
	tomato := testutils.NewIngredientFactory(4).Named("tomato", 10)

	// Another process confirmed between the ledger check and the claim.
	gw.On("HasConfirmation", ctx, "user1", rec.Fingerprint()).Return(false, nil)
	gw.On("GetInventory", ctx, "user1").Return(inventory.Inventory{tomato}, nil)
	gw.On("RecordConfirmation", ctx, mock.AnythingOfType("recipe.Confirmation")).
		Return(outbound.ErrDuplicateConfirmation)

	_, err := svc.ConfirmRecipe(ctx, inbound.ConfirmCommand{RecipeName: rec.RecipeName, Record: rec})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeStateConflict))
	assert.Equal(t, apperrors.StageCommit, apperrors.StageOf(err))
	gw.AssertNotCalled(t, "DecrementInventoryIngredient", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "AddExperience", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "UpsertRecipe", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "ReleaseConfirmation", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmRecipe_LedgerReadFailure(t *testing.T) {
	svc, gw, _ := newMockedService(t)
	ctx := context.Background()
	rec := testutils.NewRecipeFactory(3).Recipe("onion")

	gw.On("HasConfirmation", ctx, "user1", rec.Fingerprint()).Return(false, errors.New("connection reset"))

	_, err := svc.ConfirmRecipe(ctx, inbound.ConfirmCommand{RecipeName: rec.RecipeName, Record: rec})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeDatabaseError))
	gw.AssertNotCalled(t, "GetInventory", mock.Anything, mock.Anything)
}

func TestGenerateRecipe_PassesProfileToGenerator(t *testing.T) {
	svc, gw, gen := newMockedService(t)
	ctx := context.Background()

	prof := profile.New("user1")
	prof.Allergies = []string{"dairy"}
	prof.Restrictions = []string{"pork"}
	prof.Diseases = []string{"diabetes"}

	recipes := testutils.NewRecipeFactory(11)
	full := recipes.Full("onion", "tomato")
	assessment := recipes.Assessment()
	ingredients := testutils.NewIngredientFactory(11)

	gw.On("GetProfile", ctx, "user1").Return(prof, nil)
	gw.On("GetInventory", ctx, "user1").Return(inventory.Inventory{
		ingredients.Named("onion", 2),
		ingredients.Named("tomato", 4),
	}, nil)
	gen.On("SynthesizeRecipe", ctx, []string{"onion", "tomato"}, []string{"dairy"}, []string{"pork"}).Return(&full, nil)
	gen.On("AssessPoints", ctx, full, []string{"pork"}, []string{"diabetes"}).Return(&assessment, nil)

	res, err := svc.GenerateRecipe(ctx, "")

	require.NoError(t, err)
	assert.NotEmpty(t, res.ProposalID)
	assert.Equal(t, full.RecipeName, res.Recipe.RecipeName)
	gen.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestGenerateRecipe_AssessmentFailureWritesNothing(t *testing.T) {
	svc, gw, gen := newMockedService(t)
	ctx := context.Background()

	full := testutils.NewRecipeFactory(5).Full("rice")
	gw.On("GetProfile", ctx, "user1").Return(profile.New("user1"), nil)
	gw.On("GetInventory", ctx, "user1").Return(inventory.Inventory{testutils.NewIngredientFactory(5).Named("rice", 1)}, nil)
	gen.On("SynthesizeRecipe", ctx, mock.Anything, mock.Anything, mock.Anything).Return(&full, nil)
	gen.On("AssessPoints", ctx, mock.AnythingOfType("recipe.FullRecipe"), mock.Anything, mock.Anything).
		Return(nil, apperrors.NewGenerationError(apperrors.StageAssessment, errors.New("bad json")))

	_, err := svc.GenerateRecipe(ctx, "user1")

	require.Error(t, err)
	assert.Equal(t, apperrors.StageAssessment, apperrors.StageOf(err))
	gw.AssertNotCalled(t, "AddExperience", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "UpsertRecipe", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "UpsertInventoryIngredient", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestIngredients_PartialFailureSurfacesDatabaseError(t *testing.T) {
	svc, gw, _ := newMockedService(t)
	ctx := context.Background()
	batch := testutils.NewIngredientFactory(9).Batch(3)

	gw.On("UpsertInventoryIngredient", ctx, "user1", mock.AnythingOfType("inventory.Ingredient")).
		Return(errors.New("timeout")).Once()

	_, err := svc.IngestIngredients(ctx, inbound.IngestCommand{Ingredients: batch})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeDatabaseError))
	gw.AssertNumberOfCalls(t, "UpsertInventoryIngredient", 1)
}
