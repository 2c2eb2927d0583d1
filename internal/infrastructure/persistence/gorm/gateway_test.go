package gorm_test

import (
	"context"
	"testing"

	"github.com/ecofridge/server/internal/infrastructure/persistence/gatewaytest"
	gormgw "github.com/ecofridge/server/internal/infrastructure/persistence/gorm"
	"github.com/ecofridge/server/internal/infrastructure/persistence/sqlite"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteGateway(t *testing.T) outbound.Gateway {
	db, err := sqlite.SetupDatabase("", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gormgw.NewGateway(db)
}

func TestGatewayContract_SQLite(t *testing.T) {
	gatewaytest.Run(t, newSQLiteGateway)
}

func TestRecipeWithoutOptionalFields(t *testing.T) {
	ctx := context.Background()
	gw := newSQLiteGateway(t)

	r := gatewaytest.SampleRecipe("Plain", 1)
	r.CarbonFootprint = nil
	require.NoError(t, gw.UpsertRecipe(ctx, "t1", r))

	recipes, err := gw.ListRecipes(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Nil(t, recipes[0].CarbonFootprint)
	assert.Nil(t, recipes[0].IngredientUsage)
	assert.Empty(t, recipes[0].URL)
}
