package gorm

import (
	"context"
	"errors"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/ports/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gateway implements outbound.Gateway on a relational database
type Gateway struct {
	db *gorm.DB
}

// NewGateway creates a gateway over an open, migrated database
func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

var (
	_ outbound.Gateway    = (*Gateway)(nil)
	_ outbound.Transactor = (*Gateway)(nil)
)

// InTransaction runs fn inside one database transaction
func (g *Gateway) InTransaction(ctx context.Context, fn func(tx outbound.Gateway) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gateway{db: tx})
	})
}

// GetInventory returns the tenant's ingredients ordered by name
func (g *Gateway) GetInventory(ctx context.Context, tenantID string) (inventory.Inventory, error) {
	var models []IngredientModel
	result := g.db.WithContext(ctx).
		Where("tenant_id = ? AND count > 0", tenantID).
		Order("name").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	inv := make(inventory.Inventory, len(models))
	for i := range models {
		inv[i] = ModelToIngredient(&models[i])
	}
	return inv, nil
}

// UpsertInventoryIngredient inserts the ingredient or adds its count to the
// existing row, taking the other columns from the incoming value.
func (g *Gateway) UpsertInventoryIngredient(ctx context.Context, tenantID string, ing inventory.Ingredient) error {
	ing = ing.Normalized()
	if err := ing.Validate(); err != nil {
		return err
	}

	model := IngredientToModel(tenantID, ing)
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":            gorm.Expr("inventory_items.count + excluded.count"),
			"units":            gorm.Expr("excluded.units"),
			"expiry":           gorm.Expr("excluded.expiry"),
			"carbon_footprint": gorm.Expr("excluded.carbon_footprint"),
			"updated_at":       gorm.Expr("excluded.updated_at"),
		}),
	}).Create(model).Error
}

// DecrementInventoryIngredient subtracts amount and deletes the row when
// nothing is left. Both statements run in one transaction.
func (g *Gateway) DecrementInventoryIngredient(ctx context.Context, tenantID, name string, amount float64) (bool, error) {
	key := inventory.NormalizeName(name)
	removed := false

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&IngredientModel{}).
			Where("tenant_id = ? AND name = ?", tenantID, key).
			Update("count", gorm.Expr("count - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return inventory.ErrIngredientNotFound
		}

		deleted := tx.Where("tenant_id = ? AND name = ? AND count <= 0", tenantID, key).
			Delete(&IngredientModel{})
		if deleted.Error != nil {
			return deleted.Error
		}
		removed = deleted.RowsAffected > 0
		return nil
	})
	return removed, err
}

// GetProfile returns the stored profile or an empty one
func (g *Gateway) GetProfile(ctx context.Context, tenantID string) (*profile.Profile, error) {
	var model ProfileModel
	result := g.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return profile.New(tenantID), nil
		}
		return nil, result.Error
	}
	return ModelToProfile(&model), nil
}

// SetProfile overwrites the profile row
func (g *Gateway) SetProfile(ctx context.Context, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(ProfileToModel(p)).Error
}

// AddExperience adds points to exp with a single statement
func (g *Gateway) AddExperience(ctx context.Context, tenantID string, points int) error {
	if points < 0 {
		return profile.ErrNegativePoints
	}

	seed := ProfileToModel(profile.New(tenantID))
	seed.Exp = points
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"exp":        gorm.Expr("profiles.exp + excluded.exp"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(seed).Error
}

// UpsertRecipe writes the recipe, replacing any recipe of the same name
func (g *Gateway) UpsertRecipe(ctx context.Context, tenantID string, r *recipe.Recipe) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "recipe_name"}},
		UpdateAll: true,
	}).Create(RecipeToModel(tenantID, r)).Error
}

// ListRecipes returns the tenant's recipes ordered by name
func (g *Gateway) ListRecipes(ctx context.Context, tenantID string) ([]*recipe.Recipe, error) {
	var models []RecipeModel
	result := g.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("recipe_name").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	recipes := make([]*recipe.Recipe, len(models))
	for i := range models {
		recipes[i] = ModelToRecipe(&models[i])
	}
	return recipes, nil
}

// HasConfirmation reports whether the ledger holds confirmationID
func (g *Gateway) HasConfirmation(ctx context.Context, tenantID, confirmationID string) (bool, error) {
	var count int64
	result := g.db.WithContext(ctx).Model(&ConfirmationModel{}).
		Where("tenant_id = ? AND confirmation_id = ?", tenantID, confirmationID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// RecordConfirmation appends to the ledger. An existing id is reported as
// outbound.ErrDuplicateConfirmation.
func (g *Gateway) RecordConfirmation(ctx context.Context, c recipe.Confirmation) error {
	result := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ConfirmationToModel(c))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return outbound.ErrDuplicateConfirmation
	}
	return nil
}

// ReleaseConfirmation deletes a ledger row
func (g *Gateway) ReleaseConfirmation(ctx context.Context, tenantID, confirmationID string) error {
	return g.db.WithContext(ctx).
		Where("tenant_id = ? AND confirmation_id = ?", tenantID, confirmationID).
		Delete(&ConfirmationModel{}).Error
}
