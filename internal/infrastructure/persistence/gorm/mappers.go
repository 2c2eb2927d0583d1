package gorm

import (
	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
)

// IngredientToModel converts a domain ingredient to a GORM model
func IngredientToModel(tenantID string, ing inventory.Ingredient) *IngredientModel {
	return &IngredientModel{
		TenantID:        tenantID,
		Name:            ing.Name,
		Count:           ing.Count,
		Units:           ing.Units,
		Expiry:          ing.Expiry,
		CarbonFootprint: ing.CarbonFootprint,
	}
}

// ModelToIngredient converts a GORM model to a domain ingredient
func ModelToIngredient(m *IngredientModel) inventory.Ingredient {
	return inventory.Ingredient{
		Name:            m.Name,
		Count:           m.Count,
		Units:           m.Units,
		Expiry:          m.Expiry,
		CarbonFootprint: m.CarbonFootprint,
	}
}

// ProfileToModel converts a domain profile to a GORM model
func ProfileToModel(p *profile.Profile) *ProfileModel {
	return &ProfileModel{
		TenantID:     p.TenantID,
		Name:         p.Name,
		Exp:          p.Exp,
		Allergies:    StringSlice(p.Allergies),
		Restrictions: StringSlice(p.Restrictions),
		Diseases:     StringSlice(p.Diseases),
	}
}

// ModelToProfile converts a GORM model to a domain profile
func ModelToProfile(m *ProfileModel) *profile.Profile {
	p := &profile.Profile{
		TenantID:     m.TenantID,
		Name:         m.Name,
		Exp:          m.Exp,
		Allergies:    []string(m.Allergies),
		Restrictions: []string(m.Restrictions),
		Diseases:     []string(m.Diseases),
	}
	p.Normalize()
	return p
}

// RecipeToModel converts a domain recipe to a GORM model
func RecipeToModel(tenantID string, r *recipe.Recipe) *RecipeModel {
	return &RecipeModel{
		TenantID:              tenantID,
		RecipeName:            r.RecipeName,
		ShortDescription:      r.ShortDescription,
		CookingTime:           r.CookingTime,
		Difficulty:            string(r.Difficulty),
		Ingredients:           StringSlice(r.Ingredients),
		Instructions:          StringSlice(r.Instructions),
		URL:                   r.URL,
		IngredientUsage:       UsageList(r.IngredientUsage),
		NutritionalValues:     r.NutritionalValues,
		CarbonFootprint:       r.CarbonFootprint,
		PointsResponse:        r.PointsResponse,
		JustificationResponse: r.JustificationResponse,
		Warnings:              r.Warnings,
		ProposalID:            r.ProposalID,
		CreatedAt:             r.CreatedAt,
	}
}

// ModelToRecipe converts a GORM model to a domain recipe
func ModelToRecipe(m *RecipeModel) *recipe.Recipe {
	var usage []recipe.IngredientUsage
	if len(m.IngredientUsage) > 0 {
		usage = []recipe.IngredientUsage(m.IngredientUsage)
	}

	return &recipe.Recipe{
		RecipeName:            m.RecipeName,
		ShortDescription:      m.ShortDescription,
		CookingTime:           m.CookingTime,
		Difficulty:            recipe.DifficultyLevel(m.Difficulty),
		Ingredients:           []string(m.Ingredients),
		Instructions:          []string(m.Instructions),
		URL:                   m.URL,
		IngredientUsage:       usage,
		NutritionalValues:     m.NutritionalValues,
		CarbonFootprint:       m.CarbonFootprint,
		PointsResponse:        m.PointsResponse,
		JustificationResponse: m.JustificationResponse,
		Warnings:              m.Warnings,
		ProposalID:            m.ProposalID,
		CreatedAt:             m.CreatedAt,
	}
}

// ConfirmationToModel converts a ledger entry to a GORM model
func ConfirmationToModel(c recipe.Confirmation) *ConfirmationModel {
	return &ConfirmationModel{
		TenantID:       c.TenantID,
		ConfirmationID: c.ConfirmationID,
		RecipeName:     c.RecipeName,
		Points:         c.Points,
		ConfirmedAt:    c.ConfirmedAt,
	}
}
