// Package testutils provides mock implementations for testing
package testutils

import (
	"context"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/stretchr/testify/mock"
)

// MockGateway provides a mock implementation of outbound.Gateway. It is not
// a Transactor, so the pipeline writes through it directly.
type MockGateway struct {
	mock.Mock
}

var _ outbound.Gateway = (*MockGateway)(nil)

// GetInventory returns the stubbed inventory
func (m *MockGateway) GetInventory(ctx context.Context, tenantID string) (inventory.Inventory, error) {
	args := m.Called(ctx, tenantID)
	if inv, ok := args.Get(0).(inventory.Inventory); ok {
		return inv, args.Error(1)
	}
	return nil, args.Error(1)
}

// UpsertInventoryIngredient records the call
func (m *MockGateway) UpsertInventoryIngredient(ctx context.Context, tenantID string, ing inventory.Ingredient) error {
	return m.Called(ctx, tenantID, ing).Error(0)
}

// DecrementInventoryIngredient records the call
func (m *MockGateway) DecrementInventoryIngredient(ctx context.Context, tenantID, name string, amount float64) (bool, error) {
	args := m.Called(ctx, tenantID, name, amount)
	return args.Bool(0), args.Error(1)
}

// GetProfile returns the stubbed profile
func (m *MockGateway) GetProfile(ctx context.Context, tenantID string) (*profile.Profile, error) {
	args := m.Called(ctx, tenantID)
	if p, ok := args.Get(0).(*profile.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// SetProfile records the call
func (m *MockGateway) SetProfile(ctx context.Context, p *profile.Profile) error {
	return m.Called(ctx, p).Error(0)
}

// AddExperience records the call
func (m *MockGateway) AddExperience(ctx context.Context, tenantID string, points int) error {
	return m.Called(ctx, tenantID, points).Error(0)
}

// UpsertRecipe records the call
func (m *MockGateway) UpsertRecipe(ctx context.Context, tenantID string, r *recipe.Recipe) error {
	return m.Called(ctx, tenantID, r).Error(0)
}

// ListRecipes returns the stubbed history
func (m *MockGateway) ListRecipes(ctx context.Context, tenantID string) ([]*recipe.Recipe, error) {
	args := m.Called(ctx, tenantID)
	if rs, ok := args.Get(0).([]*recipe.Recipe); ok {
		return rs, args.Error(1)
	}
	return nil, args.Error(1)
}

// HasConfirmation returns the stubbed ledger lookup
func (m *MockGateway) HasConfirmation(ctx context.Context, tenantID, confirmationID string) (bool, error) {
	args := m.Called(ctx, tenantID, confirmationID)
	return args.Bool(0), args.Error(1)
}

// RecordConfirmation records the call
func (m *MockGateway) RecordConfirmation(ctx context.Context, c recipe.Confirmation) error {
	return m.Called(ctx, c).Error(0)
}

// ReleaseConfirmation records the call
func (m *MockGateway) ReleaseConfirmation(ctx context.Context, tenantID, confirmationID string) error {
	return m.Called(ctx, tenantID, confirmationID).Error(0)
}

// MockGenerator provides a mock implementation of the generation pipeline
type MockGenerator struct {
	mock.Mock
}

// DetectIngredients returns the stubbed detections
func (m *MockGenerator) DetectIngredients(ctx context.Context, image []byte, mimeType string) ([]inventory.Ingredient, error) {
	args := m.Called(ctx, image, mimeType)
	if items, ok := args.Get(0).([]inventory.Ingredient); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

// SynthesizeRecipe returns the stubbed recipe
func (m *MockGenerator) SynthesizeRecipe(ctx context.Context, ingredientNames, allergies, restrictions []string) (*recipe.FullRecipe, error) {
	args := m.Called(ctx, ingredientNames, allergies, restrictions)
	if full, ok := args.Get(0).(*recipe.FullRecipe); ok {
		return full, args.Error(1)
	}
	return nil, args.Error(1)
}

// AssessPoints returns the stubbed assessment
func (m *MockGenerator) AssessPoints(ctx context.Context, full recipe.FullRecipe, restrictions, diseases []string) (*recipe.PointsAssessment, error) {
	args := m.Called(ctx, full, restrictions, diseases)
	if a, ok := args.Get(0).(*recipe.PointsAssessment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
