// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"
	"time"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
)

// PantryService defines the use cases of the inventory and recipe pipeline
// This is the primary port that HTTP handlers and other driving adapters will use
type PantryService interface {
	// Inventory
	ScanIngredients(ctx context.Context, cmd ScanCommand) ([]inventory.Ingredient, error)
	IngestIngredients(ctx context.Context, cmd IngestCommand) (*IngestResult, error)
	ScanAndIngest(ctx context.Context, cmd ScanCommand) (*IngestResult, error)
	ListInventory(ctx context.Context, tenantID string) (inventory.Inventory, error)

	// Recipe pipeline
	GenerateRecipe(ctx context.Context, tenantID string) (*GenerateResult, error)
	ConfirmRecipe(ctx context.Context, cmd ConfirmCommand) (*ConfirmResult, error)
	ConfirmProposal(ctx context.Context, tenantID, proposalID string) (*ConfirmResult, error)
	ListRecipes(ctx context.Context, tenantID string) ([]*recipe.Recipe, error)

	// Profile
	GetProfile(ctx context.Context, tenantID string) (*profile.Profile, error)
	SetProfile(ctx context.Context, cmd SetProfileCommand) (*profile.Profile, error)
}

// Command objects for operations

// ScanCommand carries a photo of ingredients
type ScanCommand struct {
	TenantID string
	Image    []byte
	MIMEType string
}

// IngestCommand merges ingredients into a tenant's inventory
type IngestCommand struct {
	TenantID    string
	Ingredients []inventory.Ingredient
}

// ConfirmCommand applies a previously generated, caller-approved recipe.
// Consumption optionally overrides which inventory items are used up and
// by how many units.
type ConfirmCommand struct {
	TenantID    string             `json:"-"`
	RecipeName  string             `json:"recipe_name" validate:"required"`
	Record      *recipe.Recipe     `json:"record" validate:"required"`
	Consumption map[string]float64 `json:"consumption,omitempty"`
}

// SetProfileCommand fully overwrites a profile. Exp is never lowered below
// the stored value unless AllowExpReset is set.
type SetProfileCommand struct {
	TenantID      string   `json:"-"`
	Name          string   `json:"name"`
	Exp           *int     `json:"exp,omitempty"`
	Allergies     []string `json:"allergies"`
	Restrictions  []string `json:"restrictions"`
	Diseases      []string `json:"diseases"`
	AllowExpReset bool     `json:"allow_exp_reset"`
}

// Results

// IngestResult reports the inventory after a merge
type IngestResult struct {
	Ingested  []inventory.Ingredient `json:"ingested"`
	Inventory inventory.Inventory    `json:"inventory"`
}

// GenerateResult is an assessed recipe awaiting confirmation
type GenerateResult struct {
	ProposalID  string                  `json:"proposal_id"`
	Recipe      recipe.FullRecipe       `json:"recipe"`
	Assessment  recipe.PointsAssessment `json:"assessment"`
	GeneratedAt time.Time               `json:"generated_at"`
	RunID       string                  `json:"run_id"`
}

// ConfirmResult reports the outcome of a confirmation
type ConfirmResult struct {
	ConfirmationID string             `json:"confirmation_id"`
	RecipeName     string             `json:"recipe_name"`
	PointsAwarded  int                `json:"points_awarded"`
	Exp            int                `json:"exp"`
	Consumed       map[string]float64 `json:"consumed"`
	Removed        []string           `json:"removed"`
	Replayed       bool               `json:"replayed"`
}
