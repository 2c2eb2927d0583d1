// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
)

// ErrDuplicateConfirmation is returned by RecordConfirmation when the id is
// already in the ledger. Under the orchestrator's lock this only happens
// when another process is confirming the same recipe concurrently.
var ErrDuplicateConfirmation = errors.New("confirmation already recorded")

// Gateway is the persistence contract of the pipeline. Every operation is
// scoped to one tenant.
type Gateway interface {
	// Inventory
	GetInventory(ctx context.Context, tenantID string) (inventory.Inventory, error)
	// UpsertInventoryIngredient merge-adds count when the name exists,
	// otherwise creates the record.
	UpsertInventoryIngredient(ctx context.Context, tenantID string, ing inventory.Ingredient) error
	// DecrementInventoryIngredient subtracts amount and deletes the record
	// when the result is <= 0. A missing name returns inventory.ErrIngredientNotFound.
	DecrementInventoryIngredient(ctx context.Context, tenantID, name string, amount float64) (removed bool, err error)

	// Profile. GetProfile of a tenant that never set one returns profile.New(tenantID).
	GetProfile(ctx context.Context, tenantID string) (*profile.Profile, error)
	SetProfile(ctx context.Context, p *profile.Profile) error
	// AddExperience atomically adds points to the stored exp, creating an
	// empty profile first when needed.
	AddExperience(ctx context.Context, tenantID string, points int) error

	// Recipe history, keyed by recipe name, full overwrite
	UpsertRecipe(ctx context.Context, tenantID string, r *recipe.Recipe) error
	ListRecipes(ctx context.Context, tenantID string) ([]*recipe.Recipe, error)

	// Confirmation ledger
	HasConfirmation(ctx context.Context, tenantID, confirmationID string) (bool, error)
	RecordConfirmation(ctx context.Context, c recipe.Confirmation) error
	// ReleaseConfirmation removes a ledger entry whose writes did not
	// complete. Removing a missing id is not an error.
	ReleaseConfirmation(ctx context.Context, tenantID, confirmationID string) error
}

// Transactor is implemented by gateways that can apply several writes atomically.
type Transactor interface {
	// InTransaction runs fn against a gateway bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTransaction(ctx context.Context, fn func(tx Gateway) error) error
}
