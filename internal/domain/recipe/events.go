package recipe

import (
	"time"
)

// Domain Events - Events that occur within the recipe pipeline

// RecipeProposedEvent is raised when a recipe was generated and assessed
type RecipeProposedEvent struct {
	TenantID   string    `json:"tenant_id"`
	ProposalID string    `json:"proposal_id"`
	RecipeName string    `json:"recipe_name"`
	Points     int       `json:"points"`
	ProposedAt time.Time `json:"proposed_at"`
}

func (e RecipeProposedEvent) EventName() string {
	return "recipe.proposed"
}

func (e RecipeProposedEvent) OccurredAt() time.Time {
	return e.ProposedAt
}

// RecipeConfirmedEvent is raised when a recipe was applied to inventory and profile
type RecipeConfirmedEvent struct {
	TenantID       string    `json:"tenant_id"`
	ConfirmationID string    `json:"confirmation_id"`
	RecipeName     string    `json:"recipe_name"`
	Points         int       `json:"points"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

func (e RecipeConfirmedEvent) EventName() string {
	return "recipe.confirmed"
}

func (e RecipeConfirmedEvent) OccurredAt() time.Time {
	return e.ConfirmedAt
}

func (e RecipeProposedEvent) Tenant() string {
	return e.TenantID
}

func (e RecipeConfirmedEvent) Tenant() string {
	return e.TenantID
}
