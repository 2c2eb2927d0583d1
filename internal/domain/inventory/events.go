package inventory

import "time"

// IngredientsIngestedEvent is raised after a batch was merged into an inventory
type IngredientsIngestedEvent struct {
	TenantID   string    `json:"tenant_id"`
	Names      []string  `json:"names"`
	IngestedAt time.Time `json:"ingested_at"`
}

func (e IngredientsIngestedEvent) EventName() string {
	return "inventory.ingested"
}

func (e IngredientsIngestedEvent) OccurredAt() time.Time {
	return e.IngestedAt
}

// IngredientDepletedEvent is raised when a confirmation consumed the last of an ingredient
type IngredientDepletedEvent struct {
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	DepletedAt time.Time `json:"depleted_at"`
}

func (e IngredientDepletedEvent) EventName() string {
	return "inventory.depleted"
}

func (e IngredientDepletedEvent) OccurredAt() time.Time {
	return e.DepletedAt
}

func (e IngredientsIngestedEvent) Tenant() string {
	return e.TenantID
}

func (e IngredientDepletedEvent) Tenant() string {
	return e.TenantID
}
