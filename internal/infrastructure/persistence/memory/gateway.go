// Package memory provides the in-memory persistence gateway
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/ports/outbound"
)

// Gateway keeps every tenant's state in process memory. It is the default
// backend and the one the pipeline tests run against.
type Gateway struct {
	mutex sync.RWMutex
	data  *store
}

// NewGateway creates an empty in-memory gateway
func NewGateway() *Gateway {
	return &Gateway{data: newStore()}
}

var (
	_ outbound.Gateway    = (*Gateway)(nil)
	_ outbound.Transactor = (*Gateway)(nil)
)

// InTransaction runs fn against a copy of the state and swaps it in when
// fn succeeds.
func (g *Gateway) InTransaction(ctx context.Context, fn func(tx outbound.Gateway) error) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	draft := g.data.clone()
	if err := fn(draft); err != nil {
		return err
	}
	g.data = draft
	return nil
}

func (g *Gateway) GetInventory(ctx context.Context, tenantID string) (inventory.Inventory, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.data.GetInventory(ctx, tenantID)
}

func (g *Gateway) UpsertInventoryIngredient(ctx context.Context, tenantID string, ing inventory.Ingredient) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.data.UpsertInventoryIngredient(ctx, tenantID, ing)
}

func (g *Gateway) DecrementInventoryIngredient(ctx context.Context, tenantID, name string, amount float64) (bool, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.data.DecrementInventoryIngredient(ctx, tenantID, name, amount)
}

func (g *Gateway) GetProfile(ctx context.Context, tenantID string) (*profile.Profile, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.data.GetProfile(ctx, tenantID)
}

func (g *Gateway) SetProfile(ctx context.Context, p *profile.Profile) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.data.SetProfile(ctx, p)
}

func (g *Gateway) AddExperience(ctx context.Context, tenantID string, points int) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.data.AddExperience(ctx, tenantID, points)
}

func (g *Gateway) UpsertRecipe(ctx context.Context, tenantID string, r *recipe.Recipe) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.data.UpsertRecipe(ctx, tenantID, r)
}

func (g *Gateway) ListRecipes(ctx context.Context, tenantID string) ([]*recipe.Recipe, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.data.ListRecipes(ctx, tenantID)
}

func (g *Gateway) HasConfirmation(ctx context.Context, tenantID, confirmationID string) (bool, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.data.HasConfirmation(ctx, tenantID, confirmationID)
}

func (g *Gateway) RecordConfirmation(ctx context.Context, c recipe.Confirmation) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.data.RecordConfirmation(ctx, c)
}

func (g *Gateway) ReleaseConfirmation(ctx context.Context, tenantID, confirmationID string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.data.ReleaseConfirmation(ctx, tenantID, confirmationID)
}

// store is the unlocked state. Callers hold Gateway.mutex.
type store struct {
	inventories   map[string]map[string]inventory.Ingredient
	profiles      map[string]*profile.Profile
	recipes       map[string]map[string]*recipe.Recipe
	confirmations map[string]map[string]recipe.Confirmation
}

func newStore() *store {
	return &store{
		inventories:   make(map[string]map[string]inventory.Ingredient),
		profiles:      make(map[string]*profile.Profile),
		recipes:       make(map[string]map[string]*recipe.Recipe),
		confirmations: make(map[string]map[string]recipe.Confirmation),
	}
}

func (s *store) clone() *store {
	c := newStore()
	for tenant, items := range s.inventories {
		c.inventories[tenant] = make(map[string]inventory.Ingredient, len(items))
		for k, v := range items {
			c.inventories[tenant][k] = v
		}
	}
	for tenant, p := range s.profiles {
		c.profiles[tenant] = p.Clone()
	}
	for tenant, items := range s.recipes {
		c.recipes[tenant] = make(map[string]*recipe.Recipe, len(items))
		for k, v := range items {
			c.recipes[tenant][k] = v
		}
	}
	for tenant, items := range s.confirmations {
		c.confirmations[tenant] = make(map[string]recipe.Confirmation, len(items))
		for k, v := range items {
			c.confirmations[tenant][k] = v
		}
	}
	return c
}

func (s *store) GetInventory(_ context.Context, tenantID string) (inventory.Inventory, error) {
	inv := make(inventory.Inventory, 0, len(s.inventories[tenantID]))
	for _, ing := range s.inventories[tenantID] {
		inv = append(inv, ing)
	}
	return inv.Sorted(), nil
}

func (s *store) UpsertInventoryIngredient(_ context.Context, tenantID string, ing inventory.Ingredient) error {
	ing = ing.Normalized()
	if err := ing.Validate(); err != nil {
		return err
	}

	items, ok := s.inventories[tenantID]
	if !ok {
		items = make(map[string]inventory.Ingredient)
		s.inventories[tenantID] = items
	}
	if existing, ok := items[ing.Name]; ok {
		ing = existing.MergeAdd(ing)
	}
	items[ing.Name] = ing
	return nil
}

func (s *store) DecrementInventoryIngredient(_ context.Context, tenantID, name string, amount float64) (bool, error) {
	key := inventory.NormalizeName(name)
	items := s.inventories[tenantID]
	existing, ok := items[key]
	if !ok {
		return false, inventory.ErrIngredientNotFound
	}

	remaining, removed := existing.Decrement(amount)
	if removed {
		delete(items, key)
		return true, nil
	}
	items[key] = remaining
	return false, nil
}

func (s *store) GetProfile(_ context.Context, tenantID string) (*profile.Profile, error) {
	if p, ok := s.profiles[tenantID]; ok {
		return p.Clone(), nil
	}
	return profile.New(tenantID), nil
}

func (s *store) SetProfile(_ context.Context, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.profiles[p.TenantID] = p.Clone()
	return nil
}

func (s *store) AddExperience(_ context.Context, tenantID string, points int) error {
	p, ok := s.profiles[tenantID]
	if !ok {
		p = profile.New(tenantID)
	} else {
		p = p.Clone()
	}
	if err := p.AddExperience(points); err != nil {
		return err
	}
	s.profiles[tenantID] = p
	return nil
}

func (s *store) UpsertRecipe(_ context.Context, tenantID string, r *recipe.Recipe) error {
	items, ok := s.recipes[tenantID]
	if !ok {
		items = make(map[string]*recipe.Recipe)
		s.recipes[tenantID] = items
	}
	stored := *r
	items[r.RecipeName] = &stored
	return nil
}

func (s *store) ListRecipes(_ context.Context, tenantID string) ([]*recipe.Recipe, error) {
	out := make([]*recipe.Recipe, 0, len(s.recipes[tenantID]))
	for _, r := range s.recipes[tenantID] {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RecipeName < out[b].RecipeName })
	return out, nil
}

func (s *store) HasConfirmation(_ context.Context, tenantID, confirmationID string) (bool, error) {
	_, ok := s.confirmations[tenantID][confirmationID]
	return ok, nil
}

func (s *store) RecordConfirmation(_ context.Context, c recipe.Confirmation) error {
	items, ok := s.confirmations[c.TenantID]
	if !ok {
		items = make(map[string]recipe.Confirmation)
		s.confirmations[c.TenantID] = items
	}
	if _, dup := items[c.ConfirmationID]; dup {
		return outbound.ErrDuplicateConfirmation
	}
	items[c.ConfirmationID] = c
	return nil
}

func (s *store) ReleaseConfirmation(_ context.Context, tenantID, confirmationID string) error {
	delete(s.confirmations[tenantID], confirmationID)
	return nil
}
