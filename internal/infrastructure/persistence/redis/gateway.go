package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Profile hash fields
const (
	fieldName         = "name"
	fieldExp          = "exp"
	fieldAllergies    = "allergies"
	fieldRestrictions = "restrictions"
	fieldDiseases     = "diseases"
)

// Gateway stores each tenant's state in four Redis keys sharing a hash tag,
// so a tenant lives on one cluster slot. Read-modify-write steps run as Lua
// scripts. It does not implement outbound.Transactor; the orchestrator
// falls back to its fixed write order.
type Gateway struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewGateway creates a gateway over client. prefix namespaces every key.
func NewGateway(client redis.UniversalClient, prefix string, logger *zap.Logger) *Gateway {
	return &Gateway{
		client: client,
		prefix: prefix,
		logger: logger.Named("redis-gateway"),
	}
}

var _ outbound.Gateway = (*Gateway)(nil)

func (g *Gateway) key(tenantID, kind string) string {
	return fmt.Sprintf("%s:{%s}:%s", g.prefix, tenantID, kind)
}

func (g *Gateway) GetInventory(ctx context.Context, tenantID string) (inventory.Inventory, error) {
	values, err := g.client.HGetAll(ctx, g.key(tenantID, "inventory")).Result()
	if err != nil {
		return nil, err
	}

	inv := make(inventory.Inventory, 0, len(values))
	for name, raw := range values {
		var ing inventory.Ingredient
		if err := json.Unmarshal([]byte(raw), &ing); err != nil {
			return nil, fmt.Errorf("decode ingredient %q: %w", name, err)
		}
		inv = append(inv, ing)
	}
	return inv.Sorted(), nil
}

func (g *Gateway) UpsertInventoryIngredient(ctx context.Context, tenantID string, ing inventory.Ingredient) error {
	ing = ing.Normalized()
	if err := ing.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(ing)
	if err != nil {
		return err
	}
	return upsertScript.Run(ctx, g.client, []string{g.key(tenantID, "inventory")}, ing.Name, string(data)).Err()
}

func (g *Gateway) DecrementInventoryIngredient(ctx context.Context, tenantID, name string, amount float64) (bool, error) {
	key := inventory.NormalizeName(name)
	result, err := decrementScript.Run(ctx, g.client,
		[]string{g.key(tenantID, "inventory")},
		key, strconv.FormatFloat(amount, 'f', -1, 64),
	).Int()
	if err != nil {
		return false, err
	}

	switch result {
	case -1:
		return false, inventory.ErrIngredientNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

func (g *Gateway) GetProfile(ctx context.Context, tenantID string) (*profile.Profile, error) {
	values, err := g.client.HGetAll(ctx, g.key(tenantID, "profile")).Result()
	if err != nil {
		return nil, err
	}

	p := profile.New(tenantID)
	if len(values) == 0 {
		return p, nil
	}

	p.Name = values[fieldName]
	if raw, ok := values[fieldExp]; ok {
		if p.Exp, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("decode exp: %w", err)
		}
	}
	for field, target := range map[string]*[]string{
		fieldAllergies:    &p.Allergies,
		fieldRestrictions: &p.Restrictions,
		fieldDiseases:     &p.Diseases,
	} {
		raw, ok := values[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
	}
	p.Normalize()
	return p, nil
}

func (g *Gateway) SetProfile(ctx context.Context, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	fields := map[string]interface{}{
		fieldName: p.Name,
		fieldExp:  p.Exp,
	}
	for field, list := range map[string][]string{
		fieldAllergies:    p.Allergies,
		fieldRestrictions: p.Restrictions,
		fieldDiseases:     p.Diseases,
	} {
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return err
		}
		fields[field] = string(data)
	}
	return g.client.HSet(ctx, g.key(p.TenantID, "profile"), fields).Err()
}

// AddExperience uses HINCRBY, which creates the hash and field when missing
func (g *Gateway) AddExperience(ctx context.Context, tenantID string, points int) error {
	if points < 0 {
		return profile.ErrNegativePoints
	}
	return g.client.HIncrBy(ctx, g.key(tenantID, "profile"), fieldExp, int64(points)).Err()
}

func (g *Gateway) UpsertRecipe(ctx context.Context, tenantID string, r *recipe.Recipe) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return g.client.HSet(ctx, g.key(tenantID, "recipes"), r.RecipeName, string(data)).Err()
}

func (g *Gateway) ListRecipes(ctx context.Context, tenantID string) ([]*recipe.Recipe, error) {
	values, err := g.client.HGetAll(ctx, g.key(tenantID, "recipes")).Result()
	if err != nil {
		return nil, err
	}

	recipes := make([]*recipe.Recipe, 0, len(values))
	for name, raw := range values {
		var r recipe.Recipe
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			g.logger.Warn("Skipping undecodable recipe", zap.String("recipe_name", name), zap.Error(err))
			continue
		}
		recipes = append(recipes, &r)
	}
	sort.Slice(recipes, func(a, b int) bool { return recipes[a].RecipeName < recipes[b].RecipeName })
	return recipes, nil
}

func (g *Gateway) HasConfirmation(ctx context.Context, tenantID, confirmationID string) (bool, error) {
	return g.client.HExists(ctx, g.key(tenantID, "confirmations"), confirmationID).Result()
}

// RecordConfirmation uses HSETNX so a second writer of the same id loses
func (g *Gateway) RecordConfirmation(ctx context.Context, c recipe.Confirmation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	created, err := g.client.HSetNX(ctx, g.key(c.TenantID, "confirmations"), c.ConfirmationID, string(data)).Result()
	if err != nil {
		return err
	}
	if !created {
		return outbound.ErrDuplicateConfirmation
	}
	return nil
}

// ReleaseConfirmation drops a claimed ledger entry
func (g *Gateway) ReleaseConfirmation(ctx context.Context, tenantID, confirmationID string) error {
	return g.client.HDel(ctx, g.key(tenantID, "confirmations"), confirmationID).Err()
}
