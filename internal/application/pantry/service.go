// Package pantry provides the application layer of the inventory and recipe
// pipeline. It implements the use cases defined in the inbound ports.
package pantry

import (
	"context"
	"time"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/domain/shared"
	"github.com/ecofridge/server/internal/ports/inbound"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/ecofridge/server/pkg/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Generator is the generation client as seen by the orchestrator
type Generator interface {
	DetectIngredients(ctx context.Context, image []byte, mimeType string) ([]inventory.Ingredient, error)
	SynthesizeRecipe(ctx context.Context, ingredientNames, allergies, restrictions []string) (*recipe.FullRecipe, error)
	AssessPoints(ctx context.Context, full recipe.FullRecipe, restrictions, diseases []string) (*recipe.PointsAssessment, error)
}

// Options tunes the service
type Options struct {
	ProposalCacheSize int
	ProposalTTL       time.Duration
	DefaultTenant     string
}

// DefaultOptions returns the settings used when none are configured
func DefaultOptions() Options {
	return Options{
		ProposalCacheSize: 256,
		ProposalTTL:       time.Hour,
		DefaultTenant:     profile.DefaultTenantID,
	}
}

// Service implements inbound.PantryService
type Service struct {
	gateway   outbound.Gateway
	generator Generator
	events    outbound.EventPublisher
	observer  RunObserver
	proposals *expirable.LRU[string, *recipe.Proposal]
	locks     *tenantLocks
	opts      Options
	logger    *zap.Logger
}

// NewService creates the pipeline service. events and observer may be nil.
func NewService(
	gateway outbound.Gateway,
	generator Generator,
	events outbound.EventPublisher,
	observer RunObserver,
	opts Options,
	logger *zap.Logger,
) *Service {
	defaults := DefaultOptions()
	if opts.ProposalCacheSize <= 0 {
		opts.ProposalCacheSize = defaults.ProposalCacheSize
	}
	if opts.ProposalTTL <= 0 {
		opts.ProposalTTL = defaults.ProposalTTL
	}
	if opts.DefaultTenant == "" {
		opts.DefaultTenant = defaults.DefaultTenant
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Service{
		gateway:   gateway,
		generator: generator,
		events:    events,
		observer:  observer,
		proposals: expirable.NewLRU[string, *recipe.Proposal](opts.ProposalCacheSize, nil, opts.ProposalTTL),
		locks:     newTenantLocks(),
		opts:      opts,
		logger:    logger.Named("pantry-service"),
	}
}

var _ inbound.PantryService = (*Service)(nil)

// GenerateRecipe synthesizes and assesses a recipe from a fresh read of the
// tenant's inventory and profile. Nothing is written: the assessed recipe
// is returned and kept as a pending proposal until confirmed.
func (s *Service) GenerateRecipe(ctx context.Context, tenantID string) (*inbound.GenerateResult, error) {
	tenantID = s.tenant(tenantID)
	run := newRun(OperationGenerate, tenantID, s.observer)
	log := s.logger.With(zap.String("tenant_id", tenantID), zap.String("run_id", run.ID))

	prof, err := s.gateway.GetProfile(ctx, tenantID)
	if err != nil {
		return nil, run.fail(errors.NewDatabaseError("load profile", err))
	}
	inv, err := s.gateway.GetInventory(ctx, tenantID)
	if err != nil {
		return nil, run.fail(errors.NewDatabaseError("load inventory", err))
	}
	if len(inv) == 0 {
		return nil, run.fail(errors.NewGenerationError(errors.StageSynthesis,
			errors.NewValidationError("inventory is empty")))
	}

	run.advance(StateGenerating)
	log.Info("Generating recipe", zap.Int("ingredients", len(inv)))

	full, err := s.generator.SynthesizeRecipe(ctx, inv.Names(), prof.Allergies, prof.Restrictions)
	if err != nil {
		err = run.fail(err)
		log.Warn("Recipe synthesis failed", zap.Error(err), zap.Strings("run_path", run.path()))
		return nil, err
	}

	run.advance(StateAssessing)
	assessment, err := s.generator.AssessPoints(ctx, *full, prof.Restrictions, prof.Diseases)
	if err != nil {
		err = run.fail(err)
		log.Warn("Points assessment failed", zap.Error(err), zap.Strings("run_path", run.path()))
		return nil, err
	}

	run.advance(StateCommitting)
	proposal := recipe.NewProposal(tenantID, *full, *assessment)
	s.proposals.Add(proposal.ID, proposal)
	run.advance(StateDone)

	s.publish(ctx, recipe.RecipeProposedEvent{
		TenantID:   tenantID,
		ProposalID: proposal.ID,
		RecipeName: full.RecipeName,
		Points:     assessment.PointsResponse,
		ProposedAt: proposal.GeneratedAt,
	})

	log.Info("Recipe proposed",
		zap.String("proposal_id", proposal.ID),
		zap.String("recipe_name", full.RecipeName),
		zap.Int("points", assessment.PointsResponse),
	)

	return &inbound.GenerateResult{
		ProposalID:  proposal.ID,
		Recipe:      proposal.Recipe,
		Assessment:  proposal.Assessment,
		GeneratedAt: proposal.GeneratedAt,
		RunID:       run.ID,
	}, nil
}

// ScanIngredients detects ingredients in a photo without persisting them
func (s *Service) ScanIngredients(ctx context.Context, cmd inbound.ScanCommand) ([]inventory.Ingredient, error) {
	tenantID := s.tenant(cmd.TenantID)
	run := newRun(OperationScan, tenantID, s.observer)

	run.advance(StateGenerating)
	detected, err := s.generator.DetectIngredients(ctx, cmd.Image, cmd.MIMEType)
	if err != nil {
		return nil, run.fail(err)
	}
	run.advance(StateDone)

	s.logger.Info("Ingredients detected",
		zap.String("tenant_id", tenantID),
		zap.Int("count", len(detected)),
	)
	return detected, nil
}

// ScanAndIngest detects ingredients and merges them into the inventory
func (s *Service) ScanAndIngest(ctx context.Context, cmd inbound.ScanCommand) (*inbound.IngestResult, error) {
	detected, err := s.ScanIngredients(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return s.IngestIngredients(ctx, inbound.IngestCommand{TenantID: cmd.TenantID, Ingredients: detected})
}

// IngestIngredients merge-adds a batch into the inventory. The whole batch
// is validated before the first write.
func (s *Service) IngestIngredients(ctx context.Context, cmd inbound.IngestCommand) (*inbound.IngestResult, error) {
	tenantID := s.tenant(cmd.TenantID)
	run := newRun(OperationIngest, tenantID, s.observer)

	batch, err := inventory.Collapse(cmd.Ingredients)
	if err != nil {
		return nil, run.fail(errors.NewValidationError(err.Error()))
	}

	run.advance(StateCommitting)
	unlock := s.locks.Lock(tenantID)
	err = s.inTransaction(ctx, func(g outbound.Gateway) error {
		for _, ing := range batch {
			if err := g.UpsertInventoryIngredient(ctx, tenantID, ing); err != nil {
				return err
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, run.fail(errors.NewDatabaseError("ingest ingredients", err).WithStage(errors.StageCommit))
	}

	inv, err := s.gateway.GetInventory(ctx, tenantID)
	if err != nil {
		return nil, run.fail(errors.NewDatabaseError("load inventory", err))
	}
	run.advance(StateDone)

	s.publish(ctx, inventory.IngredientsIngestedEvent{
		TenantID:   tenantID,
		Names:      batch.Names(),
		IngestedAt: time.Now(),
	})

	s.logger.Info("Ingredients ingested",
		zap.String("tenant_id", tenantID),
		zap.Strings("names", batch.Names()),
	)
	return &inbound.IngestResult{Ingested: batch, Inventory: inv}, nil
}

// ListInventory returns the tenant's inventory ordered by name
func (s *Service) ListInventory(ctx context.Context, tenantID string) (inventory.Inventory, error) {
	inv, err := s.gateway.GetInventory(ctx, s.tenant(tenantID))
	if err != nil {
		return nil, errors.NewDatabaseError("list inventory", err)
	}
	return inv.Sorted(), nil
}

// ListRecipes returns the tenant's confirmed recipes
func (s *Service) ListRecipes(ctx context.Context, tenantID string) ([]*recipe.Recipe, error) {
	recipes, err := s.gateway.ListRecipes(ctx, s.tenant(tenantID))
	if err != nil {
		return nil, errors.NewDatabaseError("list recipes", err)
	}
	return recipes, nil
}

// GetProfile returns the tenant's profile, empty when never set
func (s *Service) GetProfile(ctx context.Context, tenantID string) (*profile.Profile, error) {
	p, err := s.gateway.GetProfile(ctx, s.tenant(tenantID))
	if err != nil {
		return nil, errors.NewDatabaseError("load profile", err)
	}
	return p, nil
}

// SetProfile overwrites the profile. Exp keeps the stored value when the
// command omits it, and is never lowered unless AllowExpReset is set.
func (s *Service) SetProfile(ctx context.Context, cmd inbound.SetProfileCommand) (*profile.Profile, error) {
	tenantID := s.tenant(cmd.TenantID)

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	current, err := s.gateway.GetProfile(ctx, tenantID)
	if err != nil {
		return nil, errors.NewDatabaseError("load profile", err)
	}

	next := &profile.Profile{
		TenantID:     tenantID,
		Name:         cmd.Name,
		Exp:          current.Exp,
		Allergies:    cmd.Allergies,
		Restrictions: cmd.Restrictions,
		Diseases:     cmd.Diseases,
	}
	if cmd.Exp != nil {
		switch {
		case *cmd.Exp >= current.Exp || cmd.AllowExpReset:
			next.Exp = *cmd.Exp
		default:
			s.logger.Info("Ignoring exp decrease without reset flag",
				zap.String("tenant_id", tenantID),
				zap.Int("stored", current.Exp),
				zap.Int("requested", *cmd.Exp),
			)
		}
	}

	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := s.gateway.SetProfile(ctx, next); err != nil {
		return nil, errors.NewDatabaseError("save profile", err)
	}
	return next, nil
}

func (s *Service) tenant(tenantID string) string {
	if tenantID == "" {
		return s.opts.DefaultTenant
	}
	return tenantID
}

// inTransaction runs fn in one gateway transaction when supported, or
// directly against the gateway otherwise.
func (s *Service) inTransaction(ctx context.Context, fn func(outbound.Gateway) error) error {
	if tx, ok := s.gateway.(outbound.Transactor); ok {
		return tx.InTransaction(ctx, fn)
	}
	return fn(s.gateway)
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	s.events.Publish(ctx, events...)
}
