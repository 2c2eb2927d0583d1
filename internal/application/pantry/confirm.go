package pantry

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/ports/inbound"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/ecofridge/server/pkg/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

// ConfirmRecipe applies a caller-approved recipe record: inventory is
// depleted, points are added to exp and the recipe is written to history.
// A record that was already confirmed is a no-op.
func (s *Service) ConfirmRecipe(ctx context.Context, cmd inbound.ConfirmCommand) (*inbound.ConfirmResult, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if !strings.EqualFold(strings.TrimSpace(cmd.RecipeName), strings.TrimSpace(cmd.Record.RecipeName)) {
		return nil, errors.NewValidationError(recipe.ErrNameMismatch.Error()).
			WithMetadata("recipe_name", cmd.RecipeName).
			WithMetadata("record_name", cmd.Record.RecipeName)
	}
	if err := validateExplicit(cmd.Consumption); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	rec, err := recipe.NewRecipe(cmd.Record.Full(), cmd.Record.Assessment())
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	rec.ProposalID = cmd.Record.ProposalID

	return s.confirm(ctx, s.tenant(cmd.TenantID), rec, cmd.Consumption)
}

// ConfirmProposal confirms a pending proposal returned by GenerateRecipe
func (s *Service) ConfirmProposal(ctx context.Context, tenantID, proposalID string) (*inbound.ConfirmResult, error) {
	tenantID = s.tenant(tenantID)

	proposal, ok := s.proposals.Get(proposalID)
	if !ok || proposal.TenantID != tenantID {
		return nil, errors.NewNotFoundError("proposal", proposalID)
	}

	rec, err := proposal.ToRecipe()
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	return s.confirm(ctx, tenantID, rec, nil)
}

// confirmationID identifies a confirmed record for replay protection. It
// depends on content only, so the proposal and record routes share a key.
func confirmationID(rec *recipe.Recipe) string {
	return rec.Fingerprint()
}

func (s *Service) confirm(ctx context.Context, tenantID string, rec *recipe.Recipe, explicit map[string]float64) (*inbound.ConfirmResult, error) {
	run := newRun(OperationConfirm, tenantID, s.observer)
	id := confirmationID(rec)
	log := s.logger.With(
		zap.String("tenant_id", tenantID),
		zap.String("run_id", run.ID),
		zap.String("confirmation_id", id),
		zap.String("recipe_name", rec.RecipeName),
	)

	run.advance(StateCommitting)
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	seen, err := s.gateway.HasConfirmation(ctx, tenantID, id)
	if err != nil {
		return nil, run.fail(commitError("check confirmation", err))
	}
	if seen {
		prof, err := s.gateway.GetProfile(ctx, tenantID)
		if err != nil {
			return nil, run.fail(commitError("load profile", err))
		}
		run.advance(StateDone)
		log.Info("Confirmation replayed, nothing applied")
		return &inbound.ConfirmResult{
			ConfirmationID: id,
			RecipeName:     rec.RecipeName,
			Exp:            prof.Exp,
			Consumed:       map[string]float64{},
			Removed:        []string{},
			Replayed:       true,
		}, nil
	}

	inv, err := s.gateway.GetInventory(ctx, tenantID)
	if err != nil {
		return nil, run.fail(commitError("load inventory", err))
	}
	plan := planConsumption(rec, explicit, inv)
	if len(plan.skipped) > 0 {
		log.Info("Skipping ingredients not in inventory", zap.Strings("names", plan.skipped))
	}

	now := time.Now().UTC()
	removed := []string{}
	claimed := false
	err = s.inTransaction(ctx, func(g outbound.Gateway) error {
		// The ledger entry is claimed before any side effect so a concurrent
		// confirmer on a non-transactional gateway stops here.
		if err := g.RecordConfirmation(ctx, recipe.Confirmation{
			TenantID:       tenantID,
			ConfirmationID: id,
			RecipeName:     rec.RecipeName,
			Points:         rec.PointsResponse,
			ConfirmedAt:    now,
		}); err != nil {
			return err
		}
		claimed = true

		for _, name := range plan.names() {
			gone, err := g.DecrementInventoryIngredient(ctx, tenantID, name, plan.amounts[name])
			if stderrors.Is(err, inventory.ErrIngredientNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if gone {
				removed = append(removed, name)
			}
		}
		if err := g.AddExperience(ctx, tenantID, rec.PointsResponse); err != nil {
			return err
		}
		return g.UpsertRecipe(ctx, tenantID, rec)
	})
	if err != nil {
		if stderrors.Is(err, outbound.ErrDuplicateConfirmation) {
			log.Warn("Confirmation claimed by a concurrent writer")
			return nil, run.fail(errors.NewStateConflictError("confirmation "+id).
				WithStage(errors.StageCommit).WithCause(err))
		}
		if claimed {
			s.releaseClaim(ctx, tenantID, id, log)
		}
		err = run.fail(commitError("apply confirmation", err))
		log.Error("Confirmation failed", zap.Error(err), zap.Strings("run_path", run.path()))
		return nil, err
	}

	prof, err := s.gateway.GetProfile(ctx, tenantID)
	if err != nil {
		return nil, run.fail(commitError("load profile", err))
	}
	run.advance(StateDone)

	s.publish(ctx, recipe.RecipeConfirmedEvent{
		TenantID:       tenantID,
		ConfirmationID: id,
		RecipeName:     rec.RecipeName,
		Points:         rec.PointsResponse,
		ConfirmedAt:    now,
	})
	for _, name := range removed {
		s.publish(ctx, inventory.IngredientDepletedEvent{TenantID: tenantID, Name: name, DepletedAt: now})
	}

	log.Info("Recipe confirmed",
		zap.String("consumption", plan.source),
		zap.Int("points", rec.PointsResponse),
		zap.Int("exp", prof.Exp),
		zap.Strings("removed", removed),
	)

	return &inbound.ConfirmResult{
		ConfirmationID: id,
		RecipeName:     rec.RecipeName,
		PointsAwarded:  rec.PointsResponse,
		Exp:            prof.Exp,
		Consumed:       plan.amounts,
		Removed:        removed,
	}, nil
}

// releaseClaim drops the ledger entry after a failed write on a gateway
// without transactions. Transactional gateways already rolled it back.
func (s *Service) releaseClaim(ctx context.Context, tenantID, id string, log *zap.Logger) {
	if _, ok := s.gateway.(outbound.Transactor); ok {
		return
	}
	if err := s.gateway.ReleaseConfirmation(context.WithoutCancel(ctx), tenantID, id); err != nil {
		log.Error("Failed to release confirmation claim", zap.Error(err))
	}
}

func commitError(op string, err error) error {
	return errors.NewDatabaseError(op, err).WithStage(errors.StageCommit)
}
