package pantry

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ecofridge/server/internal/application/generation"
	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/profile"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/domain/shared"
	"github.com/ecofridge/server/internal/infrastructure/ai/scripted"
	"github.com/ecofridge/server/internal/infrastructure/persistence/gatewaytest"
	"github.com/ecofridge/server/internal/infrastructure/persistence/memory"
	"github.com/ecofridge/server/internal/ports/inbound"
	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

const (
	tenant = "user1"

	stirFryJSON = `{"recipe_name":"Tomato Onion Stir Fry","short_description":"Fast vegetable stir fry",` +
		`"cooking_time":15,"difficulty":"Easy","ingredients":["2 tomato","1 onion","3 garlic cloves","olive oil"],` +
		`"instructions":["Slice everything","Fry for ten minutes"],` +
		`"ingredient_usage":[{"name":"tomato","amount":2},{"name":"onion","amount":1},{"name":"garlic","amount":3}]}`

	cheesyJSON = `{"recipe_name":"Cheesy Tomato Bake","short_description":"Baked tomatoes",` +
		`"cooking_time":30,"difficulty":"Medium","ingredients":["4 tomato","100 g cheddar cheese"],` +
		`"instructions":["Layer","Bake"]}`

	pointsJSON = `{"nutritional_values":"300 kcal","carbon_footprint":0.5,"points_response":42.9,` +
		`"justification_response":"Plant based","warnings":""}`
)

type nopSink struct{}

func (nopSink) Record(context.Context, outbound.AuditEntry) error { return nil }

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	runs        []string
}

func (o *recordingObserver) RecordTransition(op, from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, op+":"+from+"->"+to)
}

func (o *recordingObserver) RecordRun(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, op+":"+outcome)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range events {
		p.events = append(p.events, e.EventName())
	}
}

// ServiceTestSuite runs the pipeline against the memory gateway and a
// scripted model
type ServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	gateway   *memory.Gateway
	provider  *scripted.Provider
	observer  *recordingObserver
	publisher *recordingPublisher
	service   *Service
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.gateway = memory.NewGateway()
	s.provider = scripted.New()
	s.observer = &recordingObserver{}
	s.publisher = &recordingPublisher{}

	logger := zaptest.NewLogger(s.T())
	client, err := generation.NewClient(s.provider, nopSink{}, generation.DefaultConfig(), logger)
	s.Require().NoError(err)

	s.service = NewService(s.gateway, client, s.publisher, s.observer, DefaultOptions(), logger)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) seed(items ...inventory.Ingredient) {
	_, err := s.service.IngestIngredients(s.ctx, inbound.IngestCommand{TenantID: tenant, Ingredients: items})
	s.Require().NoError(err)
}

func (s *ServiceTestSuite) seedScenarioA() {
	s.seed(
		inventory.Ingredient{Name: "tomato", Count: 4, Units: "piece", Expiry: 5, CarbonFootprint: 1},
		inventory.Ingredient{Name: "onion", Count: 2, Units: "piece", Expiry: 14, CarbonFootprint: 1},
		inventory.Ingredient{Name: "garlic", Count: 6, Units: "clove", Expiry: 30, CarbonFootprint: 1},
	)
	_, err := s.service.SetProfile(s.ctx, inbound.SetProfileCommand{TenantID: tenant, Name: "Sam", Allergies: []string{"dairy"}})
	s.Require().NoError(err)
}

func (s *ServiceTestSuite) snapshot() []byte {
	inv, err := s.gateway.GetInventory(s.ctx, tenant)
	s.Require().NoError(err)
	p, err := s.gateway.GetProfile(s.ctx, tenant)
	s.Require().NoError(err)
	data, err := json.Marshal(struct {
		Inventory inventory.Inventory
		Profile   *profile.Profile
	}{inv, p})
	s.Require().NoError(err)
	return data
}

func (s *ServiceTestSuite) exp() int {
	p, err := s.gateway.GetProfile(s.ctx, tenant)
	s.Require().NoError(err)
	return p.Exp
}

func (s *ServiceTestSuite) count(name string) (float64, bool) {
	inv, err := s.gateway.GetInventory(s.ctx, tenant)
	s.Require().NoError(err)
	ing, ok := inv.Find(name)
	return ing.Count, ok
}

func (s *ServiceTestSuite) TestGenerate_DairyAllergyProducesDairyFreeRecipe() {
	s.seedScenarioA()
	before := s.snapshot()
	s.provider.Enqueue(scripted.Reply{Text: stirFryJSON}, scripted.Reply{Text: pointsJSON})

	result, err := s.service.GenerateRecipe(s.ctx, tenant)

	s.Require().NoError(err)
	for _, line := range result.Recipe.Ingredients {
		for _, dairy := range []string{"milk", "cheese", "butter", "cream", "yogurt"} {
			s.NotContains(strings.ToLower(line), dairy)
		}
	}
	s.Equal(42, result.Assessment.PointsResponse)
	s.NotEmpty(result.ProposalID)
	s.Equal(before, s.snapshot(), "generate never writes")

	calls := s.provider.Calls()
	s.Require().Len(calls, 2)
	s.Contains(calls[0].Prompt, `"dairy"`)
	s.Contains(calls[1].Prompt, "Tomato Onion Stir Fry")

	s.Equal([]string{
		"generate:idle->generating",
		"generate:generating->assessing",
		"generate:assessing->committing",
		"generate:committing->done",
	}, s.observer.transitions[len(s.observer.transitions)-4:])
	s.Contains(s.publisher.events, "recipe.proposed")
}

func (s *ServiceTestSuite) TestGenerate_ForbiddenIngredientFailsWithoutWrites() {
	s.seedScenarioA()
	before := s.snapshot()
	s.provider.Enqueue(scripted.Reply{Text: cheesyJSON})

	_, err := s.service.GenerateRecipe(s.ctx, tenant)

	s.Require().Error(err)
	s.True(apperrors.Is(err, apperrors.CodeGenerationFailed))
	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	s.Equal(apperrors.StageSynthesis, apperrors.StageOf(err))
	s.Len(s.provider.Calls(), 1, "assessment is not attempted")
	s.Equal(before, s.snapshot())
}

func (s *ServiceTestSuite) TestGenerate_ProseWrappedResponse() {
	s.seedScenarioA()
	s.provider.Enqueue(
		scripted.Reply{Text: "Sure! Here's your recipe: " + stirFryJSON + " Hope that helps!"},
		scripted.Reply{Text: "Assessment follows.\n" + pointsJSON},
	)

	result, err := s.service.GenerateRecipe(s.ctx, tenant)

	s.Require().NoError(err)
	s.Equal("Tomato Onion Stir Fry", result.Recipe.RecipeName)
	s.Equal(recipe.DifficultyLevelEasy, result.Recipe.Difficulty)
}

func (s *ServiceTestSuite) TestGenerate_UpstreamTimeoutLeavesStateUntouched() {
	s.seedScenarioA()
	before := s.snapshot()
	s.provider.Enqueue(scripted.Reply{Err: context.DeadlineExceeded})

	_, err := s.service.GenerateRecipe(s.ctx, tenant)

	s.Require().Error(err)
	s.True(apperrors.Is(err, apperrors.CodeUpstream))
	s.Equal(apperrors.StageSynthesis, apperrors.StageOf(err))
	s.Equal(before, s.snapshot())
	s.Contains(s.observer.runs, "generate:failed")

	recipes, err := s.service.ListRecipes(s.ctx, tenant)
	s.Require().NoError(err)
	s.Empty(recipes)
}

func (s *ServiceTestSuite) TestGenerate_AssessmentFailureLeavesStateUntouched() {
	s.seedScenarioA()
	before := s.snapshot()
	s.provider.Enqueue(scripted.Reply{Text: stirFryJSON}, scripted.Reply{Text: "I cannot score this."})

	_, err := s.service.GenerateRecipe(s.ctx, tenant)

	s.Require().Error(err)
	s.True(apperrors.Is(err, apperrors.CodeParse))
	s.Equal(apperrors.StageAssessment, apperrors.StageOf(err))
	s.Equal(before, s.snapshot())
}

func (s *ServiceTestSuite) TestGenerate_EmptyInventory() {
	_, err := s.service.GenerateRecipe(s.ctx, tenant)

	s.Require().Error(err)
	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	s.Equal(apperrors.StageSynthesis, apperrors.StageOf(err))
	s.Empty(s.provider.Calls())
}

func (s *ServiceTestSuite) TestConfirm_DepletesAndRemovesAtZero() {
	s.seed(gatewaytest.Tomato(4))

	first := gatewaytest.SampleRecipe("Tomato Salad", 5)
	_, err := s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{TenantID: tenant, RecipeName: "Tomato Salad", Record: first})
	s.Require().NoError(err)

	left, ok := s.count("tomato")
	s.Require().True(ok)
	s.Equal(2.0, left)

	s.seed(gatewaytest.Tomato(2))
	second := gatewaytest.SampleRecipe("Tomato Stew", 5)
	second.IngredientUsage = []recipe.IngredientUsage{{Name: "tomato", Amount: 4}}
	res, err := s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{TenantID: tenant, RecipeName: "Tomato Stew", Record: second})
	s.Require().NoError(err)

	_, ok = s.count("tomato")
	s.False(ok, "tomato is removed, never left at zero")
	s.Equal([]string{"tomato"}, res.Removed)
	s.Contains(s.publisher.events, "inventory.depleted")
}

func (s *ServiceTestSuite) TestConfirm_ExplicitConsumptionOverridesRecord() {
	s.seed(gatewaytest.Tomato(4))
	rec := gatewaytest.SampleRecipe("Tomato Salad", 5)

	res, err := s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{
		TenantID:    tenant,
		RecipeName:  "tomato salad",
		Record:      rec,
		Consumption: map[string]float64{"Tomato": 3, "basil": 1},
	})

	s.Require().NoError(err)
	s.Equal(map[string]float64{"tomato": 3}, res.Consumed)
	left, _ := s.count("tomato")
	s.Equal(1.0, left)
}

func (s *ServiceTestSuite) TestConfirm_AwardsOnceAndReplayIsNoop() {
	s.seed(gatewaytest.Tomato(10))
	rec := gatewaytest.SampleRecipe("Tomato Salad", 7)
	cmd := inbound.ConfirmCommand{TenantID: tenant, RecipeName: "Tomato Salad", Record: rec}

	first, err := s.service.ConfirmRecipe(s.ctx, cmd)
	s.Require().NoError(err)
	s.Equal(7, first.PointsAwarded)
	s.Equal(7, s.exp())
	afterFirst := s.snapshot()

	replay, err := s.service.ConfirmRecipe(s.ctx, cmd)
	s.Require().NoError(err)
	s.True(replay.Replayed)
	s.Equal(first.ConfirmationID, replay.ConfirmationID)
	s.Equal(7, replay.Exp)
	s.Equal(afterFirst, s.snapshot())

	recipes, err := s.service.ListRecipes(s.ctx, tenant)
	s.Require().NoError(err)
	s.Len(recipes, 1)
}

func (s *ServiceTestSuite) TestConfirm_ConcurrentConfirmationsApplyOnce() {
	s.seed(gatewaytest.Tomato(100))
	rec := gatewaytest.SampleRecipe("Tomato Salad", 3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{TenantID: tenant, RecipeName: "Tomato Salad", Record: rec})
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	s.Equal(3, s.exp())
	left, _ := s.count("tomato")
	s.Equal(98.0, left)
}

func (s *ServiceTestSuite) TestConfirm_NameMismatch() {
	rec := gatewaytest.SampleRecipe("Tomato Salad", 3)

	_, err := s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{TenantID: tenant, RecipeName: "Soup", Record: rec})

	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	s.Zero(s.exp())
}

func (s *ServiceTestSuite) TestConfirm_InvalidRecord() {
	rec := gatewaytest.SampleRecipe("Tomato Salad", 3)
	rec.Instructions = nil

	_, err := s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{TenantID: tenant, RecipeName: "Tomato Salad", Record: rec})
	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))

	_, err = s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{TenantID: tenant, RecipeName: "Tomato Salad"})
	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
}

func (s *ServiceTestSuite) TestConfirmProposal() {
	s.seedScenarioA()
	s.provider.Enqueue(scripted.Reply{Text: stirFryJSON}, scripted.Reply{Text: pointsJSON})
	generated, err := s.service.GenerateRecipe(s.ctx, tenant)
	s.Require().NoError(err)

	_, err = s.service.ConfirmProposal(s.ctx, "someone-else", generated.ProposalID)
	s.True(apperrors.Is(err, apperrors.CodeNotFound))

	res, err := s.service.ConfirmProposal(s.ctx, tenant, generated.ProposalID)
	s.Require().NoError(err)
	s.False(res.Replayed)
	s.Equal(42, s.exp())

	left, _ := s.count("tomato")
	s.Equal(2.0, left)
	left, _ = s.count("garlic")
	s.Equal(3.0, left)

	replay, err := s.service.ConfirmProposal(s.ctx, tenant, generated.ProposalID)
	s.Require().NoError(err)
	s.True(replay.Replayed)
	s.Equal(42, s.exp())

	recipes, err := s.service.ListRecipes(s.ctx, tenant)
	s.Require().NoError(err)
	s.Require().Len(recipes, 1)
	s.Equal(generated.ProposalID, recipes[0].ProposalID)
}

func (s *ServiceTestSuite) TestConfirmProposal_SameRecordThroughRecipeRouteIsReplay() {
	s.seedScenarioA()
	s.provider.Enqueue(scripted.Reply{Text: stirFryJSON}, scripted.Reply{Text: pointsJSON})
	generated, err := s.service.GenerateRecipe(s.ctx, tenant)
	s.Require().NoError(err)

	first, err := s.service.ConfirmProposal(s.ctx, tenant, generated.ProposalID)
	s.Require().NoError(err)
	s.Equal(42, s.exp())
	afterFirst := s.snapshot()

	rec, err := recipe.NewRecipe(generated.Recipe, generated.Assessment)
	s.Require().NoError(err)
	replay, err := s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{
		TenantID:   tenant,
		RecipeName: rec.RecipeName,
		Record:     rec,
	})
	s.Require().NoError(err)

	s.True(replay.Replayed)
	s.Equal(first.ConfirmationID, replay.ConfirmationID)
	s.Equal(42, s.exp())
	left, ok := s.count("tomato")
	s.True(ok)
	s.Equal(2.0, left)
	s.Equal(afterFirst, s.snapshot())
}

func (s *ServiceTestSuite) TestConfirmRecipe_ThenProposalIsReplay() {
	s.seedScenarioA()
	s.provider.Enqueue(scripted.Reply{Text: stirFryJSON}, scripted.Reply{Text: pointsJSON})
	generated, err := s.service.GenerateRecipe(s.ctx, tenant)
	s.Require().NoError(err)

	rec, err := recipe.NewRecipe(generated.Recipe, generated.Assessment)
	s.Require().NoError(err)
	_, err = s.service.ConfirmRecipe(s.ctx, inbound.ConfirmCommand{TenantID: tenant, RecipeName: rec.RecipeName, Record: rec})
	s.Require().NoError(err)

	replay, err := s.service.ConfirmProposal(s.ctx, tenant, generated.ProposalID)
	s.Require().NoError(err)
	s.True(replay.Replayed)
	s.Equal(42, s.exp())
}

func (s *ServiceTestSuite) TestConfirmProposal_Unknown() {
	_, err := s.service.ConfirmProposal(s.ctx, tenant, "missing")
	s.True(apperrors.Is(err, apperrors.CodeNotFound))
}

func (s *ServiceTestSuite) TestIngest_AddsCounts() {
	s.seed(gatewaytest.Tomato(2))
	s.seed(gatewaytest.Tomato(3))

	left, ok := s.count("tomato")
	s.Require().True(ok)
	s.Equal(5.0, left)
}

func (s *ServiceTestSuite) TestIngest_InvalidBatchWritesNothing() {
	_, err := s.service.IngestIngredients(s.ctx, inbound.IngestCommand{
		TenantID: tenant,
		Ingredients: []inventory.Ingredient{
			gatewaytest.Tomato(2),
			{Name: "onion", Count: 0, Units: "piece", Expiry: 3, CarbonFootprint: 1},
		},
	})

	s.True(apperrors.Is(err, apperrors.CodeValidationFailed))
	inv, err := s.service.ListInventory(s.ctx, tenant)
	s.Require().NoError(err)
	s.Empty(inv)
}

func (s *ServiceTestSuite) TestScanAndIngest() {
	s.provider.Enqueue(scripted.Reply{Text: `{"ingredients":[{"name":"Tomato","count":"3 pieces","units":"piece","expiry":4,"carbon_footprint":1}]}`})

	res, err := s.service.ScanAndIngest(s.ctx, inbound.ScanCommand{TenantID: tenant, Image: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"})

	s.Require().NoError(err)
	s.Require().Len(res.Inventory, 1)
	s.Equal("tomato", res.Inventory[0].Name)
	s.Equal(3.0, res.Inventory[0].Count)
	s.Equal(outbound.ModalityImageText, s.provider.Calls()[0].Modality)
}

func (s *ServiceTestSuite) TestScan_DoesNotPersist() {
	s.provider.Enqueue(scripted.Reply{Text: `{"ingredients":[{"name":"onion","count":2,"units":"piece","expiry":10,"carbon_footprint":1}]}`})

	detected, err := s.service.ScanIngredients(s.ctx, inbound.ScanCommand{Image: []byte{1}, MIMEType: "image/png"})

	s.Require().NoError(err)
	s.Len(detected, 1)
	inv, err := s.service.ListInventory(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(inv)
}

func (s *ServiceTestSuite) TestSetProfile_NeverLowersExpWithoutReset() {
	s.Require().NoError(s.gateway.AddExperience(s.ctx, tenant, 50))
	low := 10

	p, err := s.service.SetProfile(s.ctx, inbound.SetProfileCommand{TenantID: tenant, Name: "Sam", Exp: &low})
	s.Require().NoError(err)
	s.Equal(50, p.Exp)

	p, err = s.service.SetProfile(s.ctx, inbound.SetProfileCommand{TenantID: tenant, Name: "Sam", Exp: &low, AllowExpReset: true})
	s.Require().NoError(err)
	s.Equal(10, p.Exp)

	p, err = s.service.SetProfile(s.ctx, inbound.SetProfileCommand{TenantID: tenant, Allergies: []string{"Nuts", "nuts"}})
	s.Require().NoError(err)
	s.Equal(10, p.Exp)
	s.Equal([]string{"Nuts"}, p.Allergies)
}

func (s *ServiceTestSuite) TestDefaultTenant() {
	s.Require().NoError(s.gateway.AddExperience(s.ctx, profile.DefaultTenantID, 4))

	p, err := s.service.GetProfile(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(4, p.Exp)
}

func TestConfirmationID(t *testing.T) {
	rec := gatewaytest.SampleRecipe("Salad", 3)
	same := gatewaytest.SampleRecipe("Salad", 3)

	assert.Equal(t, confirmationID(rec), confirmationID(same))

	rec.ProposalID = "p-1"
	assert.Equal(t, confirmationID(same), confirmationID(rec), "proposal id does not change the key")

	same.PointsResponse = 4
	require.NotEqual(t, confirmationID(rec), confirmationID(same))
}
