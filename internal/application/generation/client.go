// Package generation drives the generative model through the three
// pipeline operations: ingredient detection, recipe synthesis and points
// assessment. Every operation follows the same path: pure prompt, audit,
// provider call, audit, parse, coerce, schema validation, typed decode.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ecofridge/server/internal/domain/inventory"
	"github.com/ecofridge/server/internal/domain/recipe"
	"github.com/ecofridge/server/internal/infrastructure/ai/parser"
	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const tracerName = "github.com/ecofridge/server/internal/application/generation"

// Config holds sampling settings. Synthesis uses all of them, assessment
// uses Temperature and MaxOutputTokens, detection only MaxOutputTokens.
type Config struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// DefaultConfig returns the sampling settings the prompts were tuned with
func DefaultConfig() Config {
	return Config{
		Temperature:     2,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 8192,
	}
}

// MetricsRecorder observes model calls
type MetricsRecorder interface {
	RecordModelCall(operation, outcome string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordModelCall(string, string, time.Duration) {}

// Option configures a Client
type Option func(*Client)

// WithParser replaces the default balanced parser
func WithParser(p *parser.Parser) Option {
	return func(c *Client) { c.parser = p }
}

// WithMetrics sets the model call recorder
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Client wraps the model provider for the three generation operations
type Client struct {
	provider outbound.ModelProvider
	audit    outbound.AuditSink
	parser   *parser.Parser
	cfg      Config
	schemas  *schemaSet
	decoder  *decoder
	metrics  MetricsRecorder
	tokens   metric.Int64Counter
	logger   *zap.Logger
}

// NewClient creates a generation client around an injected provider
func NewClient(provider outbound.ModelProvider, audit outbound.AuditSink, cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, apperrors.NewConfigurationError("ai.provider", "no model provider configured")
	}
	schemas, err := loadSchemas()
	if err != nil {
		return nil, apperrors.NewInternalError("output schemas failed to compile").WithCause(err)
	}

	c := &Client{
		provider: provider,
		audit:    audit,
		parser:   parser.New(parser.StrategyBalanced),
		cfg:      cfg,
		schemas:  schemas,
		decoder:  newDecoder(),
		metrics:  nopMetrics{},
		tokens:   newTokenCounter(),
		logger:   logger.Named("generation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DetectIngredients turns a photo into inventory records
func (c *Client) DetectIngredients(ctx context.Context, image []byte, mimeType string) ([]inventory.Ingredient, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "generation.DetectIngredients")
	defer span.End()

	if len(image) == 0 {
		return nil, c.fail(ctx, apperrors.StageDetection, outbound.OperationIngredientClassification,
			apperrors.NewValidationError("image is empty"))
	}

	req := outbound.ModelRequest{
		Modality:        outbound.ModalityImageText,
		Prompt:          DetectionPrompt(),
		Image:           image,
		MIMEType:        mimeType,
		Schema:          c.schemas.detection.Document(),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}

	doc, err := c.call(ctx, outbound.OperationIngredientClassification, req)
	if err != nil {
		return nil, c.fail(ctx, apperrors.StageDetection, outbound.OperationIngredientClassification, err)
	}

	coerceDetection(doc)
	var payload detectionPayload
	if err := c.decoder.decode(c.schemas.detection, doc, &payload); err != nil {
		return nil, c.fail(ctx, apperrors.StageDetection, outbound.OperationIngredientClassification, err)
	}

	out := make([]inventory.Ingredient, 0, len(payload.Ingredients))
	for _, d := range payload.Ingredients {
		ing, err := inventory.NewIngredient(d.Name, d.Count, d.Units, d.Expiry, d.CarbonFootprint)
		if err != nil {
			return nil, c.fail(ctx, apperrors.StageDetection, outbound.OperationIngredientClassification,
				apperrors.NewValidationError(fmt.Sprintf("ingredient %q: %v", d.Name, err)))
		}
		out = append(out, ing)
	}

	span.SetAttributes(attribute.Int("ingredients.count", len(out)))
	return out, nil
}

// SynthesizeRecipe asks for one recipe from the available ingredients that
// avoids every allergy and restriction.
func (c *Client) SynthesizeRecipe(ctx context.Context, ingredientNames, allergies, restrictions []string) (*recipe.FullRecipe, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "generation.SynthesizeRecipe")
	defer span.End()

	temperature, topP, topK := c.cfg.Temperature, c.cfg.TopP, c.cfg.TopK
	req := outbound.ModelRequest{
		Modality:        outbound.ModalityText,
		Prompt:          SynthesisPrompt(ingredientNames, allergies, restrictions),
		Schema:          c.schemas.recipe.Document(),
		Temperature:     &temperature,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}

	doc, err := c.call(ctx, outbound.OperationRecipeGeneration, req)
	if err != nil {
		return nil, c.fail(ctx, apperrors.StageSynthesis, outbound.OperationRecipeGeneration, err)
	}

	coerceRecipe(doc)
	var payload recipePayload
	if err := c.decoder.decode(c.schemas.recipe, doc, &payload); err != nil {
		return nil, c.fail(ctx, apperrors.StageSynthesis, outbound.OperationRecipeGeneration, err)
	}

	full := &recipe.FullRecipe{
		RecipeName:       strings.TrimSpace(payload.RecipeName),
		ShortDescription: strings.TrimSpace(payload.ShortDescription),
		CookingTime:      payload.CookingTime,
		Difficulty:       recipe.DifficultyLevel(payload.Difficulty),
		Ingredients:      payload.Ingredients,
		Instructions:     payload.Instructions,
		URL:              payload.URL,
	}
	for _, u := range payload.IngredientUsage {
		full.IngredientUsage = append(full.IngredientUsage, recipe.IngredientUsage{Name: u.Name, Amount: u.Amount})
	}

	forbidden := forbiddenTerms(allergies, restrictions)
	for _, line := range full.Ingredients {
		if hits := forbiddenMentions(line, forbidden); len(hits) > 0 {
			return nil, c.fail(ctx, apperrors.StageSynthesis, outbound.OperationRecipeGeneration,
				apperrors.NewValidationError(fmt.Sprintf("ingredient %q mentions forbidden %s", line, strings.Join(hits, ", "))).
					WithMetadata("forbidden", hits))
		}
	}

	if err := full.Validate(); err != nil {
		return nil, c.fail(ctx, apperrors.StageSynthesis, outbound.OperationRecipeGeneration,
			apperrors.NewValidationError(err.Error()))
	}

	span.SetAttributes(attribute.String("recipe.name", full.RecipeName))
	return full, nil
}

// AssessPoints scores a recipe against the profile's restrictions and diseases
func (c *Client) AssessPoints(ctx context.Context, full recipe.FullRecipe, restrictions, diseases []string) (*recipe.PointsAssessment, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "generation.AssessPoints")
	defer span.End()

	temperature := c.cfg.Temperature
	req := outbound.ModelRequest{
		Modality:        outbound.ModalityText,
		Prompt:          AssessmentPrompt(full, restrictions, diseases),
		Schema:          c.schemas.points.Document(),
		Temperature:     &temperature,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}

	doc, err := c.call(ctx, outbound.OperationPointsAnalysis, req)
	if err != nil {
		return nil, c.fail(ctx, apperrors.StageAssessment, outbound.OperationPointsAnalysis, err)
	}

	if err := coercePoints(doc); err != nil {
		return nil, c.fail(ctx, apperrors.StageAssessment, outbound.OperationPointsAnalysis, err)
	}
	var payload pointsPayload
	if err := c.decoder.decode(c.schemas.points, doc, &payload); err != nil {
		return nil, c.fail(ctx, apperrors.StageAssessment, outbound.OperationPointsAnalysis, err)
	}

	assessment := &recipe.PointsAssessment{
		NutritionalValues:     payload.NutritionalValues,
		CarbonFootprint:       payload.CarbonFootprint,
		PointsResponse:        payload.PointsResponse,
		JustificationResponse: payload.JustificationResponse,
		Warnings:              payload.Warnings,
	}
	if err := assessment.Validate(); err != nil {
		return nil, c.fail(ctx, apperrors.StageAssessment, outbound.OperationPointsAnalysis,
			apperrors.NewValidationError(err.Error()))
	}

	span.SetAttributes(attribute.Int("points", assessment.PointsResponse))
	return assessment, nil
}

// call audits the prompt, invokes the provider, audits the raw response
// and parses it. The raw text is audited before parsing so a failing parse
// is still on record.
func (c *Client) call(ctx context.Context, operation string, req outbound.ModelRequest) (map[string]interface{}, error) {
	c.record(ctx, operation, outbound.AuditPrompts, req.Prompt)

	start := time.Now()
	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		c.metrics.RecordModelCall(operation, "upstream_error", time.Since(start))
		if !apperrors.Is(err, apperrors.CodeUpstream) && !apperrors.Is(err, apperrors.CodeBadRequest) {
			err = apperrors.NewUpstreamError(c.provider.Name(), err)
		}
		return nil, err
	}
	c.record(ctx, operation, outbound.AuditResponses, resp.Text)
	c.recordUsage(ctx, operation, resp.Usage)

	doc, err := c.parser.Parse(resp.Text)
	if err != nil {
		c.metrics.RecordModelCall(operation, "parse_error", time.Since(start))
		c.record(ctx, operation, outbound.AuditErrors, fmt.Sprintf("%v\n\n%s", err, resp.Text))
		reason, detail := parser.ReasonMalformed, err.Error()
		if perr, ok := err.(*parser.ParseError); ok {
			reason, detail = perr.Reason, perr.Detail
		}
		return nil, apperrors.NewParseError(reason, detail).
			WithCause(err).
			WithMetadata("strategy", string(c.parser.Strategy()))
	}

	c.metrics.RecordModelCall(operation, "ok", time.Since(start))
	return doc, nil
}

// fail wraps err as a stage-tagged generation error, audits it and marks the span
func (c *Client) fail(ctx context.Context, stage apperrors.Stage, operation string, err error) error {
	genErr := apperrors.NewGenerationError(stage, err)

	if !apperrors.Is(err, apperrors.CodeParse) {
		// parse failures were audited together with the raw text
		c.record(ctx, operation, outbound.AuditErrors, err.Error())
	}
	c.logger.Warn("Generation stage failed",
		zap.String("stage", string(stage)),
		zap.String("operation", operation),
		zap.String("code", string(apperrors.GetCode(err))),
		zap.Error(err),
	)

	if span := spanFrom(ctx); span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage))
	}
	return genErr
}

func (c *Client) record(ctx context.Context, operation string, kind outbound.AuditKind, text string) {
	if c.audit == nil {
		return
	}
	entry := outbound.AuditEntry{Operation: operation, Kind: kind, Text: text, At: time.Now()}
	// Entries outlive the request; a disconnecting client still gets its errors logged.
	if err := c.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("Audit write failed",
			zap.String("operation", operation),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
