// Package gemini provides the Google Gemini adapter for the model provider port
package gemini

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const providerName = "gemini"

// Config holds the adapter settings
type Config struct {
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
	Burst             int
}

// contentGenerator is the subset of *genai.Models the client calls
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements outbound.ModelProvider on top of the genai SDK.
// It rate-limits calls but never retries them.
type Client struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Gemini client. A missing API key is a configuration error.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.NewConfigurationError("ai.api_key", "GEMINI_API_KEY is not set")
	}
	if cfg.Model == "" {
		return nil, apperrors.NewConfigurationError("ai.model", "model name is required")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.NewConfigurationError("ai", "failed to create genai client").WithCause(err)
	}

	logger.Info("Gemini client initialized", zap.String("model", cfg.Model))
	return newClient(cli.Models, cfg, logger), nil
}

func newClient(models contentGenerator, cfg Config, logger *zap.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst)
	}

	return &Client{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: limiter,
		logger:  logger.Named("gemini"),
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName + ":" + c.model
}

// Generate sends one request and returns the concatenated text of the first candidate
func (c *Client) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.upstreamError(ctx, fmt.Errorf("rate limiter: %w", err))
		}
	}

	contents, err := buildContents(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, buildConfig(req))
	if err != nil {
		c.logger.Warn("Gemini request failed",
			zap.String("modality", string(req.Modality)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, c.upstreamError(ctx, err)
	}

	out, err := toModelResponse(resp, c.model)
	if err != nil {
		return nil, c.upstreamError(ctx, err)
	}

	c.logger.Debug("Gemini request completed",
		zap.String("modality", string(req.Modality)),
		zap.String("finish_reason", out.FinishReason),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (c *Client) upstreamError(ctx context.Context, err error) *apperrors.AppError {
	appErr := apperrors.NewUpstreamError(c.Name(), err)
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		appErr.WithMetadata("timeout", true)
	}
	return appErr
}

func buildContents(req outbound.ModelRequest) ([]*genai.Content, error) {
	parts := []*genai.Part{{Text: req.Prompt}}

	if req.Modality == outbound.ModalityImageText {
		if len(req.Image) == 0 {
			return nil, apperrors.NewBadRequestError("image is required for image+text requests")
		}
		mimeType := req.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append([]*genai.Part{{InlineData: &genai.Blob{MIMEType: mimeType, Data: req.Image}}}, parts...)
	}

	return []*genai.Content{{Role: "user", Parts: parts}}, nil
}

func buildConfig(req outbound.ModelRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		MaxOutputTokens:  req.MaxOutputTokens,
		ResponseMIMEType: "application/json",
	}
	if req.Schema != nil {
		cfg.ResponseSchema = toSchema(req.Schema)
	}
	return cfg
}

func toModelResponse(resp *genai.GenerateContentResponse, model string) (*outbound.ModelResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("response has no candidates")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	out := &outbound.ModelResponse{
		Text:         text.String(),
		Model:        model,
		FinishReason: string(candidate.FinishReason),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = outbound.TokenUsage{
			PromptTokens: int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}
