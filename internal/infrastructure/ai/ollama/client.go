// Package ollama provides a model provider backed by a local Ollama server
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"go.uber.org/zap"
)

const providerName = "ollama"

// Config holds the adapter settings
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements outbound.ModelProvider using the Ollama chat API.
// Image requests need a vision model such as llava.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		return nil, apperrors.NewConfigurationError("ai.model", "model name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout))

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.Named("ollama"),
	}, nil
}

// Ollama API structures
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   interface{}            `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	EvalDuration    int64       `json:"eval_duration,omitempty"`
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName + ":" + c.model
}

// HealthCheck verifies the Ollama server is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// Generate sends one chat request. A schema, when present, is passed as the
// structured output format.
func (c *Client) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	msg := chatMessage{Role: "user", Content: req.Prompt}
	if req.Modality == outbound.ModalityImageText {
		if len(req.Image) == 0 {
			return nil, apperrors.NewBadRequestError("image is required for image+text requests")
		}
		msg.Images = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}

	body := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{msg},
		Stream:   false,
		Format:   "json",
		Options:  buildOptions(req),
	}
	if req.Schema != nil {
		body.Format = req.Schema
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, c.upstreamError(ctx, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("Ollama request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, c.upstreamError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.upstreamError(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.upstreamError(ctx, fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(raw), 512)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return nil, c.upstreamError(ctx, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if !chatResp.Done {
		return nil, c.upstreamError(ctx, fmt.Errorf("incomplete response from Ollama"))
	}

	c.logger.Debug("Ollama chat completion successful",
		zap.String("model", chatResp.Model),
		zap.Int("eval_count", chatResp.EvalCount),
		zap.Duration("elapsed", time.Since(start)))

	model := chatResp.Model
	if model == "" {
		model = c.model
	}
	return &outbound.ModelResponse{
		Text:         chatResp.Message.Content,
		Model:        model,
		FinishReason: chatResp.DoneReason,
		Usage: outbound.TokenUsage{
			PromptTokens: chatResp.PromptEvalCount,
			OutputTokens: chatResp.EvalCount,
			TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
		},
	}, nil
}

func buildOptions(req outbound.ModelRequest) map[string]interface{} {
	opts := map[string]interface{}{}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		opts["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		opts["top_k"] = int(*req.TopK)
	}
	if req.MaxOutputTokens > 0 {
		opts["num_predict"] = req.MaxOutputTokens
	}
	return opts
}

func (c *Client) upstreamError(ctx context.Context, err error) *apperrors.AppError {
	appErr := apperrors.NewUpstreamError(c.Name(), err)
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		appErr.WithMetadata("timeout", true)
	}
	return appErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
