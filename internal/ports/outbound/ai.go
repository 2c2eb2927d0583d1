package outbound

import (
	"context"
)

// Modality of a model request
type Modality string

const (
	ModalityText      Modality = "text"
	ModalityImageText Modality = "image+text"
)

// ModelRequest is one call to a generative model
type ModelRequest struct {
	Modality Modality
	Prompt   string
	Image    []byte
	MIMEType string
	// Schema is a JSON schema the provider should constrain its output to.
	// Providers without schema support ignore it.
	Schema          map[string]interface{}
	Temperature     *float32
	TopP            *float32
	TopK            *float32
	MaxOutputTokens int32
}

// TokenUsage reports provider-side token accounting
type TokenUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ModelResponse is the raw text returned by a generative model
type ModelResponse struct {
	Text         string
	Model        string
	FinishReason string
	Usage        TokenUsage
}

// ModelProvider abstracts the generative model. Implementations return an
// UPSTREAM_ERROR AppError for network, auth, quota or timeout failures.
type ModelProvider interface {
	Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error)
	Name() string
}
