package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "llava", Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	assert.True(t, apperrors.Is(err, apperrors.CodeConfiguration))
}

func TestGenerate_ImageRequestCarriesSchemaAndImage(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:           "llava:7b",
			Message:         chatMessage{Role: "assistant", Content: `[{"name":"tomato"}]`},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 12,
			EvalCount:       8,
		})
	})

	temp := float32(0.5)
	resp, err := c.Generate(context.Background(), outbound.ModelRequest{
		Modality:        outbound.ModalityImageText,
		Prompt:          "what is in the fridge",
		Image:           []byte{0xff, 0xd8},
		MIMEType:        "image/jpeg",
		Schema:          map[string]interface{}{"type": "array"},
		Temperature:     &temp,
		MaxOutputTokens: 256,
	})

	require.NoError(t, err)
	assert.Equal(t, `[{"name":"tomato"}]`, resp.Text)
	assert.Equal(t, "llava:7b", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 20, resp.Usage.TotalTokens)

	require.Len(t, got.Messages, 1)
	assert.Equal(t, []string{"/9g="}, got.Messages[0].Images)
	assert.Equal(t, map[string]interface{}{"type": "array"}, got.Format)
	assert.EqualValues(t, 256, got.Options["num_predict"])
	assert.False(t, got.Stream)
}

func TestGenerate_ServerErrorIsUpstream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := c.Generate(context.Background(), outbound.ModelRequest{Modality: outbound.ModalityText, Prompt: "hi"})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeUpstream))
}

func TestGenerate_IncompleteResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Done: false})
	})

	_, err := c.Generate(context.Background(), outbound.ModelRequest{Modality: outbound.ModalityText, Prompt: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.CodeUpstream))
}

func TestGenerate_ImageRequired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.Generate(context.Background(), outbound.ModelRequest{Modality: outbound.ModalityImageText, Prompt: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.CodeBadRequest))
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, c.HealthCheck(context.Background()))
}
