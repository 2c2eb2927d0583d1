// Package scripted provides a deterministic model provider. Tests queue
// exact replies; the offline mode answers every request with canned JSON
// chosen from the requested schema.
package scripted

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecofridge/server/internal/ports/outbound"
	apperrors "github.com/ecofridge/server/pkg/errors"
)

const providerName = "scripted"

// Reply is one scripted model answer
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// Provider replays queued replies in order
type Provider struct {
	mu       sync.Mutex
	replies  []Reply
	calls    []outbound.ModelRequest
	fallback func(outbound.ModelRequest) (string, error)
}

// New creates a provider that answers with replies in order. Running out of
// replies is an upstream error.
func New(replies ...Reply) *Provider {
	return &Provider{replies: replies}
}

// NewOffline creates a provider that never runs out of answers
func NewOffline() *Provider {
	return &Provider{fallback: cannedReply}
}

// Enqueue appends replies
func (p *Provider) Enqueue(replies ...Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, replies...)
}

// Calls returns every request received so far
func (p *Provider) Calls() []outbound.ModelRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]outbound.ModelRequest(nil), p.calls...)
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Generate implements outbound.ModelProvider
func (p *Provider) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	reply, ok := p.next(req)
	if !ok {
		return nil, apperrors.NewUpstreamError(providerName, fmt.Errorf("no scripted reply left"))
	}

	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, apperrors.NewUpstreamError(providerName, ctx.Err()).WithMetadata("timeout", true)
		}
	}

	if reply.Err != nil {
		var appErr *apperrors.AppError
		if stderrors.As(reply.Err, &appErr) {
			return nil, reply.Err
		}
		err := apperrors.NewUpstreamError(providerName, reply.Err)
		if stderrors.Is(reply.Err, context.DeadlineExceeded) {
			err.WithMetadata("timeout", true)
		}
		return nil, err
	}

	return &outbound.ModelResponse{
		Text:         reply.Text,
		Model:        providerName,
		FinishReason: "STOP",
	}, nil
}

func (p *Provider) next(req outbound.ModelRequest) (Reply, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)
	if len(p.replies) > 0 {
		reply := p.replies[0]
		p.replies = p.replies[1:]
		return reply, true
	}
	if p.fallback != nil {
		text, err := p.fallback(req)
		return Reply{Text: text, Err: err}, true
	}
	return Reply{}, false
}

// cannedReply picks an answer by looking at the schema's required fields.
func cannedReply(req outbound.ModelRequest) (string, error) {
	required := map[string]bool{}
	if list, ok := req.Schema["required"].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				required[s] = true
			}
		}
	}

	switch {
	case required["points_response"]:
		return `{"nutritional_values":"Approx. 350 kcal per serving","carbon_footprint":0.8,` +
			`"points_response":60,"justification_response":"Mostly plant based and uses items close to expiry.",` +
			`"warnings":""}`, nil
	case required["recipe_name"]:
		return `{"recipe_name":"Pantry Vegetable Saute","short_description":"A quick saute of what is in the fridge.",` +
			`"cooking_time":20,"difficulty":"Easy","ingredients":["1 onion","2 tomato","salt","olive oil"],` +
			`"instructions":["Chop the vegetables.","Saute in olive oil for 15 minutes.","Season and serve."]}`, nil
	case required["ingredients"] || req.Modality == outbound.ModalityImageText:
		return `{"ingredients":[{"name":"tomato","count":4,"units":"pcs","expiry":5,"carbon_footprint":1},` +
			`{"name":"onion","count":2,"units":"pcs","expiry":14,"carbon_footprint":1}]}`, nil
	default:
		return "", fmt.Errorf("offline provider cannot answer this request")
	}
}
