package orchestrator

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// StreamCallback receives each partial chunk of a streaming model response.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// ModelClient is the language model surface the orchestrator depends on.
// Decide is the non-streaming call that may return tool requests; Stream
// delivers the final answer token by token.
type ModelClient interface {
	Decide(ctx context.Context, system string, messages []*ai.Message, tools []ai.ToolRef) (*ai.ModelResponse, error)
	Stream(ctx context.Context, system string, messages []*ai.Message, cb StreamCallback) (*ai.ModelResponse, error)
}

// GenkitModel is the production ModelClient backed by a Genkit instance.
type GenkitModel struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitModel creates a ModelClient bound to the named model,
// e.g. "googleai/gemini-2.5-flash".
func NewGenkitModel(g *genkit.Genkit, modelName string) (*GenkitModel, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &GenkitModel{g: g, modelName: modelName}, nil
}

// Decide runs one non-streaming generation with the capability schemas
// attached. Tool requests are returned to the caller instead of being
// auto-executed, so capability results can carry values the framework's
// loop would discard.
func (m *GenkitModel) Decide(ctx context.Context, system string, messages []*ai.Message, tools []ai.ToolRef) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(m.modelName),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
	}
	if len(tools) > 0 {
		opts = append(opts,
			ai.WithTools(tools...),
			ai.WithReturnToolRequests(true),
		)
	}

	resp, err := genkit.Generate(ctx, m.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("decision call: %w", err)
	}
	return resp, nil
}

// Stream runs one streaming generation without tools attached and forwards
// each chunk to cb.
func (m *GenkitModel) Stream(ctx context.Context, system string, messages []*ai.Message, cb StreamCallback) (*ai.ModelResponse, error) {
	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.modelName),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return cb(ctx, chunk)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("streaming call: %w", err)
	}
	return resp, nil
}
