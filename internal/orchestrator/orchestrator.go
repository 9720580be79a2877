// Package orchestrator runs the chat control loop: retrieval, prompt
// assembly, model decision, capability dispatch, and answer streaming.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/playwise/playwise/internal/log"
	"github.com/playwise/playwise/internal/prompt"
	"github.com/playwise/playwise/internal/retrieval"
	"github.com/playwise/playwise/internal/tools"
)

// ErrorMessage is the single user-visible chunk emitted when a model call
// fails terminally.
const ErrorMessage = "An error occurred while processing your request."

// decisionTimeout caps the non-streaming decision call.
const decisionTimeout = 60 * time.Second

// Retriever supplies grounding context. *retrieval.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) retrieval.Result
}

// Invoker executes the search capability. *tools.SearchAndScrape satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, query string) tools.Outcome
}

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Model     ModelClient
	Retriever Retriever
	Invoker   Invoker
	Tool      ai.ToolRef // registered capability, presented to the model for its schema

	Logger log.Logger

	// RateLimiter throttles model calls proactively (nil = disabled).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Model == nil {
		return errors.New("model client is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Invoker == nil {
		return errors.New("invoker is required")
	}
	if cfg.Tool == nil {
		return errors.New("capability definition is required")
	}
	return nil
}

// Orchestrator is stateless across requests; each Run carries its own turn
// state so concurrent requests never share image lists or footers.
type Orchestrator struct {
	model     ModelClient
	retriever Retriever
	invoker   Invoker
	toolRefs  []ai.ToolRef
	limiter   *rate.Limiter
	logger    log.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		model:     cfg.Model,
		retriever: cfg.Retriever,
		invoker:   cfg.Invoker,
		toolRefs:  []ai.ToolRef{cfg.Tool},
		limiter:   cfg.RateLimiter,
		logger:    logger,
	}, nil
}

// turn is the per-request state threaded through the state machine.
type turn struct {
	messages []*ai.Message
	query    string

	retrieved retrieval.Result
	system    string

	decision *ai.ModelResponse

	// footerSources is non-nil only when the answer is grounded in the
	// retrieved context. Capability dispatch suppresses it: the tool
	// result, not the original retrieval, is then the grounding.
	footerSources []retrieval.Source
	images        []tools.Image
}

// Run executes one chat turn and writes the response byte stream to w.
// The returned error reports terminal failures after the user-visible
// error chunk has already been emitted.
func (o *Orchestrator) Run(ctx context.Context, messages []*ai.Message, w io.Writer) error {
	if len(messages) == 0 {
		return errors.New("at least one message is required")
	}

	mux := NewMultiplexer(w, o.logger)
	defer mux.Close()

	t := &turn{
		messages: messages,
		query:    latestUserText(messages),
	}

	for state := StateRetrieving; state != StateDone; {
		o.logger.Debug("turn state", "state", state.String())

		var err error
		switch state {
		case StateRetrieving:
			t.retrieved = o.retriever.Retrieve(ctx, t.query)
			state = StatePrompting

		case StatePrompting:
			t.system = prompt.BuildInstruction(t.retrieved)
			state = StateAwaitingModel

		case StateAwaitingModel:
			state, err = o.decide(ctx, t)

		case StateDirectAnswer:
			if !t.retrieved.Empty() {
				t.footerSources = t.retrieved.Sources
			}
			state = StateStreaming

		case StateToolDispatch:
			o.dispatch(ctx, t)
			state = StateStreaming

		case StateStreaming:
			err = o.stream(ctx, t, mux)
			state = StateDone
		}

		if err != nil {
			o.logger.Error("turn failed", "error", err)
			mux.Fail(ErrorMessage)
			return err
		}
	}
	return nil
}

// decide runs the non-streaming decision call and picks the branch.
func (o *Orchestrator) decide(ctx context.Context, t *turn) (State, error) {
	if err := o.waitLimiter(ctx); err != nil {
		return StateDone, err
	}

	decideCtx, cancel := context.WithTimeout(ctx, decisionTimeout)
	defer cancel()

	resp, err := o.model.Decide(decideCtx, t.system, t.messages, o.toolRefs)
	if err != nil {
		return StateDone, err
	}
	t.decision = resp

	if len(resp.ToolRequests()) > 0 {
		return StateToolDispatch, nil
	}
	return StateDirectAnswer, nil
}

// dispatch resolves the decision's tool requests sequentially in emission
// order, once per distinct call id, and extends the conversation with the
// model turn plus one tool-result turn.
func (o *Orchestrator) dispatch(ctx context.Context, t *turn) {
	requests := t.decision.ToolRequests()
	parts := make([]*ai.Part, 0, len(requests))
	done := make(map[string]struct{}, len(requests))

	for _, req := range requests {
		id := req.Ref
		if id == "" {
			id = req.Name
		}
		if _, ok := done[id]; ok {
			continue
		}
		done[id] = struct{}{}

		var summary string
		switch req.Name {
		case tools.Name:
			outcome := o.invoker.Invoke(ctx, queryFromInput(req.Input, t.query))
			summary = outcome.Summary
			t.images = append(t.images, outcome.Images...)
		default:
			o.logger.Warn("model requested unknown capability", "name", req.Name)
			summary = fmt.Sprintf("Capability %q is not available.", req.Name)
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: summary,
		}))
	}

	// The decision request already carried the system instruction, so its
	// history echoes it back as a system-role message. The streaming call
	// supplies the instruction itself; keeping the echoed copy would send
	// it to the model twice.
	history := t.decision.History()
	rebuilt := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role == ai.RoleSystem {
			continue
		}
		rebuilt = append(rebuilt, m)
	}
	t.messages = append(rebuilt, ai.NewMessage(ai.RoleTool, nil, parts...))
}

// stream runs the streaming call over the possibly extended conversation
// and finishes the multiplexed response.
func (o *Orchestrator) stream(ctx context.Context, t *turn, mux *Multiplexer) error {
	if err := o.waitLimiter(ctx); err != nil {
		return err
	}

	_, err := o.model.Stream(ctx, t.system, t.messages, func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		return mux.Token(chunk.Text())
	})
	if err != nil {
		return err
	}
	return mux.Finish(t.footerSources, t.images)
}

func (o *Orchestrator) waitLimiter(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// latestUserText returns the content of the most recent user message.
func latestUserText(messages []*ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}

// queryFromInput extracts the capability's query argument; the model may
// omit it, in which case the user's own question is the query.
func queryFromInput(input any, fallback string) string {
	if m, ok := input.(map[string]any); ok {
		if q, ok := m["query"].(string); ok && q != "" {
			return q
		}
	}
	if in, ok := input.(tools.Input); ok && in.Query != "" {
		return in.Query
	}
	return fallback
}
