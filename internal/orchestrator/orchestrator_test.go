package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/playwise/playwise/internal/retrieval"
	"github.com/playwise/playwise/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRetriever struct {
	result retrieval.Result
	query  string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) retrieval.Result {
	f.query = query
	return f.result
}

type fakeInvoker struct {
	outcome tools.Outcome
	queries []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, query string) tools.Outcome {
	f.queries = append(f.queries, query)
	return f.outcome
}

// fakeModel replays canned decision responses and stream chunks, recording
// what it was asked.
type fakeModel struct {
	decisions   []*ai.ModelResponse
	decideErr   error
	streamText  []string
	streamErr   error
	decideCalls int

	lastSystem   string
	lastMessages []*ai.Message
}

func (f *fakeModel) Decide(ctx context.Context, system string, messages []*ai.Message, toolRefs []ai.ToolRef) (*ai.ModelResponse, error) {
	f.decideCalls++
	f.lastSystem = system
	if f.decideErr != nil {
		return nil, f.decideErr
	}
	resp := f.decisions[0]
	f.decisions = f.decisions[1:]
	// Generate folds the system instruction into the request as a
	// system-role message, so History() echoes it back.
	request := messages
	if system != "" {
		request = append([]*ai.Message{ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart(system))}, messages...)
	}
	resp.Request = &ai.ModelRequest{Messages: request}
	return resp, nil
}

func (f *fakeModel) Stream(ctx context.Context, system string, messages []*ai.Message, cb StreamCallback) (*ai.ModelResponse, error) {
	f.lastSystem = system
	f.lastMessages = messages
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	for _, text := range f.streamText {
		chunk := &ai.ModelResponseChunk{Content: []*ai.Part{ai.NewTextPart(text)}}
		if err := cb(ctx, chunk); err != nil {
			return nil, err
		}
	}
	return &ai.ModelResponse{Message: ai.NewModelMessage(ai.NewTextPart(strings.Join(f.streamText, "")))}, nil
}

func textDecision(text string) *ai.ModelResponse {
	return &ai.ModelResponse{Message: ai.NewModelMessage(ai.NewTextPart(text))}
}

func toolDecision(requests ...*ai.ToolRequest) *ai.ModelResponse {
	parts := make([]*ai.Part, len(requests))
	for i, req := range requests {
		parts[i] = ai.NewToolRequestPart(req)
	}
	return &ai.ModelResponse{Message: ai.NewMessage(ai.RoleModel, nil, parts...)}
}

// fakeToolRef stands in for the registered capability; the orchestrator
// only forwards it to the model by name.
type fakeToolRef struct{}

func (fakeToolRef) Name() string { return tools.Name }

func userMessages(texts ...string) []*ai.Message {
	msgs := make([]*ai.Message, len(texts))
	for i, text := range texts {
		msgs[i] = ai.NewUserMessage(ai.NewTextPart(text))
	}
	return msgs
}

func newOrchestrator(t *testing.T, model ModelClient, r Retriever, inv Invoker) *Orchestrator {
	t.Helper()
	o, err := New(Config{Model: model, Retriever: r, Invoker: inv, Tool: fakeToolRef{}})
	require.NoError(t, err)
	return o
}

func TestRun_DirectAnswerWithFooter(t *testing.T) {
	retriever := &fakeRetriever{result: retrieval.Result{
		ContextBlock: "PS5 Pro specs...",
		Sources: []retrieval.Source{
			{Title: "Hardware Guide", URL: "https://example.com/hardware"},
		},
	}}
	model := &fakeModel{
		decisions:  []*ai.ModelResponse{textDecision("The PS5 Pro has 16.7 TFLOPS.")},
		streamText: []string{"The PS5 Pro ", "has 16.7 TFLOPS."},
	}
	invoker := &fakeInvoker{}
	o := newOrchestrator(t, model, retriever, invoker)

	var buf strings.Builder
	err := o.Run(context.Background(), userMessages("How powerful is the PS5 Pro?"), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "The PS5 Pro has 16.7 TFLOPS."))
	assert.Contains(t, out, "### Sources")
	assert.Contains(t, out, "[Hardware Guide](https://example.com/hardware)")
	assert.NotContains(t, out, ImageDelimiter)

	assert.Equal(t, "How powerful is the PS5 Pro?", retriever.query)
	assert.Empty(t, invoker.queries)
	assert.Contains(t, model.lastSystem, "PS5 Pro specs...")
}

func TestRun_DirectAnswerEmptyContextNoFooter(t *testing.T) {
	model := &fakeModel{
		decisions:  []*ai.ModelResponse{textDecision("General answer.")},
		streamText: []string{"General answer."},
	}
	o := newOrchestrator(t, model, &fakeRetriever{}, &fakeInvoker{})

	var buf strings.Builder
	require.NoError(t, o.Run(context.Background(), userMessages("hello"), &buf))

	assert.Equal(t, "General answer.", buf.String())
}

func TestRun_ToolDispatch(t *testing.T) {
	retriever := &fakeRetriever{result: retrieval.Result{
		ContextBlock: "old context",
		Sources:      []retrieval.Source{{Title: "Old", URL: "https://old.example"}},
	}}
	invoker := &fakeInvoker{outcome: tools.Outcome{
		Summary: "Found 3 relevant URLs and triggered indexing of their content.",
		Images:  []tools.Image{{ImageURL: "https://img.example/1.jpg", AltText: "Box art"}},
	}}
	model := &fakeModel{
		decisions: []*ai.ModelResponse{toolDecision(&ai.ToolRequest{
			Name:  tools.Name,
			Ref:   "call-1",
			Input: map[string]any{"query": "spider-man 3 release date"},
		})},
		streamText: []string{"Spider-Man 3 releases in 2026."},
	}
	o := newOrchestrator(t, model, retriever, invoker)

	var buf strings.Builder
	require.NoError(t, o.Run(context.Background(), userMessages("When does Spider-Man 3 release?"), &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Spider-Man 3 releases in 2026."))
	// Capability dispatch suppresses the retrieval footer.
	assert.NotContains(t, out, "### Sources")
	// Images still ride the side channel.
	assert.Contains(t, out, ImageDelimiter)
	assert.Contains(t, out, "https://img.example/1.jpg")

	require.Equal(t, []string{"spider-man 3 release date"}, invoker.queries)

	// The streaming call sees the extended conversation ending in a
	// tool-result turn.
	require.NotEmpty(t, model.lastMessages)
	last := model.lastMessages[len(model.lastMessages)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
}

func TestRun_ToolDispatchSendsInstructionOnce(t *testing.T) {
	retriever := &fakeRetriever{result: retrieval.Result{
		ContextBlock: "retrieved context",
		Sources:      []retrieval.Source{{Title: "Guide", URL: "https://example.com/guide"}},
	}}
	invoker := &fakeInvoker{outcome: tools.Outcome{Summary: "Found 1 relevant URL."}}
	model := &fakeModel{
		decisions: []*ai.ModelResponse{toolDecision(&ai.ToolRequest{
			Name:  tools.Name,
			Ref:   "call-1",
			Input: map[string]any{"query": "ps5 pro specs"},
		})},
		streamText: []string{"done"},
	}
	o := newOrchestrator(t, model, retriever, invoker)

	var buf strings.Builder
	require.NoError(t, o.Run(context.Background(), userMessages("tell me about the PS5 Pro"), &buf))

	// The streaming call supplies the instruction itself; the rebuilt
	// conversation must not echo the decision call's system turn back.
	assert.Contains(t, model.lastSystem, "retrieved context")
	for _, m := range model.lastMessages {
		assert.NotEqual(t, ai.RoleSystem, m.Role)
	}
}

func TestRun_ToolDispatchDedupByCallID(t *testing.T) {
	invoker := &fakeInvoker{outcome: tools.Outcome{Summary: "ok"}}
	model := &fakeModel{
		decisions: []*ai.ModelResponse{toolDecision(
			&ai.ToolRequest{Name: tools.Name, Ref: "call-1", Input: map[string]any{"query": "q1"}},
			&ai.ToolRequest{Name: tools.Name, Ref: "call-1", Input: map[string]any{"query": "q1"}},
			&ai.ToolRequest{Name: tools.Name, Ref: "call-2", Input: map[string]any{"query": "q2"}},
		)},
		streamText: []string{"done"},
	}
	o := newOrchestrator(t, model, &fakeRetriever{}, invoker)

	var buf strings.Builder
	require.NoError(t, o.Run(context.Background(), userMessages("update"), &buf))

	assert.Equal(t, []string{"q1", "q2"}, invoker.queries)
}

func TestRun_UnknownCapability(t *testing.T) {
	invoker := &fakeInvoker{}
	model := &fakeModel{
		decisions: []*ai.ModelResponse{toolDecision(
			&ai.ToolRequest{Name: "teleport", Ref: "call-1", Input: map[string]any{}},
		)},
		streamText: []string{"I cannot do that."},
	}
	o := newOrchestrator(t, model, &fakeRetriever{}, invoker)

	var buf strings.Builder
	require.NoError(t, o.Run(context.Background(), userMessages("teleport me"), &buf))

	assert.Empty(t, invoker.queries)
	last := model.lastMessages[len(model.lastMessages)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
}

func TestRun_QueryFallsBackToUserMessage(t *testing.T) {
	invoker := &fakeInvoker{outcome: tools.Outcome{Summary: "ok"}}
	model := &fakeModel{
		decisions: []*ai.ModelResponse{toolDecision(
			&ai.ToolRequest{Name: tools.Name, Ref: "call-1", Input: map[string]any{}},
		)},
		streamText: []string{"done"},
	}
	o := newOrchestrator(t, model, &fakeRetriever{}, invoker)

	var buf strings.Builder
	require.NoError(t, o.Run(context.Background(), userMessages("latest PS Plus games"), &buf))

	assert.Equal(t, []string{"latest PS Plus games"}, invoker.queries)
}

func TestRun_DecisionFailureIsTerminal(t *testing.T) {
	model := &fakeModel{decideErr: fmt.Errorf("model unavailable")}
	o := newOrchestrator(t, model, &fakeRetriever{}, &fakeInvoker{})

	var buf strings.Builder
	err := o.Run(context.Background(), userMessages("hi"), &buf)
	require.Error(t, err)
	assert.Equal(t, ErrorMessage, buf.String())
}

func TestRun_StreamFailureIsTerminal(t *testing.T) {
	model := &fakeModel{
		decisions: []*ai.ModelResponse{textDecision("plan")},
		streamErr: fmt.Errorf("stream reset"),
	}
	o := newOrchestrator(t, model, &fakeRetriever{}, &fakeInvoker{})

	var buf strings.Builder
	err := o.Run(context.Background(), userMessages("hi"), &buf)
	require.Error(t, err)
	assert.Equal(t, ErrorMessage, buf.String())
}

func TestRun_NoMessages(t *testing.T) {
	o := newOrchestrator(t, &fakeModel{}, &fakeRetriever{}, &fakeInvoker{})

	var buf strings.Builder
	err := o.Run(context.Background(), nil, &buf)
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestRun_TwoModelCalls(t *testing.T) {
	model := &fakeModel{
		decisions:  []*ai.ModelResponse{textDecision("answer")},
		streamText: []string{"answer"},
	}
	o := newOrchestrator(t, model, &fakeRetriever{}, &fakeInvoker{})

	var buf strings.Builder
	require.NoError(t, o.Run(context.Background(), userMessages("q"), &buf))

	// Decision and streaming are separate calls so partial tool-call
	// syntax never reaches the client.
	assert.Equal(t, 1, model.decideCalls)
	assert.NotNil(t, model.lastMessages)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	names := map[State]string{
		StateRetrieving:    "RETRIEVING",
		StatePrompting:     "PROMPTING",
		StateAwaitingModel: "AWAITING_MODEL",
		StateDirectAnswer:  "DIRECT_ANSWER",
		StateToolDispatch:  "TOOL_DISPATCH",
		StateStreaming:     "STREAMING",
		StateDone:          "DONE",
	}
	for state, name := range names {
		assert.Equal(t, name, state.String())
	}
	assert.Equal(t, "UNKNOWN", State(99).String())
}
