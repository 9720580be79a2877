package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/firebase/genkit/go/ai"

	"github.com/playwise/playwise/internal/log"
)

// maxChatBodyBytes bounds the request body to keep conversations sane.
const maxChatBodyBytes = 1 << 20

// Runner executes one chat turn and writes the response byte stream.
// *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, messages []*ai.Message, w io.Writer) error
}

// ChatMessage is one turn of the inbound conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatHandler handles the streaming chat endpoint.
type ChatHandler struct {
	runner Runner
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(runner Runner, logger log.Logger) *ChatHandler {
	return &ChatHandler{runner: runner, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.chat)
}

// chat streams a plain-text answer. The body is raw token text followed by
// an optional Sources footer and a delimited JSON image payload; there is
// no JSON envelope around the stream.
func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if err := h.runner.Run(r.Context(), messages, w); err != nil {
		// The stream already carried a user-visible error chunk; the
		// status line is long gone, so only log here.
		h.logger.Error("chat turn failed", "error", err)
	}
}

// convertMessages validates the inbound conversation and maps it onto
// model message turns.
func convertMessages(msgs []ChatMessage) ([]*ai.Message, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages must not be empty")
	}

	converted := make([]*ai.Message, 0, len(msgs))
	for i, m := range msgs {
		if m.Content == "" {
			return nil, fmt.Errorf("message %d has empty content", i)
		}
		switch m.Role {
		case "user":
			converted = append(converted, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case "assistant":
			converted = append(converted, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			return nil, fmt.Errorf("message %d has unsupported role %q", i, m.Role)
		}
	}

	if msgs[len(msgs)-1].Role != "user" {
		return nil, fmt.Errorf("last message must come from the user")
	}
	return converted, nil
}
