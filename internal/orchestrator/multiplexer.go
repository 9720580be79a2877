package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/playwise/playwise/internal/log"
	"github.com/playwise/playwise/internal/retrieval"
	"github.com/playwise/playwise/internal/tools"
)

// ImageDelimiter separates the plain-text answer from the trailing JSON
// image payload. Clients split the byte stream on the first occurrence;
// the string never occurs naturally in model output.
const ImageDelimiter = "\n\n__IMAGE_PAYLOAD__\n"

// flusher is the subset of http.Flusher the multiplexer needs.
// Plain writers without it are still supported.
type flusher interface {
	Flush()
}

// Multiplexer serializes one response stream: model tokens in arrival
// order, then an optional Sources footer, then an optional delimited
// image payload. All writes stop after Close; Close is idempotent.
type Multiplexer struct {
	mu     sync.Mutex
	w      io.Writer
	f      flusher
	logger log.Logger
	closed bool
}

// NewMultiplexer wraps w. If w implements Flush (http.ResponseWriter
// behind chunked transfer does), each chunk is flushed immediately.
func NewMultiplexer(w io.Writer, logger log.Logger) *Multiplexer {
	if logger == nil {
		logger = log.NewNop()
	}
	m := &Multiplexer{w: w, logger: logger}
	if f, ok := w.(flusher); ok {
		m.f = f
	}
	return m
}

// Token forwards one model text chunk unchanged. Returns an error when the
// stream is closed or the client is gone; callers should abort on error.
func (m *Multiplexer) Token(text string) error {
	if text == "" {
		return nil
	}
	return m.write(text)
}

// Finish appends the footer and image payload, then closes the stream.
// The footer is emitted only when sources is non-empty; the payload only
// when images is non-empty. Safe to call after a failed Token.
func (m *Multiplexer) Finish(sources []retrieval.Source, images []tools.Image) error {
	defer m.Close()

	if len(sources) > 0 {
		if err := m.write(formatFooter(sources)); err != nil {
			return err
		}
	}
	if len(images) > 0 {
		payload, err := json.Marshal(images)
		if err != nil {
			m.logger.Warn("image payload encoding failed", "error", err)
			return nil
		}
		if err := m.write(ImageDelimiter + string(payload)); err != nil {
			return err
		}
	}
	return nil
}

// Fail writes a single user-visible error sentence and closes the stream.
// A no-op when tokens were never delivered to a now-closed stream.
func (m *Multiplexer) Fail(message string) {
	if err := m.write(message); err != nil {
		m.logger.Warn("error chunk delivery failed", "error", err)
	}
	m.Close()
}

// Close stops all further writes. Idempotent.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *Multiplexer) write(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("stream closed")
	}
	if _, err := io.WriteString(m.w, s); err != nil {
		// Client disconnects surface here; stop forwarding.
		m.closed = true
		return fmt.Errorf("write chunk: %w", err)
	}
	if m.f != nil {
		m.f.Flush()
	}
	return nil
}

func formatFooter(sources []retrieval.Source) string {
	var b strings.Builder
	b.WriteString("\n\n---\n\n### Sources\n")
	for _, s := range sources {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", title, s.URL)
	}
	return b.String()
}
