package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/playwise/playwise/internal/log"
)

// EmbedClient is the embedding capability. ai.Embedder satisfies it.
type EmbedClient interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// RetryEmbedder wraps the embedding model with retries on rate-limit
// rejections, which bulk ingestion hits routinely.
type RetryEmbedder struct {
	client  EmbedClient
	retries int
	delay   time.Duration
	logger  log.Logger
}

// NewRetryEmbedder creates a RetryEmbedder. retries and delay fall back to
// 5 attempts and 10s when non-positive.
func NewRetryEmbedder(client EmbedClient, retries int, delay time.Duration, logger log.Logger) *RetryEmbedder {
	if retries <= 0 {
		retries = 5
	}
	if delay <= 0 {
		delay = 10 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &RetryEmbedder{client: client, retries: retries, delay: delay, logger: logger}
}

// EmbedTexts embeds all texts in one request, retrying on rate limits.
// The returned vectors are parallel to texts.
func (e *RetryEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}
	req := &ai.EmbedRequest{Input: docs}

	var lastErr error
	for attempt := 1; attempt <= e.retries; attempt++ {
		resp, err := e.client.Embed(ctx, req)
		if err == nil {
			if len(resp.Embeddings) != len(texts) {
				return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Embeddings), len(texts))
			}
			vectors := make([][]float32, len(resp.Embeddings))
			for i, emb := range resp.Embeddings {
				vectors[i] = emb.Embedding
			}
			return vectors, nil
		}
		if !isRateLimited(err) {
			return nil, fmt.Errorf("embedding texts: %w", err)
		}

		lastErr = err
		e.logger.Warn("embedding rate limited, retrying",
			"attempt", attempt, "retries", e.retries, "delay", e.delay)

		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("embedding failed after %d retries: %w", e.retries, lastErr)
}

// isRateLimited matches the quota rejections the embedding backend returns;
// there is no typed error to check.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate", "quota", "resource"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
