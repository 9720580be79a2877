// Package retrieval turns a user query into grounding context for the
// chat model: it embeds the query, runs a pgvector similarity search, and
// merges the hits into a single context block with a deduplicated source
// list.
//
// Absence of context is a normal outcome, not an error: every failure on
// this path (embedding, search) degrades to an empty Result and is logged,
// never surfaced to the caller.
package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/playwise/playwise/internal/knowledge"
	"github.com/playwise/playwise/internal/log"
)

// retrievalTimeout caps embedding plus search so a slow retrieval cannot
// block the chat request.
const retrievalTimeout = 5 * time.Second

// passageSeparator joins passage texts inside the context block.
const passageSeparator = "\n\n---\n\n"

// Source is one cited origin of retrieved context.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Result is the merged outcome of one retrieval.
// Sources contains no duplicate URL, in first-seen order, even when
// several passages come from the same page.
type Result struct {
	ContextBlock string
	Sources      []Source
}

// Empty reports whether retrieval produced no usable context.
func (r Result) Empty() bool {
	return r.ContextBlock == ""
}

// Searcher is the similarity-search capability the retriever depends on.
// *knowledge.Store satisfies it.
type Searcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]knowledge.Passage, error)
}

// Retriever embeds queries and searches the knowledge store.
type Retriever struct {
	embedder  ai.Embedder
	searcher  Searcher
	threshold float32
	topK      int
	logger    log.Logger
}

// New creates a Retriever.
func New(embedder ai.Embedder, searcher Searcher, threshold float32, topK int, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		threshold: threshold,
		topK:      topK,
		logger:    logger,
	}
}

// Retrieve returns the context for query. The zero Result means no relevant
// knowledge was found (or retrieval degraded); callers must treat both the
// same way.
func (r *Retriever) Retrieve(ctx context.Context, query string) Result {
	retrCtx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	resp, err := r.embedder.Embed(retrCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		r.logger.Warn("query embedding failed (continuing without context)",
			"error", err, "query_length", len(query))
		return Result{}
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		r.logger.Warn("embedder returned no vector (continuing without context)")
		return Result{}
	}

	passages, err := r.searcher.SearchSimilar(retrCtx, resp.Embeddings[0].Embedding, r.threshold, r.topK)
	if err != nil {
		r.logger.Warn("similarity search failed (continuing without context)",
			"error", err)
		return Result{}
	}
	if len(passages) == 0 {
		r.logger.Debug("no passages above threshold", "threshold", r.threshold)
		return Result{}
	}

	return merge(passages)
}

// merge concatenates passage texts and collects sources, dropping duplicate
// URLs while preserving first-occurrence order.
func merge(passages []knowledge.Passage) Result {
	texts := make([]string, 0, len(passages))
	sources := make([]Source, 0, len(passages))
	seen := make(map[string]struct{}, len(passages))

	for _, p := range passages {
		texts = append(texts, p.Text)
		if _, ok := seen[p.SourceURL]; ok {
			continue
		}
		seen[p.SourceURL] = struct{}{}
		sources = append(sources, Source{Title: p.PageTitle, URL: p.SourceURL})
	}

	return Result{
		ContextBlock: strings.Join(texts, passageSeparator),
		Sources:      sources,
	}
}
