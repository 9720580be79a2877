// Package knowledge manages the PlayStation content table: pgvector
// similarity search for the chat pipeline and chunk storage for the
// ingestion service.
package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/playwise/playwise/internal/log"
)

// insertBatchSize bounds a single batch insert; mirrors the payload limit
// the ingestion path has always worked under.
const insertBatchSize = 500

// searchTimeout caps a single vector search so a slow query cannot block
// the whole chat request.
const searchTimeout = 10 * time.Second

// DB is the subset of pgxpool.Pool the store needs.
// Defined here, by the consumer, so tests can substitute fakes.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store provides access to the playstation_content table.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store backed by the given database handle.
func NewStore(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// SearchSimilar returns up to limit passages whose cosine similarity to the
// query embedding exceeds threshold, ordered by similarity descending.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]Passage, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(queryCtx, `
		SELECT text, source_url, page_title, 1 - (embedding <=> $1) AS similarity
		FROM playstation_content
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vec, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.Text, &p.SourceURL, &p.PageTitle, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passages: %w", err)
	}

	s.logger.Debug("vector search complete",
		"hits", len(passages), "threshold", threshold, "limit", limit)
	return passages, nil
}

// ReplaceSource deletes any previously stored chunks for the page's URL and
// inserts the new chunks, batched to stay under payload limits.
func (s *Store) ReplaceSource(ctx context.Context, page Page, chunks []Chunk) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM playstation_content WHERE source_url = $1`, page.SourceURL,
	); err != nil {
		return fmt.Errorf("deleting old chunks for %s: %w", page.SourceURL, err)
	}

	scrapedAt := page.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	for start := 0; start < len(chunks); start += insertBatchSize {
		end := min(start+insertBatchSize, len(chunks))

		batch := &pgx.Batch{}
		for _, c := range chunks[start:end] {
			batch.Queue(`
				INSERT INTO playstation_content (id, text, embedding, source_url, page_title, scraped_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.NewString(), c.Text, pgvector.NewVector(c.Embedding),
				page.SourceURL, page.Title, scrapedAt,
			)
		}

		results := s.db.SendBatch(ctx, batch)
		err := results.Close()
		if err != nil {
			return fmt.Errorf("inserting chunks for %s: %w", page.SourceURL, err)
		}
	}

	s.logger.Info("stored chunks", "count", len(chunks), "source_url", page.SourceURL)
	return nil
}

// RecentlyScraped reports whether the URL already has chunks stored within
// the cooldown window.
func (s *Store) RecentlyScraped(ctx context.Context, url string, cooldown time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-cooldown)

	rows, err := s.db.Query(ctx, `
		SELECT 1 FROM playstation_content
		WHERE source_url = $1 AND scraped_at >= $2
		LIMIT 1`,
		url, cutoff,
	)
	if err != nil {
		return false, fmt.Errorf("checking scrape cooldown for %s: %w", url, err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("reading cooldown row: %w", err)
	}
	return found, nil
}
