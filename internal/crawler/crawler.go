// Package crawler turns web pages into filtered, embedded, deduplicated
// chunks in the knowledge store. One Crawl call walks a single site,
// staying on the start URL's domain up to a page ceiling.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/playwise/playwise/internal/knowledge"
	"github.com/playwise/playwise/internal/log"
)

// Store is the persistence surface the crawler needs.
// *knowledge.Store satisfies it.
type Store interface {
	RecentlyScraped(ctx context.Context, url string, cooldown time.Duration) (bool, error)
	ReplaceSource(ctx context.Context, page knowledge.Page, chunks []knowledge.Chunk) error
}

// Embedder turns chunk texts into vectors. *RetryEmbedder satisfies it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Config contains all required parameters for the Crawler.
type Config struct {
	Store    Store
	Embedder Embedder

	ChunkSize    int           // default 1000
	ChunkOverlap int           // default 200
	Cooldown     time.Duration // skip URLs stored more recently than this, default 24h

	Logger log.Logger
}

// Crawler walks one site at a time and feeds its pages through the
// chunk, filter, embed, dedupe, store pipeline.
type Crawler struct {
	store        Store
	embedder     Embedder
	chunkSize    int
	chunkOverlap int
	cooldown     time.Duration
	logger       log.Logger
}

// New creates a Crawler.
func New(cfg Config) (*Crawler, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap <= 0 {
		chunkOverlap = 200
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 24 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Crawler{
		store:        cfg.Store,
		embedder:     cfg.Embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		cooldown:     cooldown,
		logger:       logger,
	}, nil
}

// Crawl starts at startURL and follows same-domain links breadth-first
// until maxPages pages have been processed. Individual page failures are
// logged and skipped; only a bad start URL is an error.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int) error {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return fmt.Errorf("invalid start URL %q", startURL)
	}
	if maxPages <= 0 {
		maxPages = 5
	}

	processed := 0

	collector := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
	)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || processed >= maxPages {
			r.Abort()
			return
		}
		recent, err := c.store.RecentlyScraped(ctx, r.URL.String(), c.cooldown)
		if err != nil {
			c.logger.Warn("cooldown check failed", "url", r.URL.String(), "error", err)
			return
		}
		if recent {
			c.logger.Info("skipping recently scraped URL", "url", r.URL.String())
			r.Abort()
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		// Fragments alias the same document.
		link, _, _ = strings.Cut(link, "#")
		_ = e.Request.Visit(link)
	})

	collector.OnResponse(func(r *colly.Response) {
		if processed >= maxPages {
			return
		}
		pageURL := r.Request.URL
		c.logger.Info("crawling page",
			"page", processed+1, "max_pages", maxPages, "url", pageURL.String())

		if err := c.processPage(ctx, pageURL, r.Body); err != nil {
			c.logger.Warn("page processing failed", "url", pageURL.String(), "error", err)
			return
		}
		processed++
	})

	if err := collector.Visit(startURL); err != nil {
		return fmt.Errorf("starting crawl at %s: %w", startURL, err)
	}
	collector.Wait()

	c.logger.Info("crawl complete", "pages", processed, "start_url", startURL)
	return nil
}

// processPage extracts readable content and runs it through the pipeline.
func (c *Crawler) processPage(ctx context.Context, pageURL *url.URL, body []byte) error {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return fmt.Errorf("extracting content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return errors.New("no readable content")
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = htmlTitle(body)
	}
	if title == "" {
		title = pageURL.String()
	}

	raw := Split(text, c.chunkSize, c.chunkOverlap)
	c.logger.Debug("split page", "url", pageURL.String(), "raw_chunks", len(raw))

	filtered := FilterChunks(raw)
	if len(filtered) == 0 {
		c.logger.Info("no relevant chunks after filtering", "url", pageURL.String())
		return nil
	}

	vectors, err := c.embedder.EmbedTexts(ctx, filtered)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	texts, vectors := Deduplicate(filtered, vectors)

	chunks := make([]knowledge.Chunk, len(texts))
	for i := range texts {
		chunks[i] = knowledge.Chunk{Text: texts[i], Embedding: vectors[i]}
	}

	page := knowledge.Page{
		SourceURL: pageURL.String(),
		Title:     title,
		ScrapedAt: time.Now().UTC(),
	}
	if err := c.store.ReplaceSource(ctx, page, chunks); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}

	c.logger.Info("stored page",
		"url", pageURL.String(), "title", title,
		"kept_chunks", len(chunks), "raw_chunks", len(raw))
	return nil
}

// htmlTitle falls back to the document's <title> element.
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
