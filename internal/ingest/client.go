// Package ingest contains the ingestion service (HTTP surface over the
// crawler) and the client the chat pipeline uses to trigger it.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/playwise/playwise/internal/log"
)

const triggerTimeout = 10 * time.Second

// ScrapeRequest is the wire format of the /scrape trigger.
type ScrapeRequest struct {
	URLs     []string `json:"urls"`
	MaxPages int      `json:"max_pages"`
}

// Client triggers crawls on the ingestion service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// NewClient creates a trigger client for the ingestion service at baseURL.
func NewClient(baseURL string, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: triggerTimeout},
		logger:  logger,
	}
}

// Trigger asks the ingestion service to crawl the given URLs, up to
// maxPages pages each. The service answers as soon as the crawl is
// scheduled; completion is never awaited.
func (c *Client) Trigger(ctx context.Context, urls []string, maxPages int) error {
	payload, err := json.Marshal(ScrapeRequest{URLs: urls, MaxPages: maxPages})
	if err != nil {
		return fmt.Errorf("encoding scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scrape request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scrape request: unexpected status %d", resp.StatusCode)
	}

	c.logger.Info("ingestion triggered", "urls", len(urls), "max_pages", maxPages)
	return nil
}
