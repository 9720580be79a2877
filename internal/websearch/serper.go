// Package websearch provides a client for the Serper web search API,
// covering both general (organic) and image-focused searches.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/playwise/playwise/internal/log"
)

// DefaultBaseURL is the production Serper endpoint.
const DefaultBaseURL = "https://google.serper.dev"

const requestTimeout = 10 * time.Second

// Result is one organic web search hit.
type Result struct {
	Title        string
	URL          string
	Snippet      string
	ThumbnailURL string // present on some organic results
}

// ImageResult is one hit from the image-focused search.
type ImageResult struct {
	ImageURL  string
	Title     string
	SourceURL string
}

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string       // defaults to DefaultBaseURL
	Client  *http.Client // defaults to a client with a 10s timeout
	Logger  log.Logger
}

// Client calls the Serper API. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// New creates a Serper client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("serper api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// Search runs a general web search and returns up to count organic results.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	var raw struct {
		Organic []struct {
			Title        string `json:"title"`
			Link         string `json:"link"`
			Snippet      string `json:"snippet"`
			ThumbnailURL string `json:"thumbnailUrl"`
		} `json:"organic"`
	}
	if err := c.post(ctx, "/search", query, count, &raw); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(raw.Organic))
	for i, item := range raw.Organic {
		if i >= count {
			break
		}
		results = append(results, Result{
			Title:        item.Title,
			URL:          item.Link,
			Snippet:      item.Snippet,
			ThumbnailURL: item.ThumbnailURL,
		})
	}
	return results, nil
}

// SearchImages runs an image-focused search and returns up to count hits.
func (c *Client) SearchImages(ctx context.Context, query string, count int) ([]ImageResult, error) {
	var raw struct {
		Images []struct {
			Title    string `json:"title"`
			ImageURL string `json:"imageUrl"`
			Link     string `json:"link"`
		} `json:"images"`
	}
	if err := c.post(ctx, "/images", query, count, &raw); err != nil {
		return nil, err
	}

	results := make([]ImageResult, 0, len(raw.Images))
	for i, item := range raw.Images {
		if i >= count {
			break
		}
		results = append(results, ImageResult{
			ImageURL:  item.ImageURL,
			Title:     item.Title,
			SourceURL: item.Link,
		})
	}
	return results, nil
}

// post issues one Serper API call and decodes the response into out.
func (c *Client) post(ctx context.Context, path, query string, count int, out any) error {
	payload, err := json.Marshal(map[string]any{"q": query, "num": count})
	if err != nil {
		return fmt.Errorf("encoding search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding search response: %w", err)
	}

	c.logger.Debug("serper request complete", "path", path, "query_length", len(query))
	return nil
}
