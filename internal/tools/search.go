// Package tools implements the search_and_scrape capability exposed to the
// chat model.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/sync/errgroup"

	"github.com/playwise/playwise/internal/log"
	"github.com/playwise/playwise/internal/websearch"
)

const (
	// Name is the capability identifier presented to the model.
	Name = "search_and_scrape"

	// Description guides the model's decision to invoke the capability.
	Description = "Search the web for up-to-date PlayStation information and schedule " +
		"the discovered pages for indexing. Use this when the user explicitly asks to " +
		"update or search for new information, or when internal knowledge is insufficient."

	// NoResultsSummary is the benign outcome when the search finds nothing.
	NoResultsSummary = "No relevant URLs found for that query."
)

// searchTimeout caps both web searches combined.
const searchTimeout = 15 * time.Second

// triggerTimeout caps the detached ingestion trigger.
const triggerTimeout = 10 * time.Second

// Input is the tool argument schema presented to the model.
type Input struct {
	Query string `json:"query" jsonschema_description:"The search query"`
}

// Image is metadata for one image discovered during the search.
// Transient: scoped to the current request, never written to history.
type Image struct {
	ImageURL    string `json:"image_url"`
	AltText     string `json:"alt_text"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
}

// Outcome is the full result of one capability invocation. Summary goes
// back to the model as the tool response; Images ride the response
// side-channel and are threaded through per-request orchestrator state.
type Outcome struct {
	Summary string
	Images  []Image
}

// Searcher is the web search capability. *websearch.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]websearch.Result, error)
	SearchImages(ctx context.Context, query string, count int) ([]websearch.ImageResult, error)
}

// Trigger notifies the ingestion collaborator. *ingest.Client satisfies it.
type Trigger interface {
	Trigger(ctx context.Context, urls []string, maxPages int) error
}

// Config configures the capability.
type Config struct {
	Search     Searcher
	Ingest     Trigger
	URLLimit   int // candidate URLs per invocation, default 5
	ImageLimit int // images per invocation, default 9
	MaxPages   int // page ceiling per ingestion trigger, default 5
	Logger     log.Logger
}

// SearchAndScrape performs the capability: two parallel web searches, an
// asynchronous ingestion trigger, and a short natural-language summary.
type SearchAndScrape struct {
	search     Searcher
	ingest     Trigger
	urlLimit   int
	imageLimit int
	maxPages   int
	logger     log.Logger
}

// New creates the capability.
func New(cfg Config) (*SearchAndScrape, error) {
	if cfg.Search == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if cfg.Ingest == nil {
		return nil, fmt.Errorf("ingestion trigger is required")
	}
	urlLimit := cfg.URLLimit
	if urlLimit <= 0 {
		urlLimit = 5
	}
	imageLimit := cfg.ImageLimit
	if imageLimit <= 0 {
		imageLimit = 9
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &SearchAndScrape{
		search:     cfg.Search,
		ingest:     cfg.Ingest,
		urlLimit:   urlLimit,
		imageLimit: imageLimit,
		maxPages:   maxPages,
		logger:     logger,
	}, nil
}

// Register defines the capability with Genkit so its name, description and
// argument schema are presented to the model. The registered body delegates
// to Invoke; the orchestrator bypasses it and calls Invoke directly so the
// image list can be returned as a value instead of shared state.
func (t *SearchAndScrape) Register(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, Name, Description,
		func(ctx *ai.ToolContext, input Input) (string, error) {
			return t.Invoke(ctx, input.Query).Summary, nil
		})
}

// Invoke runs the capability. Search failures degrade to a benign
// "nothing found" outcome; they never propagate.
func (t *SearchAndScrape) Invoke(ctx context.Context, query string) Outcome {
	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	// Organic and image searches fan out concurrently; both are joined
	// before any URL is collected. Errors are captured per branch so one
	// failing search does not discard the other's results.
	var (
		organic []websearch.Result
		images  []websearch.ImageResult
	)
	var eg errgroup.Group
	eg.Go(func() error {
		results, err := t.search.Search(searchCtx, query, t.urlLimit)
		if err != nil {
			t.logger.Warn("web search failed", "error", err)
			return nil
		}
		organic = results
		return nil
	})
	eg.Go(func() error {
		results, err := t.search.SearchImages(searchCtx, query, t.imageLimit)
		if err != nil {
			t.logger.Warn("image search failed", "error", err)
			return nil
		}
		images = results
		return nil
	})
	_ = eg.Wait()

	urls, collected := t.collect(query, organic, images)
	if len(urls) == 0 {
		t.logger.Info("search found no URLs", "query_length", len(query))
		return Outcome{Summary: NoResultsSummary}
	}

	// Fire-and-forget: the response never waits on ingestion, and a
	// canceled request must not cancel a crawl already dispatched.
	go func() {
		triggerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), triggerTimeout)
		defer cancel()
		if err := t.ingest.Trigger(triggerCtx, urls, t.maxPages); err != nil {
			t.logger.Warn("ingestion trigger failed", "error", err, "urls", len(urls))
		}
	}()

	summary := fmt.Sprintf(
		"Found %d relevant URLs and triggered indexing of their content. "+
			"New information will be searchable shortly; answer with what is known so far.",
		len(urls))
	return Outcome{Summary: summary, Images: collected}
}

// collect gathers candidate URLs from organic results and merges organic
// thumbnails with image-search hits, deduplicated by image URL and capped
// at the image limit.
func (t *SearchAndScrape) collect(query string, organic []websearch.Result, images []websearch.ImageResult) ([]string, []Image) {
	urls := make([]string, 0, t.urlLimit)
	collected := make([]Image, 0, t.imageLimit)
	seen := make(map[string]struct{})

	addImage := func(img Image) {
		if img.ImageURL == "" || len(collected) >= t.imageLimit {
			return
		}
		if _, ok := seen[img.ImageURL]; ok {
			return
		}
		seen[img.ImageURL] = struct{}{}
		collected = append(collected, img)
	}

	for _, r := range organic {
		if r.URL == "" {
			continue
		}
		if len(urls) < t.urlLimit {
			urls = append(urls, r.URL)
		}
		addImage(Image{
			ImageURL:    r.ThumbnailURL,
			AltText:     r.Title,
			Description: r.Snippet,
			SourceURL:   r.URL,
		})
	}

	for _, img := range images {
		addImage(Image{
			ImageURL:    img.ImageURL,
			AltText:     img.Title,
			Description: fmt.Sprintf("Image result for %q", query),
			SourceURL:   img.SourceURL,
		})
	}

	return urls, collected
}
