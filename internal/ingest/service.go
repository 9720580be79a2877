package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/playwise/playwise/internal/log"
)

// DefaultIngestAddr is the default listen address for the ingestion service.
const DefaultIngestAddr = ":8000"

// crawlTimeout bounds a single background crawl.
const crawlTimeout = 30 * time.Minute

// Crawler walks one site and stores its content. *crawler.Crawler
// satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, maxPages int) error
}

// Service is the ingestion HTTP service. POST /scrape launches background
// crawls and returns immediately; callers never wait on crawl completion.
type Service struct {
	crawler  Crawler
	maxPages int
	logger   log.Logger

	wg sync.WaitGroup
}

// NewService creates the ingestion service. maxPages is the default page
// ceiling applied when a scrape request leaves it unset.
func NewService(c Crawler, maxPages int, logger log.Logger) *Service {
	if maxPages <= 0 {
		maxPages = 5
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{crawler: c, maxPages: maxPages, logger: logger}
}

// Handler returns the HTTP handler for the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scrape", s.scrape)
	mux.HandleFunc("GET /health", s.health)
	return mux
}

// Run starts the service and blocks until the context is cancelled. In-flight
// crawls are given until crawlTimeout to finish after shutdown begins.
func (s *Service) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultIngestAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting ingestion service", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down ingestion service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.wg.Wait()
		return err
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// scrape launches one background crawl per requested URL.
func (s *Service) scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "request body must be valid JSON", http.StatusBadRequest)
		return
	}
	if len(req.URLs) == 0 {
		http.Error(w, "urls must not be empty", http.StatusBadRequest)
		return
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = s.maxPages
	}

	for _, u := range req.URLs {
		s.wg.Add(1)
		go func(startURL string) {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), crawlTimeout)
			defer cancel()
			if err := s.crawler.Crawl(ctx, startURL, maxPages); err != nil {
				s.logger.Error("crawl failed", "start_url", startURL, "error", err)
			}
		}(u)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"message":   "Crawl triggered",
		"urls":      req.URLs,
		"max_pages": maxPages,
	}); err != nil {
		s.logger.Error("failed to encode scrape response", "error", err)
	}
}

func (s *Service) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
