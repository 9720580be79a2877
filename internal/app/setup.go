package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/playwise/playwise/api"
	"github.com/playwise/playwise/db"
	"github.com/playwise/playwise/internal/config"
	"github.com/playwise/playwise/internal/crawler"
	"github.com/playwise/playwise/internal/database"
	"github.com/playwise/playwise/internal/ingest"
	"github.com/playwise/playwise/internal/knowledge"
	"github.com/playwise/playwise/internal/log"
	"github.com/playwise/playwise/internal/orchestrator"
	"github.com/playwise/playwise/internal/retrieval"
	"github.com/playwise/playwise/internal/tools"
	"github.com/playwise/playwise/internal/websearch"
)

// modelCallsPerSecond throttles outbound model calls; free-tier quotas on
// the backing API are strict.
const modelCallsPerSecond = 2

// Setup assembles the chat service. Call App.Close to release resources.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	a.Genkit = provideGenkit(ctx)
	a.Embedder = googlegenai.GoogleAIEmbedder(a.Genkit, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Knowledge = knowledge.NewStore(pool, logger)
	a.Retriever = retrieval.New(a.Embedder, a.Knowledge,
		cfg.SimilarityThreshold, cfg.RetrievalTopK, logger)

	searcher, err := websearch.New(websearch.Config{
		APIKey: cfg.SerperAPIKey,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating web search client: %w", err)
	}

	capability, err := tools.New(tools.Config{
		Search:     searcher,
		Ingest:     ingest.NewClient(cfg.IngestURL, logger),
		URLLimit:   cfg.SearchResultLimit,
		ImageLimit: cfg.SearchImageLimit,
		MaxPages:   cfg.ScrapeMaxPages,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating search capability: %w", err)
	}
	registered := capability.Register(a.Genkit)

	model, err := orchestrator.NewGenkitModel(a.Genkit, cfg.ModelName)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Config{
		Model:       model,
		Retriever:   a.Retriever,
		Invoker:     capability,
		Tool:        registered,
		Logger:      logger,
		RateLimiter: rate.NewLimiter(rate.Limit(modelCallsPerSecond), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	a.Server = api.NewServer(a.Orchestrator, pool, logger)
	return a, nil
}

// SetupIngest assembles the ingestion service. Call IngestApp.Close to
// release resources.
func SetupIngest(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *IngestApp, retErr error) {
	a := &IngestApp{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g := provideGenkit(ctx)
	embedClient := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedClient == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	embedder := crawler.NewRetryEmbedder(embedClient,
		cfg.EmbedRetries, time.Duration(cfg.EmbedRetryDelaySec)*time.Second, logger)

	c, err := crawler.New(crawler.Config{
		Store:        knowledge.NewStore(pool, logger),
		Embedder:     embedder,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Cooldown:     time.Duration(cfg.ScrapeCooldownHours) * time.Hour,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating crawler: %w", err)
	}

	a.Service = ingest.NewService(c, cfg.ScrapeMaxPages, logger)
	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database migrations applied")

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin.
func provideGenkit(ctx context.Context) *genkit.Genkit {
	return genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
}
