// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the chat service: Genkit, the
// database pool, the knowledge store, the retrieval and orchestration
// pipeline, and the HTTP server. IngestApp is the equivalent container
// for the ingestion service.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playwise/playwise/api"
	"github.com/playwise/playwise/internal/config"
	"github.com/playwise/playwise/internal/ingest"
	"github.com/playwise/playwise/internal/knowledge"
	"github.com/playwise/playwise/internal/log"
	"github.com/playwise/playwise/internal/orchestrator"
	"github.com/playwise/playwise/internal/retrieval"
)

// App is the chat service container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge    *knowledge.Store
	Retriever    *retrieval.Retriever
	Orchestrator *orchestrator.Orchestrator
	Server       *api.Server
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
}

// IngestApp is the ingestion service container.
type IngestApp struct {
	Config *config.Config
	Logger log.Logger

	DBPool  *pgxpool.Pool
	Service *ingest.Service
}

// Close releases all resources held by the IngestApp.
func (a *IngestApp) Close() {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
}
