package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"talentrag/apps/backend/features/document"
	"talentrag/apps/backend/features/facts"
	"talentrag/apps/backend/features/job"
	"talentrag/apps/backend/features/mcp"
	"talentrag/apps/backend/features/resume"
	"talentrag/apps/backend/features/stats"
	"talentrag/apps/backend/internal/adapter/embedding"
	"talentrag/apps/backend/internal/adapter/reranker"
	"talentrag/apps/backend/internal/config"
	"talentrag/apps/backend/internal/extract"
	"talentrag/apps/backend/internal/ingest"
	"talentrag/apps/backend/internal/middleware"
	"talentrag/apps/backend/internal/retrieval"
	"talentrag/apps/backend/internal/settings"
	"talentrag/apps/backend/internal/text"
	"talentrag/apps/backend/internal/vector"
	"talentrag/apps/backend/internal/worker"
)

// TaskPublisher is satisfied by *nsq.Producer.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Options overrides parts of the wiring. Tests use it to swap the embedder.
type Options struct {
	Embedder vector.Embedder
}

type App struct {
	Handler        http.Handler
	Collections    *vector.Manager
	Pipeline       *ingest.Pipeline
	IngestConsumer *worker.IngestConsumer

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	index vector.Index,
	taskPub TaskPublisher,
	logger *slog.Logger,
	opts *Options,
) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	seedGeminiKey(context.Background(), settingsService, cfg.GeminiAPIKey, logger)
	settingsHandler := settings.NewHandler(settingsService)

	// Embedding & collections
	embedder := opts.Embedder
	if embedder == nil {
		var err error
		embedder, err = embedding.New(embedding.Config{
			Provider:     cfg.EmbedProvider,
			Model:        cfg.EmbedModel,
			BaseURL:      cfg.EmbedBaseURL,
			GeminiAPIKey: cfg.GeminiAPIKey,
			OpenAIAPIKey: cfg.OpenAIAPIKey,
		}, settingsService)
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
	}

	var managerOpts []vector.Option
	if cfg.DefaultCollection != "" {
		managerOpts = append(managerOpts, vector.WithDefaultCollection(cfg.DefaultCollection))
	}
	if cfg.FactsPrefix != "" {
		managerOpts = append(managerOpts, vector.WithFactsPrefix(cfg.FactsPrefix))
	}
	if cfg.MaxCollections > 0 {
		managerOpts = append(managerOpts, vector.WithCapacity(cfg.MaxCollections))
	}
	collections := vector.NewManager(index, embedder, managerOpts...)

	// Ingestion
	dispatcher := text.NewDispatcher(cfg.ChunkSize, cfg.ChunkOverlap)
	pipeline := ingest.NewPipeline(collections, dispatcher, extract.NewRegistry(), cfg.DedupLookupLimit)

	// Retrieval
	queryLogger := newQueryLogger(cfg.QueryLogPath, logger)
	planner := retrieval.NewPlanner(collections, queryLogger)
	planner.SetScanLimit(cfg.ScanLimit)
	if rr := reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey); rr.Enabled() {
		if cfg.RerankBaseURL != "" {
			rr.SetBaseURL(cfg.RerankBaseURL)
		}
		planner.SetReranker(rr)
		logger.Info("reranking enabled", "provider", cfg.RerankProvider)
	}

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Document
	documentService := document.NewService(pipeline, planner, collections, taskPub, settingsService)
	documentHandler := document.NewHandler(documentService)

	// Feature: Facts
	factsService := facts.NewService(collections, planner, settingsService)
	factsHandler := facts.NewHandler(factsService)

	// Feature: Resume
	uploadRepo := resume.NewPostgresRepo(db)
	resumeService := resume.NewService(uploadRepo, collections, planner, resume.Options{
		UploadDir:    cfg.UploadDir,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	resumeHandler := resume.NewHandler(resumeService, cfg.MaxUploadSizeMB)

	// Feature: Stats
	statsHandler := stats.NewHandler(uploadRepo, jobRepo, collections)

	// Feature: MCP tools
	mcpHandler := mcp.NewHandler(resumeService, documentService, factsService)

	// Routes
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(middleware.CORS(h)))
	}

	route("POST /documents", documentHandler.Ingest)
	route("POST /documents/async", documentHandler.IngestAsync)
	route("POST /query", documentHandler.Query)
	route("POST /reset", documentHandler.Reset)

	route("POST /facts/collections/{chat_id}", factsHandler.Create)
	route("POST /facts/collections/{chat_id}/documents", factsHandler.AddDocument)
	route("POST /facts/collections/{chat_id}/search", factsHandler.Search)
	route("POST /facts/collections/{chat_id}/update", factsHandler.Update)
	route("DELETE /facts/collections/{chat_id}", factsHandler.Delete)

	route("POST /resumes/upload", resumeHandler.Upload)
	route("GET /resumes/search", resumeHandler.Search)
	route("GET /resumes/find-by-name", resumeHandler.FindByName)
	route("POST /resumes/reset", resumeHandler.Reset)
	route("GET /resumes/uploads", resumeHandler.List)

	route("GET /settings", settingsHandler.GetSettings)
	route("PUT /settings", settingsHandler.UpdateSettings)

	route("GET /jobs/failed", jobHandler.List)
	route("POST /jobs/{id}/retry", jobHandler.Retry)
	route("DELETE /jobs/{id}", jobHandler.Delete)

	route("GET /stats", statsHandler.GetStats)

	mux.Handle("POST /mcp", middleware.CorrelationID(mcpHandler))
	route("GET /mcp/sse", mcpHandler.HandleSSE)
	route("POST /mcp/messages", mcpHandler.HandleMessage)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Worker (Ingest Consumer)
	ingestConsumer := worker.NewIngestConsumer(pipeline, jobRepo, worker.DefaultMaxAttempts)

	port := cfg.ServerPort
	if port == 0 {
		port = 8081
	}

	return &App{
		Handler:        mux,
		Collections:    collections,
		Pipeline:       pipeline,
		IngestConsumer: ingestConsumer,
		port:           port,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// seedGeminiKey copies the key from the environment into settings when
// settings do not have one yet.
func seedGeminiKey(ctx context.Context, svc *settings.Service, key string, logger *slog.Logger) {
	if key == "" {
		return
	}
	set, err := svc.Get(ctx)
	if err != nil {
		logger.Warn("failed to fetch settings for seeding", "error", err)
		return
	}
	if set.GeminiAPIKey != "" {
		return
	}
	set.GeminiAPIKey = key
	if err := svc.Update(ctx, set); err != nil {
		logger.Warn("failed to seed gemini api key", "error", err)
		return
	}
	logger.Info("seeded gemini api key from environment")
}

func newQueryLogger(path string, logger *slog.Logger) *retrieval.QueryLogger {
	if path == "" {
		return retrieval.NewQueryLogger(os.Stdout)
	}
	ql, err := retrieval.NewFileQueryLogger(path)
	if err != nil {
		logger.Warn("failed to create query logger, falling back to stdout", "error", err, "path", path)
		return retrieval.NewQueryLogger(os.Stdout)
	}
	return ql
}
