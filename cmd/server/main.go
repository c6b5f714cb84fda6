package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/tailor-backend/internal/cache"
	"github.com/connexus-ai/tailor-backend/internal/config"
	"github.com/connexus-ai/tailor-backend/internal/gcpclient"
	"github.com/connexus-ai/tailor-backend/internal/handler"
	"github.com/connexus-ai/tailor-backend/internal/middleware"
	"github.com/connexus-ai/tailor-backend/internal/repository"
	"github.com/connexus-ai/tailor-backend/internal/service"
	"github.com/connexus-ai/tailor-backend/internal/websearch"
	"github.com/connexus-ai/tailor-backend/migrations"
)

const Version = "0.1.0"

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		return err
	}

	// Repositories
	projectRepo := repository.NewProjectRepo(pool)
	documentRepo := repository.NewDocumentRepo(pool)
	chunkRepo := repository.NewChunkRepo(pool)
	vectorRepo := repository.NewVectorRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)

	// Blob store for uploaded bytes
	store, err := gcpclient.NewStorageAdapter(ctx, cfg.GCSBucketName)
	if err != nil {
		return err
	}
	defer store.Close()

	// Embedding backend
	var embeddingClient service.EmbeddingClient
	switch cfg.EmbeddingBackend {
	case "openai":
		embeddingClient = gcpclient.NewOpenAIClient(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.LLMModel, cfg.EmbeddingModel)
	default:
		vertexEmb, err := gcpclient.NewVertexEmbedding(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
		if err != nil {
			return err
		}
		embeddingClient = vertexEmb
	}
	embedder := service.NewEmbedderService(embeddingClient, vectorRepo, cfg.EmbeddingDimensions, cfg.EmbeddingBatchSize)

	// LLM backend for analysis, summaries, and the judge reranker
	var llm service.GenAIClient
	switch cfg.LLMBackend {
	case "openai":
		llm = gcpclient.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.EmbeddingModel)
	case "off":
		llm = nil
	default:
		genai, err := gcpclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.GCPRegion, cfg.LLMModel)
		if err != nil {
			return err
		}
		defer genai.Close()
		llm = genai
	}

	// Cross-encoder reranker
	var reranker service.CrossEncoder
	switch cfg.RerankerProvider {
	case "dedicated":
		reranker = gcpclient.NewRerankClient(cfg.RerankAPIKey, cfg.RerankBaseURL, cfg.RerankModel)
	case "llm":
		if llm != nil {
			reranker = service.NewLLMJudge(llm)
		}
	}

	// Query embedding cache
	var embCache cache.EmbeddingCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisEmbeddingCache(cfg.RedisURL, cache.DefaultEmbeddingTTL)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		embCache = redisCache
	} else {
		memCache := cache.NewMemoryEmbeddingCache(cache.DefaultEmbeddingTTL)
		defer memCache.Stop()
		embCache = memCache
	}
	queryEmbedder := cache.NewCachedQueryEmbedder(embedder, embCache)

	// Text extraction
	var docai service.DocumentAIClient
	if cfg.DocAIProcessorID != "" {
		docaiAdapter, err := gcpclient.NewDocumentAIAdapter(ctx, cfg.GCPProject, cfg.DocAILocation, cfg.DocAIProcessorID, cfg.GCSBucketName)
		if err != nil {
			return err
		}
		defer docaiAdapter.Close()
		docai = docaiAdapter
	}
	extractor := service.NewExtractorService(docai, store)

	// Pipeline components
	chunker := service.NewChunkerService(cfg.ChunkTargetTokens, cfg.ChunkMaxTokens, 0.10)
	counter, err := service.NewTokenCounter()
	if err != nil {
		return err
	}

	pipeline := service.NewPipelineService(documentRepo, chunkRepo, extractor, chunker, embedder)
	documents := service.NewDocumentService(projectRepo, documentRepo, chunkRepo, vectorRepo, store)

	scorer := service.NewScorerService(queryEmbedder, vectorRepo, chunkRepo, reranker)
	analyzer := service.NewAnalyzerService(llm)
	gaps := service.NewGapDetectorService()
	window := service.NewWindowService()
	compressor := service.NewCompressorService(llm, counter)
	synthesizer := service.NewSynthesizerService()
	formatter := service.NewFormatterService()
	quality := service.NewQualityScorerService()

	var web service.WebSearchClient
	searcher := websearch.NewSearcher(
		websearch.NewTavilyProvider(cfg.TavilyAPIKey),
		websearch.NewBraveProvider(cfg.BraveAPIKey),
	)
	if searcher.Available() {
		web = websearch.NewServiceAdapter(searcher)
	}

	tailor := service.NewTailorService(
		projectRepo, documentRepo, sessionRepo,
		analyzer, scorer, gaps, window, compressor, synthesizer, formatter, quality,
		web, cfg.FanoutLimit, cfg.WebSearchMaxQueries,
	)

	// Auth
	verifier, err := gcpclient.NewFirebaseVerifier(ctx, cfg.FirebaseProject)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(verifier)

	// Metrics
	registry := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(registry)

	router := newRouter(cfg, authService, metrics, registry, handlerDeps{
		projects:  projectRepo,
		documents: handler.DocumentDeps{Documents: documents, Pipeline: pipeline},
		search:    handler.SearchDeps{Projects: projectRepo, Scorer: scorer},
		tailor:    handler.TailorDeps{Tailor: tailor, Metrics: metrics},
		sessions:  handler.SessionDeps{Sessions: sessionRepo, Projects: projectRepo},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSecs+5) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("tailor-backend starting", "version", Version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

type handlerDeps struct {
	projects  service.ProjectRepository
	documents handler.DocumentDeps
	search    handler.SearchDeps
	tailor    handler.TailorDeps
	sessions  handler.SessionDeps
}

func newRouter(cfg *config.Config, authService *service.AuthService, metrics *middleware.Metrics, registry *prometheus.Registry, deps handlerDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.Monitoring(metrics))

	r.Get("/healthz", handler.Health(Version))
	r.Method("GET", "/metrics", middleware.MetricsHandler(registry))

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 30,
		Window:      time.Minute,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.InternalOrBearerAuth(authService, cfg.InternalAuthSecret))
		r.Use(middleware.Timeout(time.Duration(cfg.RequestTimeoutSecs) * time.Second))

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", handler.CreateProject(deps.projects))
			r.Get("/", handler.ListProjects(deps.projects))
			r.Get("/{id}", handler.GetProject(deps.projects))
			r.Put("/{id}", handler.UpdateProject(deps.projects))
			r.Delete("/{id}", handler.DeleteProject(deps.projects))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(limiter))
				r.Post("/{id}/documents", handler.UploadDocument(deps.documents))
			})
			r.Get("/{id}/documents", handler.ListDocuments(deps.documents))
			r.Delete("/{id}/documents/{docId}", handler.DeleteDocument(deps.documents))
		})

		r.Post("/search/docs", handler.SearchDocs(deps.search))

		r.Route("/tailor", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(limiter))
				r.Post("/", handler.TailorContext(deps.tailor))
			})
			r.Post("/preview", handler.TailorPreview(deps.tailor))
			r.Get("/sessions", handler.ListSessions(deps.sessions))
			r.Get("/sessions/{id}", handler.GetSession(deps.sessions))
		})
	})

	return r
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
