package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/quillai/quill/internal/api/handlers"
	"github.com/quillai/quill/internal/api/middleware"
	"github.com/quillai/quill/internal/apify"
	"github.com/quillai/quill/internal/config"
	"github.com/quillai/quill/internal/embeddings"
	"github.com/quillai/quill/internal/googleai"
	"github.com/quillai/quill/internal/jobs"
	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/normalizer"
	"github.com/quillai/quill/internal/observability"
	"github.com/quillai/quill/internal/openai"
	"github.com/quillai/quill/internal/progress"
	"github.com/quillai/quill/internal/repository"
	"github.com/quillai/quill/internal/service"
	"github.com/quillai/quill/internal/workers"
	"github.com/quillai/quill/pkg/cache"
)

const queryCacheSize = 1000

func identity(s string) string { return s }

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	engine         *service.Engine
	jobStore       *progress.RedisStore
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// setupMetrics creates the meter provider and quill metrics when metrics are enabled.
// The returned handler is non-nil only for the prometheus exporter.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, *observability.Metrics, http.Handler, error) {
	mp, promHandler, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter(observability.MeterScope))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, metrics, promHandler, nil
}

// newEmbedder returns the embedding client selected by EMBEDDING_PROVIDER. The google
// provider shares the Gemini client used for insight extraction.
func newEmbedder(cfg *config.Config, gemini *googleai.Client) embeddings.Client {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderGoogle:
		return gemini
	case config.EmbeddingProviderLocal:
		slog.Warn("using local hash embeddings; chat retrieval quality will be poor")

		return embeddings.NewHashClient(0)
	default:
		return openai.NewClient(cfg.OpenAIAPIKey, openai.WithModel(cfg.EmbeddingModel))
	}
}

// newTrackerStore returns the job store selected by JOB_STORE. The Redis store is
// returned separately so it can be health-checked and closed.
func newTrackerStore(cfg *config.Config) (progress.Store, *progress.RedisStore, error) {
	if cfg.JobStore != config.JobStoreRedis {
		return progress.NewMemoryStore(), nil, nil
	}

	store, err := progress.NewRedisStoreFromURL(cfg.RedisURL, cfg.JobStoreTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis job store: %w", err)
	}

	return store, store, nil
}

// newRiverClient migrates River's tables and builds a client that runs the periodic sweeps.
func newRiverClient(
	ctx context.Context, cfg *config.Config, db *pgxpool.Pool, tracker *progress.Tracker, sweepMetrics observability.SweepMetrics,
) (*river.Client[pgx.Tx], error) {
	driver := riverpgxv5.New(db)

	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("create River migrator: %w", err)
	}

	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("migrate River: %w", err)
	}

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewStaleJobSweeper(
		repository.NewJobsRepository(db), tracker, cfg.StaleJobAfter, sweepMetrics,
	))
	river.AddWorker(riverWorkers, workers.NewOrphanVectorSweeper(
		repository.NewCommentVectorsRepository(db), cfg.OrphanVectorAfter, sweepMetrics,
	))

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			jobs.MaintenanceQueueName: {MaxWorkers: 1},
		},
		Workers:      riverWorkers,
		PeriodicJobs: jobs.PeriodicJobs(cfg.SweepInterval),
		ErrorHandler: &jobs.ErrorHandler{Logger: slog.Default()},
		Logger:       slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (_ *App, err error) {
	var (
		meterProvider *sdkmetric.MeterProvider
		metrics       *observability.Metrics
		promHandler   http.Handler
	)

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metrics, promHandler, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tracerProvider *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(cfg)
		if err != nil {
			if meterProvider != nil {
				if err2 := observability.ShutdownMeterProvider(ctx, meterProvider); err2 != nil {
					slog.Error("shutdown meter provider after tracer provider error", "error", err2)
				}
			}

			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	// Everything below may fail; release the providers when it does.
	defer func() {
		if err != nil {
			if err2 := shutdownObservability(ctx, tracerProvider, meterProvider); err2 != nil {
				slog.Error("shutdown observability after startup error", "error", err2)
			}
		}
	}()

	// Install TraceContextHandler unconditionally so request_id and job_id (and trace_id/span_id when tracing is on) appear in logs.
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(slog.Default().Handler())))

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	var (
		jobMetrics       observability.JobMetrics
		embeddingMetrics observability.EmbeddingMetrics
		cacheMetrics     observability.CacheMetrics
		sweepMetrics     observability.SweepMetrics
		apiMetrics       observability.APIMetrics
	)
	if metrics != nil {
		jobMetrics = metrics.Jobs
		embeddingMetrics = metrics.Embeddings
		cacheMetrics = metrics.Cache
		sweepMetrics = metrics.Sweeps
		apiMetrics = metrics.API
	}

	store, redisStore, err := newTrackerStore(cfg)
	if err != nil {
		return nil, err
	}

	if redisStore != nil {
		defer func() {
			if err != nil {
				_ = redisStore.Close()
			}
		}()
	}

	tracker := progress.NewTracker(store, progress.WithLogger(slog.Default()))

	source, err := apify.NewClient(apify.ClientOptions{
		Token:        cfg.ApifyToken,
		ActorID:      cfg.ApifyActorID,
		BaseURL:      cfg.ApifyBaseURL,
		PollInterval: cfg.ApifyPollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("create comment source: %w", err)
	}

	gemini, err := googleai.NewClient(ctx, cfg.GoogleAPIKey,
		googleai.WithModel(cfg.EmbeddingModel),
		googleai.WithGenerationModel(cfg.AnalysisModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	embedder := newEmbedder(cfg, gemini)
	vectors := repository.NewCommentVectorsRepository(db)

	indexer := service.NewIndexer(service.IndexerParams{
		Embedder:      embedder,
		Vectors:       vectors,
		BatchSize:     cfg.EmbeddingBatchSize,
		BatchInterval: cfg.EmbeddingBatchInterval,
		Metrics:       embeddingMetrics,
		Logger:        slog.Default(),
	})
	insights := service.NewInsightExtractor(service.InsightExtractorParams{
		Generator:   gemini,
		Model:       cfg.AnalysisModel,
		MaxComments: cfg.InsightMaxComments,
		Logger:      slog.Default(),
	})

	reportCache, err := cache.NewLoaderCache[string, models.AnalysisReport](cfg.ResultCacheSize, identity)
	if err != nil {
		return nil, fmt.Errorf("create report cache: %w", err)
	}

	engine := service.NewEngine(service.EngineParams{
		Source:       source,
		Normalizer:   normalizer.New(time.Now),
		Coordinator:  service.NewCoordinator(indexer, insights, slog.Default()),
		Tracker:      tracker,
		Analyses:     repository.NewAnalysisRepository(db),
		JobRecords:   repository.NewJobsRepository(db),
		ReportCache:  reportCache,
		CacheMetrics: cacheMetrics,
		JobMetrics:   jobMetrics,
		MaxComments:  cfg.MaxComments,
		NewID:        uuid.NewString,
		Logger:       slog.Default(),
	})

	queryCache, err := cache.NewLoaderCache[string, []float32](queryCacheSize, identity)
	if err != nil {
		return nil, fmt.Errorf("create chat query cache: %w", err)
	}

	chatParams := service.ChatServiceParams{
		Embedder:     embedder,
		Vectors:      vectors,
		Gemini:       gemini,
		GeminiModel:  cfg.ChatGeminiModel,
		QueryCache:   queryCache,
		CacheMetrics: cacheMetrics,
		Logger:       slog.Default(),
	}
	if cfg.OpenAIAPIKey != "" {
		chatParams.OpenAI = openai.NewClient(cfg.OpenAIAPIKey)
	} else {
		slog.Info("gpt-4o chat disabled (OPENAI_API_KEY not set)")
	}

	riverClient, err := newRiverClient(ctx, cfg, db, tracker, sweepMetrics)
	if err != nil {
		return nil, err
	}

	checks := map[string]handlers.Pinger{"database": db}
	if redisStore != nil {
		checks["job store"] = redisStore
	}

	server := newHTTPServer(cfg, routes{
		health:   handlers.NewHealthHandler(checks),
		analysis: handlers.NewAnalysisHandler(engine),
		chat:     handlers.NewChatHandler(service.NewChatService(chatParams)),
		metrics:  promHandler,
	}, apiMetrics, meterProvider, tracerProvider)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		engine:         engine,
		jobStore:       redisStore,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	}, nil
}

type routes struct {
	health   *handlers.HealthHandler
	analysis *handlers.AnalysisHandler
	chat     *handlers.ChatHandler
	metrics  http.Handler
}

// newHTTPServer builds the router (no auth on /health and /metrics, API key on /v1).
// Handler chain: RequestID -> otelhttp(Logging(router)) so access logs get trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	rt routes,
	apiMetrics observability.APIMetrics,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", rt.health.Check)

	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// CORS wraps Auth so OPTIONS preflight requests bypass authentication.
		r.Use(middleware.CORS(cfg.CORSOrigins))
		r.Use(middleware.Auth(cfg.APIKey))
		r.Use(middleware.MaxBody(cfg.MaxRequestBodyBytes, apiMetrics))

		r.Post("/analyze", rt.analysis.Analyze)
		r.Get("/jobs", rt.analysis.ListJobs)
		r.Get("/status/{job_id}", rt.analysis.Status)
		r.Get("/analysis/{analysis_id}", rt.analysis.Analysis)
		r.Post("/chat", rt.chat.Chat)
	})

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	// Logging runs inside otelhttp so r.Context() has the span when we log.
	inner := middleware.Logging(r)
	handler := otelhttp.NewHandler(inner, observability.ServiceName, otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server, waits for in-flight analyses, then stops River.
// Jobs still running when ctx expires are left PROCESSING for the stale job sweeper.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		if a.jobStore != nil {
			if closeErr := a.jobStore.Close(); closeErr != nil {
				slog.Error("close job store", "error", closeErr)
			}
		}

		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if engineErr := a.engine.Shutdown(ctx); engineErr != nil {
		slog.Warn("analyses still running at shutdown", "error", engineErr)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
