// Command analyze runs one comment analysis synchronously and prints the job status
// and, on success, the stored report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillai/quill/internal/apify"
	"github.com/quillai/quill/internal/config"
	"github.com/quillai/quill/internal/embeddings"
	"github.com/quillai/quill/internal/googleai"
	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/normalizer"
	"github.com/quillai/quill/internal/observability"
	"github.com/quillai/quill/internal/openai"
	"github.com/quillai/quill/internal/progress"
	"github.com/quillai/quill/internal/repository"
	"github.com/quillai/quill/internal/service"
	"github.com/quillai/quill/pkg/database"
)

type output struct {
	Status models.JobStatusView   `json:"status"`
	Report *models.AnalysisReport `json:"report,omitempty"`
}

func main() {
	url := flag.String("url", "", "YouTube video URL to analyze")
	timeout := flag.Duration("timeout", 15*time.Minute, "give up after this long")
	flag.Parse()

	if *url == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -url <youtube-url>")
		os.Exit(2)
	}

	os.Exit(run(*url, *timeout))
}

func run(url string, timeout time.Duration) int {
	cfg, err := config.Load(config.WithoutAPIKey())
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return 1
	}

	// Logs go to stderr so stdout stays valid JSON.
	logger := slog.New(observability.NewTraceContextHandler(slog.NewTextHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("Failed to run database migrations", "error", err)

		return 1
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return 1
	}
	defer db.Close()

	engine, err := newEngine(ctx, cfg, repository.NewCommentVectorsRepository(db),
		repository.NewAnalysisRepository(db), repository.NewJobsRepository(db))
	if err != nil {
		slog.Error("Failed to initialize", "error", err)

		return 1
	}

	handle, err := engine.Submit(ctx, url)
	if err != nil {
		slog.Error("Failed to start analysis", "error", err)

		return 1
	}

	if err := handle.Wait(ctx); err != nil {
		slog.Error("Analysis did not finish", "job_id", handle.JobID, "error", err)

		return 1
	}

	status, err := engine.GetStatus(ctx, handle.JobID)
	if err != nil {
		slog.Error("Failed to read job status", "job_id", handle.JobID, "error", err)

		return 1
	}

	out := output{Status: status}

	if status.AnalysisID != nil {
		report, err := engine.GetResult(ctx, *status.AnalysisID)
		if err != nil {
			slog.Error("Failed to load analysis", "analysis_id", *status.AnalysisID, "error", err)

			return 1
		}

		out.Report = &report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		slog.Error("Failed to write output", "error", err)

		return 1
	}

	if status.Status != models.JobStatusCompleted {
		return 1
	}

	return 0
}

func newEngine(
	ctx context.Context,
	cfg *config.Config,
	vectors service.VectorStore,
	analyses service.AnalysisStore,
	jobRecords service.JobRecordStore,
) (*service.Engine, error) {
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

	var embedder embeddings.Client

	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderGoogle:
		embedder = gemini
	case config.EmbeddingProviderLocal:
		embedder = embeddings.NewHashClient(0)
	default:
		embedder = openai.NewClient(cfg.OpenAIAPIKey, openai.WithModel(cfg.EmbeddingModel))
	}

	indexer := service.NewIndexer(service.IndexerParams{
		Embedder:      embedder,
		Vectors:       vectors,
		BatchSize:     cfg.EmbeddingBatchSize,
		BatchInterval: cfg.EmbeddingBatchInterval,
	})
	insights := service.NewInsightExtractor(service.InsightExtractorParams{
		Generator:   gemini,
		Model:       cfg.AnalysisModel,
		MaxComments: cfg.InsightMaxComments,
	})

	return service.NewEngine(service.EngineParams{
		Source:      source,
		Normalizer:  normalizer.New(time.Now),
		Coordinator: service.NewCoordinator(indexer, insights, nil),
		Tracker:     progress.NewTracker(progress.NewMemoryStore()),
		Analyses:    analyses,
		JobRecords:  jobRecords,
		MaxComments: cfg.MaxComments,
	}), nil
}
