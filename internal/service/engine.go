package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/normalizer"
	"github.com/quillai/quill/internal/observability"
	"github.com/quillai/quill/internal/progress"
	"github.com/quillai/quill/internal/quillerrors"
	"github.com/quillai/quill/pkg/cache"
)

const (
	defaultMaxComments = 500
	platformYouTube    = "youtube"

	// estimatedJobSeconds is the rough end-to-end duration used for the remaining-time estimate.
	estimatedJobSeconds = 120

	msgNoData        = "no data retrieved"
	msgNothingToShow = "nothing left after filtering"
)

// ErrEngineClosed is returned by Submit once Shutdown has been called.
var ErrEngineClosed = errors.New("engine is shutting down")

// CommentSource fetches raw comments for a video.
type CommentSource interface {
	Fetch(ctx context.Context, videoURL string, maxComments int) ([]models.RawComment, error)
}

// AnalysisStore persists and reads finished analyses.
type AnalysisStore interface {
	Save(ctx context.Context, summary models.AnalysisSummary, result models.AnalysisResult) error
	GetSummary(ctx context.Context, analysisID string) (models.AnalysisSummary, error)
	GetResult(ctx context.Context, analysisID string) (models.AnalysisResult, error)
}

// JobRecordStore is the durable analysis_jobs record.
type JobRecordStore interface {
	Create(ctx context.Context, jobID, url string) (models.JobRecord, error)
	Get(ctx context.Context, jobID string) (models.JobRecord, error)
	MarkCompleted(ctx context.Context, jobID, analysisID string) error
	MarkFailed(ctx context.Context, jobID, message string) error
	List(ctx context.Context, filters *models.ListJobsFilters) ([]models.JobRecord, error)
}

// Handle refers to a submitted job.
type Handle struct {
	JobID string
	done  chan struct{}
}

// Done is closed once the job reached a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the job is terminal or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for job %s: %w", h.JobID, ctx.Err())
	}
}

// Engine drives analysis jobs from submit to a terminal state.
type Engine struct {
	source       CommentSource
	normalizer   *normalizer.Normalizer
	coordinator  *Coordinator
	tracker      *progress.Tracker
	analyses     AnalysisStore
	jobRecords   JobRecordStore
	reports      *cache.LoaderCache[string, models.AnalysisReport]
	cacheMetrics observability.CacheMetrics
	jobMetrics   observability.JobMetrics
	maxComments  int
	newID        func() string
	now          func() time.Time
	logger       *slog.Logger

	// mu guards closed so that inflight.Add never races inflight.Wait.
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// EngineParams configures Engine. ReportCache, metrics, NewID and Now are optional.
type EngineParams struct {
	Source       CommentSource
	Normalizer   *normalizer.Normalizer
	Coordinator  *Coordinator
	Tracker      *progress.Tracker
	Analyses     AnalysisStore
	JobRecords   JobRecordStore
	ReportCache  *cache.LoaderCache[string, models.AnalysisReport]
	CacheMetrics observability.CacheMetrics
	JobMetrics   observability.JobMetrics
	MaxComments  int
	NewID        func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(p EngineParams) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxComments := p.MaxComments
	if maxComments <= 0 {
		maxComments = defaultMaxComments
	}

	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}

	norm := p.Normalizer
	if norm == nil {
		norm = normalizer.New(nil)
	}

	return &Engine{
		source:       p.Source,
		normalizer:   norm,
		coordinator:  p.Coordinator,
		tracker:      p.Tracker,
		analyses:     p.Analyses,
		jobRecords:   p.JobRecords,
		reports:      p.ReportCache,
		cacheMetrics: p.CacheMetrics,
		jobMetrics:   p.JobMetrics,
		maxComments:  maxComments,
		newID:        newID,
		now:          now,
		logger:       logger,
	}
}

// Submit validates url, records a PROCESSING job and starts it in the background.
// The job keeps running after ctx (usually the HTTP request) ends.
func (e *Engine) Submit(ctx context.Context, url string) (*Handle, error) {
	url = strings.TrimSpace(url)
	if !models.IsYouTubeVideoURL(url) {
		return nil, quillerrors.NewValidationError("url", models.InvalidYouTubeURLMessage)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()

		return nil, ErrEngineClosed
	}
	e.inflight.Add(1)
	e.mu.Unlock()

	started := false
	defer func() {
		if !started {
			e.inflight.Done()
		}
	}()

	jobID := e.newID()

	if _, err := e.jobRecords.Create(ctx, jobID, url); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	if _, err := e.tracker.Create(ctx, jobID, url); err != nil {
		if markErr := e.jobRecords.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			e.logger.ErrorContext(ctx, "failed to record job failure", "job_id", jobID, "error", markErr)
		}

		return nil, fmt.Errorf("track job: %w", err)
	}

	handle := &Handle{JobID: jobID, done: make(chan struct{})}
	runCtx := observability.WithJobID(context.WithoutCancel(ctx), jobID)

	started = true

	go e.run(runCtx, handle, url, e.now())

	return handle, nil
}

// Shutdown rejects further submissions and waits for in-flight jobs until ctx is done.
// Jobs are not resumed after a restart; the stale-job sweeper fails whatever was interrupted.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})

	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for in-flight jobs: %w", ctx.Err())
	}
}

func (e *Engine) run(ctx context.Context, h *Handle, url string, started time.Time) {
	defer e.inflight.Done()
	defer close(h.done)

	ctx, span := observability.Tracer().Start(ctx, "engine.run",
		trace.WithNewRoot(),
		trace.WithLinks(trace.LinkFromContext(ctx)),
		trace.WithAttributes(attribute.String("job.id", h.JobID)))

	analysisID, err := e.execute(ctx, h.JobID, url)
	e.finish(ctx, h.JobID, analysisID, err, started)
	observability.EndSpan(span, err)
}

// execute is the driving sequence. Every fault, panics included, comes back as an error
// so that finish issues the single terminal call.
func (e *Engine) execute(ctx context.Context, jobID, url string) (analysisID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "analysis panicked", "job_id", jobID, "panic", r, "stack", string(debug.Stack()))
			analysisID, err = "", fmt.Errorf("analysis panicked: %v", r)
		}
	}()

	raw, err := e.source.Fetch(ctx, url, e.maxComments)
	if err != nil {
		return "", quillerrors.NewProviderError(observability.ProviderComments, err)
	}

	if len(raw) == 0 {
		return "", quillerrors.NewEmptyResultError(msgNoData)
	}

	comments := e.normalizer.Normalize(raw)
	if len(comments) == 0 {
		return "", quillerrors.NewEmptyResultError(msgNothingToShow)
	}

	e.logger.InfoContext(ctx, "comments ready", "job_id", jobID, "raw", len(raw), "kept", len(comments))

	analysisID = e.newID()

	result, err := e.coordinator.Run(ctx, jobID, analysisID, comments, e.tracker)
	if err != nil {
		return "", err
	}

	summary := models.AnalysisSummary{
		ID:             analysisID,
		URL:            url,
		Platform:       platformYouTube,
		SentimentScore: result.SentimentScore,
		LeadPercentage: result.LeadPercentage,
		TotalComments:  result.TotalComments,
		CreatedAt:      e.now(),
	}

	if err := e.analyses.Save(ctx, summary, result); err != nil {
		return "", quillerrors.NewPersistenceError("save analysis", err)
	}

	if err := e.jobRecords.MarkCompleted(ctx, jobID, analysisID); err != nil {
		return "", quillerrors.NewPersistenceError("complete job record", err)
	}

	return analysisID, nil
}

func (e *Engine) finish(ctx context.Context, jobID, analysisID string, runErr error, started time.Time) {
	elapsed := e.now().Sub(started)

	if runErr == nil {
		if err := e.tracker.MarkComplete(ctx, jobID, analysisID); err != nil {
			e.logger.ErrorContext(ctx, "failed to mark job complete", "job_id", jobID, "error", err)
		}

		if e.jobMetrics != nil {
			e.jobMetrics.RecordJobOutcome(ctx, "completed", elapsed)
		}

		return
	}

	message := runErr.Error()

	if err := e.tracker.MarkFailed(ctx, jobID, message); err != nil {
		e.logger.ErrorContext(ctx, "failed to mark job failed", "job_id", jobID, "error", err)
	}

	if err := e.jobRecords.MarkFailed(ctx, jobID, message); err != nil {
		e.logger.ErrorContext(ctx, "failed to record job failure", "job_id", jobID, "error", err)
	}

	if e.jobMetrics != nil {
		var pe *quillerrors.ProviderError
		if errors.As(runErr, &pe) {
			e.jobMetrics.RecordProviderError(ctx, pe.Provider)
		}

		e.jobMetrics.RecordJobOutcome(ctx, "failed", elapsed)
	}
}

// GetStatus returns the live view of a job, falling back to the durable record for jobs
// this process is not tracking (e.g. after a restart).
func (e *Engine) GetStatus(ctx context.Context, jobID string) (models.JobStatusView, error) {
	job, err := e.tracker.Get(ctx, jobID)
	if err == nil {
		return statusView(job.Status, job.EmbeddingsProgress, job.AnalysisProgress, job.Error, job.AnalysisID), nil
	}

	if !errors.Is(err, quillerrors.ErrNotFound) {
		return models.JobStatusView{}, fmt.Errorf("get job status: %w", err)
	}

	rec, err := e.jobRecords.Get(ctx, jobID)
	if err != nil {
		return models.JobStatusView{}, fmt.Errorf("get job record: %w", err)
	}

	return statusView(rec.Status, rec.EmbeddingsProgress, rec.AnalysisProgress, rec.Error, rec.AnalysisID), nil
}

// ListJobs returns recent durable job records, newest first.
func (e *Engine) ListJobs(ctx context.Context, filters *models.ListJobsFilters) ([]models.JobRecord, error) {
	jobs, err := e.jobRecords.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return jobs, nil
}

// GetResult returns the report for a finished analysis. Reports never change once written,
// so they are cached by analysis id.
func (e *Engine) GetResult(ctx context.Context, analysisID string) (models.AnalysisReport, error) {
	if e.reports == nil {
		return e.loadReport(ctx, analysisID)
	}

	report, hit, err := e.reports.Get(ctx, analysisID, e.loadReport)

	if e.cacheMetrics != nil {
		if hit {
			e.cacheMetrics.RecordHit(ctx, observability.CacheAnalysisReport)
		} else {
			e.cacheMetrics.RecordMiss(ctx, observability.CacheAnalysisReport)
		}
	}

	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("get analysis: %w", err)
	}

	return report, nil
}

func (e *Engine) loadReport(ctx context.Context, analysisID string) (models.AnalysisReport, error) {
	summary, err := e.analyses.GetSummary(ctx, analysisID)
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("load analysis summary: %w", err)
	}

	result, err := e.analyses.GetResult(ctx, analysisID)
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("load analysis details: %w", err)
	}

	return models.NewAnalysisReport(summary, result), nil
}

func statusView(
	status models.JobStatus, embeddings, analysis int, errMsg, analysisID *string,
) models.JobStatusView {
	return models.JobStatusView{
		Status:                 status,
		EmbeddingsProgress:     embeddings,
		AnalysisProgress:       analysis,
		EstimatedTimeRemaining: EstimateRemainingSeconds(embeddings, analysis),
		Error:                  errMsg,
		AnalysisID:             analysisID,
	}
}

// EstimateRemainingSeconds assumes a two-minute job and scales by the mean of both counters.
// It is nil unless the mean is strictly between 0 and 100.
func EstimateRemainingSeconds(embeddingsProgress, analysisProgress int) *int {
	mean := float64(embeddingsProgress+analysisProgress) / 2
	if mean <= 0 || mean >= 100 {
		return nil
	}

	seconds := int(estimatedJobSeconds * (100 - mean) / 100)

	return &seconds
}
