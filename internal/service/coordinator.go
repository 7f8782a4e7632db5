package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/progress"
)

// CommentIndexer is the embedding-indexing sub-task.
type CommentIndexer interface {
	Index(ctx context.Context, jobID, namespace string, comments []models.CanonicalComment, reporter progress.Reporter) error
}

// InsightSource is the insight-extraction sub-task.
type InsightSource interface {
	Extract(ctx context.Context, jobID string, comments []models.CanonicalComment, reporter progress.Reporter) (models.AnalysisResult, error)
}

// Coordinator runs indexing and insight extraction concurrently over the same comments.
type Coordinator struct {
	indexer  CommentIndexer
	insights InsightSource
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator. A nil logger uses slog.Default().
func NewCoordinator(indexer CommentIndexer, insights InsightSource, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{indexer: indexer, insights: insights, logger: logger}
}

// Run starts both sub-tasks and waits for both to settle; neither cancels the other.
// When both fail, the indexing error is returned and the extraction error is logged.
func (c *Coordinator) Run(
	ctx context.Context, jobID, analysisID string, comments []models.CanonicalComment, reporter progress.Reporter,
) (models.AnalysisResult, error) {
	var (
		wg         sync.WaitGroup
		indexErr   error
		insightErr error
		result     models.AnalysisResult
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		defer recoverInto(&indexErr, "indexing")

		indexErr = c.indexer.Index(ctx, jobID, analysisID, comments, reporter)
	}()

	go func() {
		defer wg.Done()
		defer recoverInto(&insightErr, "insight extraction")

		result, insightErr = c.insights.Extract(ctx, jobID, comments, reporter)
	}()

	wg.Wait()

	switch {
	case indexErr != nil:
		if insightErr != nil {
			c.logger.ErrorContext(ctx, "insight extraction also failed", "job_id", jobID, "error", insightErr)
		}

		return models.AnalysisResult{}, indexErr
	case insightErr != nil:
		return models.AnalysisResult{}, insightErr
	}

	return result, nil
}

func recoverInto(errp *error, task string) {
	if r := recover(); r != nil {
		slog.Error("sub-task panicked", "task", task, "panic", r, "stack", string(debug.Stack()))
		*errp = fmt.Errorf("%s panicked: %v", task, r)
	}
}
