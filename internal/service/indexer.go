package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/quillai/quill/internal/embeddings"
	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/observability"
	"github.com/quillai/quill/internal/progress"
	"github.com/quillai/quill/internal/quillerrors"
)

const (
	defaultEmbeddingBatchSize = 100
	defaultBatchInterval      = 100 * time.Millisecond
	maxMetadataTextRunes      = 1000
)

// VectorStore stores comment vectors grouped by namespace (one namespace per analysis).
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, vectors []models.CommentVector) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.VectorMatch, error)
}

// Indexer embeds canonical comments in batches and writes them to the vector store.
type Indexer struct {
	embedder      embeddings.Client
	vectors       VectorStore
	batchSize     int
	batchInterval time.Duration
	metrics       observability.EmbeddingMetrics
	logger        *slog.Logger
}

// IndexerParams configures Indexer. Zero BatchSize and BatchInterval use 100 and 100ms;
// a negative BatchInterval disables pacing.
type IndexerParams struct {
	Embedder      embeddings.Client
	Vectors       VectorStore
	BatchSize     int
	BatchInterval time.Duration
	Metrics       observability.EmbeddingMetrics
	Logger        *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(p IndexerParams) *Indexer {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}

	interval := p.BatchInterval
	if interval == 0 {
		interval = defaultBatchInterval
	}

	return &Indexer{
		embedder:      p.Embedder,
		vectors:       p.Vectors,
		batchSize:     batchSize,
		batchInterval: interval,
		metrics:       p.Metrics,
		logger:        logger,
	}
}

// Index embeds every comment's TextForEmbedding and upserts the vectors into namespace.
// Progress on the embeddings channel is reported after each batch as int(done/total*100).
func (x *Indexer) Index(
	ctx context.Context, jobID, namespace string, comments []models.CanonicalComment, reporter progress.Reporter,
) (err error) {
	ctx, span := observability.Tracer().Start(ctx, "indexer.Index", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("comments.count", len(comments)),
	))
	defer func() { observability.EndSpan(span, err) }()

	total := len(comments)
	if total == 0 {
		reporter.Report(ctx, jobID, models.ChannelEmbeddings, 100)

		return nil
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if x.batchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(x.batchInterval), 1)
	}

	for start := 0; start < total; start += x.batchSize {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for embedding batch: %w", err)
		}

		end := min(start+x.batchSize, total)

		if err := x.indexBatch(ctx, namespace, comments[start:end], start); err != nil {
			return err
		}

		percent := int(float64(end) / float64(total) * 100)
		reporter.Report(ctx, jobID, models.ChannelEmbeddings, percent)

		x.logger.DebugContext(ctx, "embedding batch indexed",
			"job_id", jobID, "batch_end", end, "total", total)
	}

	x.logger.InfoContext(ctx, "comments indexed", "job_id", jobID, "namespace", namespace, "count", total)

	return nil
}

func (x *Indexer) indexBatch(ctx context.Context, namespace string, batch []models.CanonicalComment, offset int) error {
	started := time.Now()
	status := "failed"

	defer func() {
		if x.metrics != nil {
			x.metrics.RecordBatch(ctx, status, len(batch), time.Since(started))
		}
	}()

	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].TextForEmbedding
	}

	vecs, err := x.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return quillerrors.NewProviderError(observability.ProviderEmbeddings, err)
	}

	if len(vecs) != len(batch) {
		return quillerrors.NewProviderError(observability.ProviderEmbeddings,
			fmt.Errorf("got %d vectors for %d texts", len(vecs), len(batch)))
	}

	out := make([]models.CommentVector, len(batch))
	for i := range batch {
		out[i] = models.CommentVector{
			ID:       vectorID(batch[i].ID, offset+i),
			Vector:   vecs[i],
			Metadata: vectorMetadata(&batch[i]),
		}
	}

	if err := x.vectors.Upsert(ctx, namespace, out); err != nil {
		return quillerrors.NewProviderError(observability.ProviderVectors, err)
	}

	status = "success"

	return nil
}

// vectorID keeps the comment id when present; comments without one get a positional id
// so they do not overwrite each other inside the namespace.
func vectorID(commentID string, position int) string {
	if commentID != "" {
		return commentID
	}

	return "comment-" + strconv.Itoa(position)
}

func vectorMetadata(c *models.CanonicalComment) models.VectorMetadata {
	return models.VectorMetadata{
		Author:      c.Author,
		CommentText: truncateRunes(c.Comment, maxMetadataTextRunes),
		Date:        c.Date,
		VoteCount:   c.VoteCount,
		ReplyCount:  c.ReplyCount,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n])
}
