package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records per-batch indexing metrics.
// Methods accept ctx for future exemplar support.
type EmbeddingMetrics interface {
	RecordBatch(ctx context.Context, status string, size int, duration time.Duration)
}

type embeddingMetrics struct {
	batches  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	batches, err := meter.Int64Counter(
		MetricNameEmbeddingBatches,
		metric.WithDescription("Embedding batches processed (embed + upsert), by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding batches counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingBatchDur,
		metric.WithDescription("Embedding batch duration including vector upsert (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding batch duration histogram: %w", err)
	}

	return &embeddingMetrics{batches: batches, duration: duration}, nil
}

func (e *embeddingMetrics) RecordBatch(ctx context.Context, status string, size int, duration time.Duration) {
	status = NormalizeLabel(status, AllowedBatchStatuses)
	e.batches.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, status)))
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int("batch_size", size),
	))
}
