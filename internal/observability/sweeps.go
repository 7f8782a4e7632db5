package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// SweepMetrics records the work done by the periodic reconciliation jobs.
type SweepMetrics interface {
	RecordStaleJobsSwept(ctx context.Context, count int)
	RecordOrphanVectorsDeleted(ctx context.Context, count int64)
}

type sweepMetrics struct {
	staleJobs     metric.Int64Counter
	orphanVectors metric.Int64Counter
}

// NewSweepMetrics creates SweepMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewSweepMetrics(meter metric.Meter) (SweepMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	staleJobs, err := meter.Int64Counter(
		MetricNameStaleJobsSwept,
		metric.WithDescription("Jobs stuck in PROCESSING that the sweeper marked FAILED"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stale jobs counter: %w", err)
	}

	orphanVectors, err := meter.Int64Counter(
		MetricNameOrphanVectorsDeleted,
		metric.WithDescription("Comment vectors deleted because no analysis references their namespace"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orphan vectors counter: %w", err)
	}

	return &sweepMetrics{staleJobs: staleJobs, orphanVectors: orphanVectors}, nil
}

func (s *sweepMetrics) RecordStaleJobsSwept(ctx context.Context, count int) {
	s.staleJobs.Add(ctx, int64(count))
}

func (s *sweepMetrics) RecordOrphanVectorsDeleted(ctx context.Context, count int64) {
	s.orphanVectors.Add(ctx, count)
}
