package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// JobMetrics records analysis job outcomes and provider failures.
type JobMetrics interface {
	RecordJobOutcome(ctx context.Context, status string, duration time.Duration)
	RecordProviderError(ctx context.Context, provider string)
}

type jobMetrics struct {
	outcomes       metric.Int64Counter
	duration       metric.Float64Histogram
	providerErrors metric.Int64Counter
}

// NewJobMetrics creates JobMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewJobMetrics(meter metric.Meter) (JobMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	outcomes, err := meter.Int64Counter(
		MetricNameJobs,
		metric.WithDescription("Analysis jobs that reached a terminal state, by status (completed, failed)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create jobs counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameJobDuration,
		metric.WithDescription("Time from submit to terminal state (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create job duration histogram: %w", err)
	}

	providerErrors, err := meter.Int64Counter(
		MetricNameProviderErrors,
		metric.WithDescription("Failed calls to external providers. Label provider: comments, embeddings, vectors, llm."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider errors counter: %w", err)
	}

	return &jobMetrics{outcomes: outcomes, duration: duration, providerErrors: providerErrors}, nil
}

func (m *jobMetrics) RecordJobOutcome(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrStatus, NormalizeLabel(status, AllowedJobStatuses)))
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *jobMetrics) RecordProviderError(ctx context.Context, provider string) {
	m.providerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProvider, NormalizeLabel(provider, AllowedProviders)),
	))
}
