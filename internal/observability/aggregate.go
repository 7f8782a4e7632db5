package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all quill metric collectors. When metrics are disabled, NewMetrics returns nil
// and callers pass nil interfaces down; every consumer handles nil.
type Metrics struct {
	Jobs       JobMetrics
	Embeddings EmbeddingMetrics
	Cache      CacheMetrics
	Sweeps     SweepMetrics
	API        APIMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobs, err := NewJobMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("job metrics: %w", err)
	}

	embeddings, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	sweeps, err := NewSweepMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("sweep metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	return &Metrics{
		Jobs:       jobs,
		Embeddings: embeddings,
		Cache:      cache,
		Sweeps:     sweeps,
		API:        api,
	}, nil
}
