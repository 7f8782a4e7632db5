// Package observability provides OpenTelemetry metrics, tracing and log correlation for the quill API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameJobs                 = "quill_jobs_total"
	MetricNameJobDuration          = "quill_job_duration_seconds"
	MetricNameEmbeddingBatches     = "quill_embedding_batches_total"
	MetricNameEmbeddingBatchDur    = "quill_embedding_batch_duration_seconds"
	MetricNameProviderErrors       = "quill_provider_errors_total"
	MetricNameCacheHits            = "quill_cache_hits_total"
	MetricNameCacheMisses          = "quill_cache_misses_total"
	MetricNameStaleJobsSwept       = "quill_stale_jobs_swept_total"
	MetricNameOrphanVectorsDeleted = "quill_orphan_vectors_deleted_total"
	MetricNameRequestBodyTooLarge  = "quill_request_body_too_large_total"
)

// Attribute keys.
const (
	AttrStatus   = "status"
	AttrProvider = "provider"
	AttrCache    = "cache"
)

// Provider names used for quill_provider_errors_total.
const (
	ProviderComments   = "comments"
	ProviderEmbeddings = "embeddings"
	ProviderVectors    = "vectors"
	ProviderLLM        = "llm"
)

// Cache names used for quill_cache_*_total.
const (
	CacheAnalysisReport     = "analysis_report"
	CacheChatQueryEmbedding = "chat_query_embedding"
)

// AllowedJobStatuses for quill_jobs_total and quill_job_duration_seconds.
var AllowedJobStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
}

// AllowedBatchStatuses for quill_embedding_batches_total.
var AllowedBatchStatuses = map[string]bool{
	"success": true,
	"failed":  true,
}

// AllowedProviders for quill_provider_errors_total.
var AllowedProviders = map[string]bool{
	ProviderComments:   true,
	ProviderEmbeddings: true,
	ProviderVectors:    true,
	ProviderLLM:        true,
}

// AllowedCacheNames for quill_cache_hits_total and quill_cache_misses_total.
var AllowedCacheNames = map[string]bool{
	CacheAnalysisReport:     true,
	CacheChatQueryEmbedding: true,
}

// NormalizeLabel returns value if it is in allowed, otherwise "other".
func NormalizeLabel(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}

// NormalizeCacheName returns name if known, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeLabel(name, AllowedCacheNames)
}
