package service

import (
	"context"
	"sync"
	"time"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/progress"
	"github.com/quillai/quill/internal/quillerrors"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *models.LooseInt {
	v := models.LooseInt(n)

	return &v
}

type mockCommentSource struct {
	fetchFunc func(ctx context.Context, videoURL string, maxComments int) ([]models.RawComment, error)
}

func (m *mockCommentSource) Fetch(ctx context.Context, videoURL string, maxComments int) ([]models.RawComment, error) {
	return m.fetchFunc(ctx, videoURL, maxComments)
}

type mockEmbedder struct {
	createEmbeddingFunc  func(ctx context.Context, input string) ([]float32, error)
	createEmbeddingsFunc func(ctx context.Context, inputs []string) ([][]float32, error)
}

func (m *mockEmbedder) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	return m.createEmbeddingFunc(ctx, input)
}

func (m *mockEmbedder) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	return m.createEmbeddingsFunc(ctx, inputs)
}

// memoryVectorStore keeps upserts per namespace; queryFunc overrides Query when set.
type memoryVectorStore struct {
	mu        sync.Mutex
	upserts   map[string][]models.CommentVector
	upsertErr error
	queryFunc func(ctx context.Context, namespace string, vector []float32, topK int) ([]models.VectorMatch, error)
}

func newMemoryVectorStore() *memoryVectorStore {
	return &memoryVectorStore{upserts: make(map[string][]models.CommentVector)}
}

func (m *memoryVectorStore) Upsert(_ context.Context, namespace string, vectors []models.CommentVector) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserts[namespace] = append(m.upserts[namespace], vectors...)

	return nil
}

func (m *memoryVectorStore) Query(
	ctx context.Context, namespace string, vector []float32, topK int,
) ([]models.VectorMatch, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, namespace, vector, topK)
	}

	return nil, nil
}

func (m *memoryVectorStore) namespace(ns string) []models.CommentVector {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.CommentVector(nil), m.upserts[ns]...)
}

type mockGenerator struct {
	generateFunc func(ctx context.Context, model, prompt string) (string, error)
}

func (m *mockGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	return m.generateFunc(ctx, model, prompt)
}

type mockChatCompleter struct {
	chatFunc func(ctx context.Context, systemMessages []string, userMessage string) (string, error)
}

func (m *mockChatCompleter) Chat(ctx context.Context, systemMessages []string, userMessage string) (string, error) {
	return m.chatFunc(ctx, systemMessages, userMessage)
}

type mockIndexer struct {
	indexFunc func(ctx context.Context, jobID, namespace string, comments []models.CanonicalComment) error
}

func (m *mockIndexer) Index(
	ctx context.Context, jobID, namespace string, comments []models.CanonicalComment, _ progress.Reporter,
) error {
	return m.indexFunc(ctx, jobID, namespace, comments)
}

type mockInsights struct {
	extractFunc func(ctx context.Context, jobID string, comments []models.CanonicalComment) (models.AnalysisResult, error)
}

func (m *mockInsights) Extract(
	ctx context.Context, jobID string, comments []models.CanonicalComment, _ progress.Reporter,
) (models.AnalysisResult, error) {
	return m.extractFunc(ctx, jobID, comments)
}

// recordingReporter captures every report per channel, in order.
type recordingReporter struct {
	mu      sync.Mutex
	reports map[models.ProgressChannel][]int
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{reports: make(map[models.ProgressChannel][]int)}
}

func (r *recordingReporter) Report(_ context.Context, _ string, channel models.ProgressChannel, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports[channel] = append(r.reports[channel], percent)
}

func (r *recordingReporter) get(channel models.ProgressChannel) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int(nil), r.reports[channel]...)
}

type savedAnalysis struct {
	summary models.AnalysisSummary
	result  models.AnalysisResult
}

type mockAnalysisStore struct {
	mu             sync.Mutex
	saved          []savedAnalysis
	saveErr        error
	getSummaryFunc func(ctx context.Context, analysisID string) (models.AnalysisSummary, error)
	getResultFunc  func(ctx context.Context, analysisID string) (models.AnalysisResult, error)
}

func (m *mockAnalysisStore) Save(_ context.Context, summary models.AnalysisSummary, result models.AnalysisResult) error {
	if m.saveErr != nil {
		return m.saveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved = append(m.saved, savedAnalysis{summary: summary, result: result})

	return nil
}

func (m *mockAnalysisStore) GetSummary(ctx context.Context, analysisID string) (models.AnalysisSummary, error) {
	return m.getSummaryFunc(ctx, analysisID)
}

func (m *mockAnalysisStore) GetResult(ctx context.Context, analysisID string) (models.AnalysisResult, error) {
	return m.getResultFunc(ctx, analysisID)
}

func (m *mockAnalysisStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.saved)
}

// memoryJobRecords is an in-memory analysis_jobs table.
type memoryJobRecords struct {
	mu      sync.Mutex
	records map[string]models.JobRecord
}

func newMemoryJobRecords() *memoryJobRecords {
	return &memoryJobRecords{records: make(map[string]models.JobRecord)}
}

func (m *memoryJobRecords) Create(_ context.Context, jobID, url string) (models.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[jobID]; ok {
		return models.JobRecord{}, quillerrors.NewConflictError("job already exists")
	}

	rec := models.JobRecord{ID: jobID, URL: url, Status: models.JobStatusProcessing}
	m.records[jobID] = rec

	return rec, nil
}

func (m *memoryJobRecords) Get(_ context.Context, jobID string) (models.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[jobID]
	if !ok {
		return models.JobRecord{}, quillerrors.NewNotFoundError("job", "Job not found")
	}

	return rec, nil
}

func (m *memoryJobRecords) MarkCompleted(_ context.Context, jobID, analysisID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[jobID]
	now := time.Now()
	rec.Status = models.JobStatusCompleted
	rec.AnalysisID = &analysisID
	rec.EmbeddingsProgress, rec.AnalysisProgress = 100, 100
	rec.CompletedAt = &now
	m.records[jobID] = rec

	return nil
}

func (m *memoryJobRecords) MarkFailed(_ context.Context, jobID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[jobID]
	rec.Status = models.JobStatusFailed
	rec.Error = &message
	m.records[jobID] = rec

	return nil
}

func (m *memoryJobRecords) List(_ context.Context, _ *models.ListJobsFilters) ([]models.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.JobRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}

	return out, nil
}

func (m *memoryJobRecords) get(jobID string) models.JobRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.records[jobID]
}
