package progress

import (
	"context"
	"sync"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
)

// MemoryStore keeps jobs in process memory for the life of the process.
// Each entry has its own lock so updates to different jobs never contend.
type MemoryStore struct {
	entries sync.Map // string -> *memoryEntry
}

type memoryEntry struct {
	mu  sync.Mutex
	job models.Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, job models.Job) error {
	entry := &memoryEntry{job: cloneJob(job)}
	if _, loaded := s.entries.LoadOrStore(job.ID, entry); loaded {
		return quillerrors.NewConflictError("job " + job.ID + " already exists")
	}

	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (models.Job, error) {
	entry, ok := s.load(id)
	if !ok {
		return models.Job{}, quillerrors.NewNotFoundError("job", "")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return cloneJob(entry.job), nil
}

// CompareAndSwap implements Store.
func (s *MemoryStore) CompareAndSwap(_ context.Context, id string, expected uint64, next models.Job) (bool, error) {
	entry, ok := s.load(id)
	if !ok {
		return false, quillerrors.NewNotFoundError("job", "")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.job.Version != expected {
		return false, nil
	}

	next = cloneJob(next)
	next.ID = id
	next.Version = expected + 1
	entry.job = next

	return true, nil
}

func (s *MemoryStore) load(id string) (*memoryEntry, bool) {
	v, ok := s.entries.Load(id)
	if !ok {
		return nil, false
	}

	entry, ok := v.(*memoryEntry)

	return entry, ok
}

// cloneJob copies pointer fields so callers cannot mutate stored state.
func cloneJob(job models.Job) models.Job {
	if job.Error != nil {
		msg := *job.Error
		job.Error = &msg
	}

	if job.AnalysisID != nil {
		id := *job.AnalysisID
		job.AnalysisID = &id
	}

	return job
}
