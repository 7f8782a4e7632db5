// Package progress tracks in-flight analysis jobs: their two progress counters
// and their single terminal transition.
package progress

import (
	"context"
	"errors"

	"github.com/quillai/quill/internal/models"
)

// ErrTerminalState is returned when a terminal job would be moved to a different terminal outcome.
var ErrTerminalState = errors.New("progress: job already reached a terminal state")

// Store persists job records keyed by job id.
// Implementations must be safe for concurrent use; operations on different ids must not contend.
type Store interface {
	// Insert stores a new job. Returns quillerrors.ErrConflict when the id exists.
	Insert(ctx context.Context, job models.Job) error
	// Get returns the job. Returns quillerrors.ErrNotFound when absent.
	Get(ctx context.Context, id string) (models.Job, error)
	// CompareAndSwap replaces the job only if its stored Version equals expected.
	// On success the stored Version is expected+1. Returns false on a version mismatch
	// and quillerrors.ErrNotFound when absent.
	CompareAndSwap(ctx context.Context, id string, expected uint64, next models.Job) (bool, error)
}
