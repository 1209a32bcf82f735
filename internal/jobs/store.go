package jobs

import (
	"context"
	"time"
)

// Store persists concept jobs. Implementations return copies; mutating a
// returned job has no effect until it is passed back to Put.
type Store interface {
	Get(ctx context.Context, id string) (*ConceptJob, error)
	// Put inserts a new job or updates an existing one without touching its
	// status. It returns ErrStatusChanged when the stored status is not
	// job.Status; status only moves through CompareAndSwapStatus, PutIfStatus
	// and FailStale.
	Put(ctx context.Context, job *ConceptJob) error
	// PutIfStatus writes the whole job, status included, only if the stored
	// status is expected. It reports whether the write happened.
	PutIfStatus(ctx context.Context, job *ConceptJob, expected Status) (bool, error)
	// CompareAndSwapStatus moves a job from one status to another only if it
	// is currently in from. It reports whether the swap happened.
	CompareAndSwapStatus(ctx context.Context, id string, from, to Status) (bool, error)
	// List returns jobs newest first. An empty owner lists every job.
	List(ctx context.Context, owner string) ([]*ConceptJob, error)
	UpdateHeartbeat(ctx context.Context, id string) error
	// FailStale marks generating jobs whose heartbeat is older than cutoff as
	// failed and returns how many were changed.
	FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
	Close() error
}
