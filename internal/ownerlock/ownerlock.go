// Package ownerlock guarantees at most one in-flight generation per owner.
//
// Ownership is tracked in process and, when a lock directory is configured,
// also through an advisory file lock so separate clarifai processes sharing a
// state directory reject concurrent runs for the same owner.
package ownerlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"clarifai/internal/textutil"
)

// ErrBusy reports that the owner already has a run in flight.
var ErrBusy = errors.New("owner already has a job in progress")

// Registry hands out per-owner leases.
type Registry struct {
	dir string

	mu     sync.Mutex
	leases map[string]*lease
}

type lease struct {
	jobID string
	file  *flock.Flock
}

// Release ends a lease. It is safe to call more than once.
type Release func()

// New returns a registry. An empty dir keeps leases process-local.
func New(dir string) *Registry {
	return &Registry{dir: strings.TrimSpace(dir), leases: make(map[string]*lease)}
}

// TryAcquire claims owner for jobID. It returns ErrBusy without waiting when
// the owner already holds a lease.
func (r *Registry) TryAcquire(owner, jobID string) (Release, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.New("owner required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.leases[owner]; ok {
		return nil, fmt.Errorf("%w (job %s)", ErrBusy, held.jobID)
	}

	l := &lease{jobID: jobID}
	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure lock directory: %w", err)
		}
		l.file = flock.New(filepath.Join(r.dir, textutil.SanitizeToken(owner)+".lock"))
		ok, err := l.file.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire owner lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w (held by another process)", ErrBusy)
		}
	}
	r.leases[owner] = l

	var once sync.Once
	return func() {
		once.Do(func() { r.release(owner, l) })
	}, nil
}

// Holder returns the job holding owner's lease, if any.
func (r *Registry) Holder(owner string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	held, ok := r.leases[strings.TrimSpace(owner)]
	if !ok {
		return "", false
	}
	return held.jobID, true
}

func (r *Registry) release(owner string, l *lease) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.leases[owner]; ok && current == l {
		delete(r.leases, owner)
	}
	if l.file != nil {
		_ = l.file.Unlock()
	}
}
