package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*ConceptJob
	now  func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*ConceptJob), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ConceptJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, job *ConceptJob) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.jobs[job.ID]
	if exists && prev.Status != job.Status {
		return fmt.Errorf("put job %s: %w", job.ID, ErrStatusChanged)
	}
	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.store(job, prev)
	return nil
}

func (s *MemoryStore) PutIfStatus(_ context.Context, job *ConceptJob, expected Status) (bool, error) {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return false, errMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.jobs[job.ID]
	if !ok {
		return false, ErrNotFound
	}
	if prev.Status != expected {
		return false, nil
	}
	job.UpdatedAt = s.now().UTC()
	s.store(job, prev)
	return true, nil
}

// store saves a copy of job, keeping prev's heartbeat when job has none.
func (s *MemoryStore) store(job, prev *ConceptJob) {
	stored := job.Clone()
	if prev != nil && stored.LastHeartbeat == nil && prev.LastHeartbeat != nil {
		hb := *prev.LastHeartbeat
		stored.LastHeartbeat = &hb
	}
	s.jobs[job.ID] = stored
}

func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, id string, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[strings.TrimSpace(id)]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status != from {
		return false, nil
	}
	job.Status = to
	job.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, owner string) ([]*ConceptJob, error) {
	owner = strings.TrimSpace(owner)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ConceptJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if owner != "" && job.Owner != owner {
			continue
		}
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateHeartbeat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[strings.TrimSpace(id)]
	if !ok {
		return ErrNotFound
	}
	now := s.now().UTC()
	job.LastHeartbeat = &now
	return nil
}

func (s *MemoryStore) FailStale(_ context.Context, cutoff time.Time, message string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, job := range s.jobs {
		if job.Status != StatusGenerating {
			continue
		}
		last := job.UpdatedAt
		if job.LastHeartbeat != nil {
			last = *job.LastHeartbeat
		}
		if !last.Before(cutoff) {
			continue
		}
		job.SetFailed(ReasonStale, message)
		job.AppendLog(s.now(), message)
		job.UpdatedAt = s.now().UTC()
		count++
	}
	return count, nil
}

func (s *MemoryStore) Close() error { return nil }
