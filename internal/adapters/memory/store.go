// Package memory is the in-process store used when no DATABASE_URL is
// configured, and by tests. Same contract as the postgres adapter, including
// terminal-record immutability; none of it survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ferret/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	jobs     map[string]domain.ScanJob
	results  map[string][]domain.NormalizedResult
	findings map[string][]domain.NormalizedResult
}

func New() *Store {
	return &Store{
		jobs:     make(map[string]domain.ScanJob),
		results:  make(map[string][]domain.NormalizedResult),
		findings: make(map[string][]domain.NormalizedResult),
	}
}

func (s *Store) CreateJob(_ context.Context, job domain.ScanJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (domain.ScanJob, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *Store) ListJobs(_ context.Context, ownerID string) ([]domain.ScanJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ScanJob
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateProgress(_ context.Context, id string, status domain.JobStatus, progress int, stepLabel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return nil
	}
	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	job.CurrentStep = stepLabel
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return nil
}

func (s *Store) MarkCompleted(_ context.Context, id string, advisory string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	job.Status = domain.StatusCompleted
	job.Progress = 100
	job.CurrentStep = "Completed"
	job.Advisory = advisory
	job.UpdatedAt = now
	job.CompletedAt = &now
	s.jobs[id] = job
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return nil
	}
	job.Status = domain.StatusFailed
	job.ErrorMessage = reason
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return nil
}

func (s *Store) SaveResults(_ context.Context, jobID string, results []domain.NormalizedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[jobID] = appendNew(s.results[jobID], results)
	return nil
}

func (s *Store) SaveFindings(_ context.Context, jobID string, findings []domain.NormalizedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings[jobID] = appendNew(s.findings[jobID], findings)
	return nil
}

func (s *Store) GetResults(_ context.Context, jobID string) ([]domain.NormalizedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.NormalizedResult(nil), s.results[jobID]...), nil
}

func (s *Store) GetFindings(_ context.Context, jobID string) ([]domain.NormalizedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.NormalizedResult(nil), s.findings[jobID]...), nil
}

// appendNew keeps first-seen records for a (kind, value), mirroring the
// postgres ON CONFLICT DO NOTHING behavior.
func appendNew(existing, incoming []domain.NormalizedResult) []domain.NormalizedResult {
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[string(r.Kind)+"\x00"+r.Value] = struct{}{}
	}
	for _, r := range incoming {
		k := string(r.Kind) + "\x00" + r.Value
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		existing = append(existing, r)
	}
	return existing
}
