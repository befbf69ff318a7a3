// Package jobs owns the scan job lifecycle: it validates targets, creates
// the durable job record, launches the pipeline without blocking its caller,
// relays progress events to the store, and answers status queries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ferret/internal/domain"
	"ferret/internal/logger"
	"ferret/internal/pipeline"
	"ferret/internal/ports"
	"ferret/internal/validation"
)

// ErrNotFound is returned by Status for unknown job ids.
var ErrNotFound = errors.New("job not found")

// ErrStoreUnavailable aborts Start when no store is configured. Reads
// degrade gracefully without a store; the job-creation write never does —
// a job must not be reported as started without a durable record.
var ErrStoreUnavailable = errors.New("job store unavailable")

// advisoryPlaceholder replaces the advisory text whenever the advisor is
// absent or fails.
const advisoryPlaceholder = "Advisory summary unavailable."

// track is the in-process mirror of one job: a best-effort status cache plus
// the cancel handle for its running pipeline. The store stays the source of
// truth.
type track struct {
	status domain.JobStatus
	cancel context.CancelFunc
}

// Service is the job manager. Each job id is driven by exactly one pipeline
// run; the map below is the only mutable state shared between jobs and every
// update touches a single id under the mutex.
type Service struct {
	store   ports.Store
	pipe    *pipeline.Pipeline
	advisor ports.Advisor
	log     *logger.Logger

	mu     sync.Mutex
	active map[string]*track
}

func New(store ports.Store, pipe *pipeline.Pipeline, advisor ports.Advisor, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		pipe:    pipe,
		advisor: advisor,
		log:     log,
		active:  make(map[string]*track),
	}
}

// Start validates the target, synchronously creates the durable job record,
// then launches the pipeline in the background and returns the fresh job id.
// On a create failure no background work is ever started.
func (s *Service) Start(ctx context.Context, target, ownerID string) (string, error) {
	if err := validation.ValidateTarget(target); err != nil {
		return "", err
	}
	if s.store == nil {
		return "", ErrStoreUnavailable
	}

	now := time.Now().UTC()
	job := domain.ScanJob{
		ID:          uuid.NewString(),
		Target:      target,
		OwnerID:     ownerID,
		Status:      domain.StatusQueued,
		Progress:    0,
		TotalSteps:  pipeline.TotalSteps,
		CurrentStep: "Queued",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	// The run outlives the caller's request context; only Cancel (or process
	// exit) stops it.
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[job.ID] = &track{status: domain.StatusQueued, cancel: cancel}
	s.mu.Unlock()

	go s.run(runCtx, job)

	s.log.Infow("scan job started", "job_id", job.ID, "target", target)
	return job.ID, nil
}

// Status returns the durable job record.
func (s *Service) Status(ctx context.Context, jobID string) (domain.ScanJob, error) {
	if s.store == nil {
		return domain.ScanJob{}, ErrNotFound
	}
	job, found, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return domain.ScanJob{}, fmt.Errorf("get job: %w", err)
	}
	if !found {
		return domain.ScanJob{}, ErrNotFound
	}
	return job, nil
}

// List returns the owner's jobs from the store.
func (s *Service) List(ctx context.Context, ownerID string) ([]domain.ScanJob, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListJobs(ctx, ownerID)
}

// Active returns the ids of jobs this process is still driving. Operational
// introspection only; the cache may briefly lag the durable record.
func (s *Service) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id, t := range s.active {
		if t.status == domain.StatusQueued || t.status == domain.StatusRunning {
			ids = append(ids, id)
		}
	}
	return ids
}

// Cancel requests early termination of a running job. The job settles as
// failed with message "cancelled" and keeps its partial results. Returns
// false for jobs this process is not driving.
func (s *Service) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.active[jobID]
	if !ok {
		return false
	}
	t.cancel()
	return true
}

func (s *Service) setCached(jobID string, status domain.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.active[jobID]; ok {
		t.status = status
	}
}

func (s *Service) finish(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.active[jobID]; ok {
		t.cancel()
		delete(s.active, jobID)
	}
}

// run drives one pipeline execution to a terminal status. Errors here are
// recorded against the job and never propagate: the original caller already
// holds the job id.
func (s *Service) run(ctx context.Context, job domain.ScanJob) {
	defer s.finish(job.ID)
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("pipeline panic: %v", r)
			s.log.Errorw("scan job panicked", "job_id", job.ID, "panic", r)
			_ = s.store.MarkFailed(context.Background(), job.ID, msg)
			s.setCached(job.ID, domain.StatusFailed)
		}
	}()

	s.setCached(job.ID, domain.StatusRunning)
	// Status writes use a fresh context: cancelling a job must not block the
	// bookkeeping that records the cancellation.
	if err := s.store.UpdateProgress(context.Background(), job.ID, domain.StatusRunning, 0, "Starting"); err != nil {
		s.log.Warnw("progress write failed", "job_id", job.ID, "error", err)
	}

	// Single consumer relays the finite progress stream to the store, so
	// persisted progress preserves emission order.
	events := make(chan pipeline.Progress, pipeline.TotalSteps)
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		for ev := range events {
			err := s.store.UpdateProgress(context.Background(), job.ID, domain.StatusRunning, ev.Percent, ev.Label)
			if err != nil {
				s.log.Warnw("progress write failed", "job_id", job.ID, "error", err)
			}
		}
	}()

	outcome := s.pipe.Run(ctx, job.Target, events)
	<-relayed

	s.persistOutcome(job, outcome)
}

func (s *Service) persistOutcome(job domain.ScanJob, outcome pipeline.Outcome) {
	ctx := context.Background()

	// Partial results from failed runs are valid data; persist before the
	// terminal status write either way.
	var results, findings []domain.NormalizedResult
	for _, r := range outcome.Results {
		if r.Kind == domain.KindFinding {
			findings = append(findings, r)
		} else {
			results = append(results, r)
		}
	}
	if err := s.store.SaveResults(ctx, job.ID, results); err != nil {
		s.log.Warnw("result write failed", "job_id", job.ID, "error", err)
	}
	if err := s.store.SaveFindings(ctx, job.ID, findings); err != nil {
		s.log.Warnw("finding write failed", "job_id", job.ID, "error", err)
	}

	if err := outcome.Err(); err != nil {
		msg := err.Error()
		if errors.Is(err, context.Canceled) {
			msg = "cancelled"
		}
		if uerr := s.store.MarkFailed(ctx, job.ID, msg); uerr != nil {
			s.log.Errorw("failed-status write failed", "job_id", job.ID, "error", uerr)
		}
		s.setCached(job.ID, domain.StatusFailed)
		s.log.Infow("scan job failed", "job_id", job.ID, "error", msg, "results", len(outcome.Results))
		return
	}

	// Advisory text is computed before the terminal write so the completed
	// record never changes afterwards.
	advisory := s.advise(job, findings)
	if err := s.store.MarkCompleted(ctx, job.ID, advisory); err != nil {
		s.log.Errorw("completed-status write failed", "job_id", job.ID, "error", err)
	}
	s.setCached(job.ID, domain.StatusCompleted)
	s.log.Infow("scan job completed", "job_id", job.ID,
		"results", len(outcome.Results), "findings", outcome.Summary.Findings)
}

func (s *Service) advise(job domain.ScanJob, findings []domain.NormalizedResult) string {
	if s.advisor == nil {
		return advisoryPlaceholder
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	text, err := s.advisor.Summarize(ctx, job.Target, findings)
	if err != nil || text == "" {
		if err != nil {
			s.log.Warnw("advisory generation failed", "job_id", job.ID, "error", err)
		}
		return advisoryPlaceholder
	}
	return text
}
