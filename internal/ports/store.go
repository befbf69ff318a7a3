package ports

import (
	"context"

	"ferret/internal/domain"
)

// JobStore persists scan job records. The store is the source of truth for
// job state; in-memory caches held by services are best-effort mirrors.
//
// Reads are best-effort: an absent backing store yields zero values, not
// errors. CreateJob is the one load-bearing write — a failed create must
// abort the start path so no job is ever reported as started without a
// durable record behind it.
type JobStore interface {
	CreateJob(ctx context.Context, job domain.ScanJob) error
	GetJob(ctx context.Context, id string) (job domain.ScanJob, found bool, err error)
	ListJobs(ctx context.Context, ownerID string) ([]domain.ScanJob, error)

	// UpdateProgress moves a non-terminal job forward. Terminal records are
	// immutable; updates against them are silently dropped.
	UpdateProgress(ctx context.Context, id string, status domain.JobStatus, progress int, stepLabel string) error
	MarkCompleted(ctx context.Context, id string, advisory string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// ResultStore persists normalized results and findings per job. Findings are
// stored apart from the other kinds so report queries can project them
// without filtering.
type ResultStore interface {
	SaveResults(ctx context.Context, jobID string, results []domain.NormalizedResult) error
	SaveFindings(ctx context.Context, jobID string, findings []domain.NormalizedResult) error
	GetResults(ctx context.Context, jobID string) ([]domain.NormalizedResult, error)
	GetFindings(ctx context.Context, jobID string) ([]domain.NormalizedResult, error)
}

// Store is the full persistence collaborator.
type Store interface {
	JobStore
	ResultStore
}
