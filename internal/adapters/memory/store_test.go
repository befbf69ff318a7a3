package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferret/internal/domain"
	"ferret/internal/ports"
)

var _ ports.Store = (*Store)(nil)

func newJob(id string) domain.ScanJob {
	now := time.Now().UTC()
	return domain.ScanJob{
		ID: id, Target: "example.com", OwnerID: "owner-1",
		Status: domain.StatusQueued, TotalSteps: 4,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateJob(ctx, newJob("j1")))

	job, found, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusQueued, job.Status)

	require.NoError(t, s.UpdateProgress(ctx, "j1", domain.StatusRunning, 50, "Assets discovered"))
	job, _, _ = s.GetJob(ctx, "j1")
	assert.Equal(t, domain.StatusRunning, job.Status)
	assert.Equal(t, 50, job.Progress)
	assert.Equal(t, "Assets discovered", job.CurrentStep)

	require.NoError(t, s.MarkCompleted(ctx, "j1", "advice"))
	job, _, _ = s.GetJob(ctx, "j1")
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "advice", job.Advisory)
	require.NotNil(t, job.CompletedAt)
}

func TestTerminalRecordsAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))
	require.NoError(t, s.MarkFailed(ctx, "j1", "boom"))

	// Late writes against a terminal record are dropped.
	require.NoError(t, s.UpdateProgress(ctx, "j1", domain.StatusRunning, 99, "late"))
	require.NoError(t, s.MarkCompleted(ctx, "j1", "late advice"))

	job, _, _ := s.GetJob(ctx, "j1")
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMessage)
	assert.Empty(t, job.Advisory)
	assert.Nil(t, job.CompletedAt)
}

func TestProgressNeverDecreases(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))
	require.NoError(t, s.UpdateProgress(ctx, "j1", domain.StatusRunning, 75, "step 3"))
	require.NoError(t, s.UpdateProgress(ctx, "j1", domain.StatusRunning, 50, "late step 2"))

	job, _, _ := s.GetJob(ctx, "j1")
	assert.Equal(t, 75, job.Progress)
}

func TestGetJobMissing(t *testing.T) {
	_, found, err := New().GetJob(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListJobsFiltersByOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	j1 := newJob("j1")
	j2 := newJob("j2")
	j2.OwnerID = "owner-2"
	require.NoError(t, s.CreateJob(ctx, j1))
	require.NoError(t, s.CreateJob(ctx, j2))

	jobs, err := s.ListJobs(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].ID)
}

func TestResultsFirstSeenWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := domain.NormalizedResult{Kind: domain.KindSubdomain, Value: "a.example.com", Source: "first"}
	dup := domain.NormalizedResult{Kind: domain.KindSubdomain, Value: "a.example.com", Source: "second"}
	require.NoError(t, s.SaveResults(ctx, "j1", []domain.NormalizedResult{first}))
	require.NoError(t, s.SaveResults(ctx, "j1", []domain.NormalizedResult{dup}))

	got, err := s.GetResults(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Source)
}

func TestResultsAndFindingsAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.SaveResults(ctx, "j1", []domain.NormalizedResult{
		{Kind: domain.KindHost, Value: "a.example.com"},
	}))
	require.NoError(t, s.SaveFindings(ctx, "j1", []domain.NormalizedResult{
		{Kind: domain.KindFinding, Value: "missing-hsts@a.example.com"},
	}))

	results, _ := s.GetResults(ctx, "j1")
	findings, _ := s.GetFindings(ctx, "j1")
	assert.Len(t, results, 1)
	assert.Len(t, findings, 1)

	empty, err := s.GetResults(ctx, "unknown-job")
	require.NoError(t, err)
	assert.Empty(t, empty, "absent data reads as empty, never as an error")
}
