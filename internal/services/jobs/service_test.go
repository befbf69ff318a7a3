package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferret/internal/adapters/memory"
	"ferret/internal/domain"
	"ferret/internal/logger"
	"ferret/internal/pipeline"
	"ferret/internal/ports"
	"ferret/internal/validation"
)

type stubDiscoverer struct {
	names []string
	err   error
	block chan struct{} // when set, Discover waits for close or cancellation
}

func (s *stubDiscoverer) Name() string { return "stub_discovery" }
func (s *stubDiscoverer) Discover(ctx context.Context, _ string) ([]string, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.names, s.err
}

type stubProber struct{ alive map[string]bool }

func (s *stubProber) Name() string { return "stub_probe" }
func (s *stubProber) Probe(_ context.Context, host string) (ports.HostProbe, error) {
	return ports.HostProbe{Host: host, Alive: s.alive[host], Scheme: "https", StatusCode: 200}, nil
}

type stubEnumerator struct{}

func (stubEnumerator) Name() string { return "stub_enum" }
func (stubEnumerator) Enumerate(context.Context, string) ([]ports.CrawledURL, error) {
	return nil, nil
}

type stubAssessor struct{ findings []ports.RawFinding }

func (s *stubAssessor) Name() string { return "stub_assess" }
func (s *stubAssessor) Assess(context.Context, string) ([]ports.RawFinding, error) {
	return s.findings, nil
}

type stubAdvisor struct {
	text string
	err  error
}

func (s *stubAdvisor) Summarize(context.Context, string, []domain.NormalizedResult) (string, error) {
	return s.text, s.err
}

// failingCreateStore wraps the memory store but refuses job creation.
type failingCreateStore struct {
	*memory.Store
}

func (f *failingCreateStore) CreateJob(context.Context, domain.ScanJob) error {
	return errors.New("connection refused")
}

// progressRecorder captures every persisted progress value in order.
type progressRecorder struct {
	*memory.Store
	mu       sync.Mutex
	progress []int
}

func (r *progressRecorder) UpdateProgress(ctx context.Context, id string, status domain.JobStatus, progress int, label string) error {
	r.mu.Lock()
	r.progress = append(r.progress, progress)
	r.mu.Unlock()
	return r.Store.UpdateProgress(ctx, id, status, progress, label)
}

func newService(store ports.Store, d ports.AssetDiscoverer, p ports.LivenessProber, a ports.RiskAssessor, adv ports.Advisor) *Service {
	pipe := pipeline.New(d, p, stubEnumerator{}, a, pipeline.Config{Fanout: 2, AssessHostCap: 2}, logger.Nop())
	return New(store, pipe, adv, logger.Nop())
}

func waitTerminal(t *testing.T, s *Service, jobID string) domain.ScanJob {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		job, err := s.Status(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal status (last: %s)", jobID, job.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartRejectsInvalidTarget(t *testing.T) {
	s := newService(memory.New(), &stubDiscoverer{}, &stubProber{}, &stubAssessor{}, nil)

	for _, target := range []string{"", "not a domain!!", "localhost"} {
		_, err := s.Start(context.Background(), target, "owner-1")
		var verr *validation.Error
		assert.ErrorAs(t, err, &verr, "target %q", target)
	}
	assert.Empty(t, s.Active())
}

func TestStartFailsWhenCreateFails(t *testing.T) {
	store := &failingCreateStore{Store: memory.New()}
	disc := &stubDiscoverer{names: []string{"example.com"}}
	s := newService(store, disc, &stubProber{}, &stubAssessor{}, nil)

	_, err := s.Start(context.Background(), "example.com", "owner-1")
	require.Error(t, err)
	assert.Empty(t, s.Active(), "no background work after a failed create")
}

func TestCleanRunLifecycle(t *testing.T) {
	store := &progressRecorder{Store: memory.New()}
	s := newService(store,
		&stubDiscoverer{names: []string{"example.com", "www.example.com"}},
		&stubProber{alive: map[string]bool{"example.com": true}},
		&stubAssessor{},
		&stubAdvisor{text: "All clear."},
	)

	id, err := s.Start(context.Background(), "example.com", "owner-1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	job := waitTerminal(t, s, id)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "Completed", job.CurrentStep)
	assert.Equal(t, "All clear.", job.Advisory)
	assert.Empty(t, job.ErrorMessage)
	require.NotNil(t, job.CompletedAt)

	// Persisted progress sequence is non-decreasing and ends at 100.
	store.mu.Lock()
	progress := append([]int(nil), store.progress...)
	store.mu.Unlock()
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 100, progress[len(progress)-1])

	results, err := store.GetResults(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, results, 3) // 2 subdomains + 1 host
}

func TestFailedRunKeepsPartialResults(t *testing.T) {
	store := memory.New()
	disc := &stubDiscoverer{err: errors.New("resolver down")}
	s := newService(store, disc, &stubProber{}, &stubAssessor{}, nil)

	id, err := s.Start(context.Background(), "example.com", "owner-1")
	require.NoError(t, err)

	job := waitTerminal(t, s, id)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "resolver down")
	assert.Less(t, job.Progress, 100)
	assert.Nil(t, job.CompletedAt)
}

func TestAdvisorFailureDoesNotFailJob(t *testing.T) {
	s := newService(memory.New(),
		&stubDiscoverer{names: []string{"example.com"}},
		&stubProber{alive: map[string]bool{"example.com": true}},
		&stubAssessor{},
		&stubAdvisor{err: errors.New("model overloaded")},
	)

	id, err := s.Start(context.Background(), "example.com", "owner-1")
	require.NoError(t, err)

	job := waitTerminal(t, s, id)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, advisoryPlaceholder, job.Advisory)
}

func TestCancelSettlesJobAsFailed(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := newService(memory.New(),
		&stubDiscoverer{names: []string{"example.com"}, block: block},
		&stubProber{},
		&stubAssessor{},
		nil,
	)

	id, err := s.Start(context.Background(), "example.com", "owner-1")
	require.NoError(t, err)
	require.True(t, s.Cancel(id))

	job := waitTerminal(t, s, id)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "cancelled", job.ErrorMessage)
}

func TestCancelUnknownJob(t *testing.T) {
	s := newService(memory.New(), &stubDiscoverer{}, &stubProber{}, &stubAssessor{}, nil)
	assert.False(t, s.Cancel("nope"))
}

func TestStatusUnknownJob(t *testing.T) {
	s := newService(memory.New(), &stubDiscoverer{}, &stubProber{}, &stubAssessor{}, nil)
	_, err := s.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveTracksRunningJobs(t *testing.T) {
	block := make(chan struct{})
	s := newService(memory.New(),
		&stubDiscoverer{names: []string{"example.com"}, block: block},
		&stubProber{},
		&stubAssessor{},
		nil,
	)

	id, err := s.Start(context.Background(), "example.com", "owner-1")
	require.NoError(t, err)
	assert.Contains(t, s.Active(), id)

	close(block)
	waitTerminal(t, s, id)
	require.Eventually(t, func() bool { return len(s.Active()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestConcurrentJobsAreIndependent(t *testing.T) {
	store := memory.New()
	s := newService(store,
		&stubDiscoverer{names: []string{"example.com"}},
		&stubProber{alive: map[string]bool{"example.com": true}},
		&stubAssessor{},
		nil,
	)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.Start(context.Background(), "example.com", "owner-1")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "job ids must be unique")
		seen[id] = true
		job := waitTerminal(t, s, id)
		assert.Equal(t, domain.StatusCompleted, job.Status)
	}
}
