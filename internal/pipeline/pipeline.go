// Package pipeline drives one scan job through the fixed four-step sequence:
// normalize target, discover assets, probe liveness and enumerate, assess
// risk. Steps run strictly in order; stage outputs thread forward and
// accumulate into one normalized result set. A failing step aborts the
// remaining steps but never discards the results already gathered.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"ferret/internal/domain"
	"ferret/internal/logger"
	"ferret/internal/normalize"
	"ferret/internal/ports"
	"ferret/internal/validation"
)

// TotalSteps is fixed by the step sequence.
const TotalSteps = 4

// Step labels, also persisted as the job's current step.
const (
	LabelNormalize = "Target normalized"
	LabelDiscover  = "Assets discovered"
	LabelProbe     = "Liveness & enumeration"
	LabelCompleted = "Completed"
)

// Progress is one pipeline progress event. Events are emitted after each
// completed step, in step order, with strictly increasing Percent.
type Progress struct {
	Step       int    `json:"step"`
	TotalSteps int    `json:"total_steps"`
	Label      string `json:"label"`
	Percent    int    `json:"percent"`
}

// StepError records which step failed and why. Steps fail as values; the
// orchestrator never panics across a stage boundary.
type StepError struct {
	Step  int
	Label string
	Err   error
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Label, e.Err)
}

func (e StepError) Unwrap() error { return e.Err }

// Outcome is everything one run produced: the deduplicated, canonically
// ordered result set, its summary, and any step failures. Partial outcomes
// from failed runs are valid, queryable data.
type Outcome struct {
	Results []domain.NormalizedResult
	Summary domain.Summary
	Errors  []StepError
}

// Err returns the first step failure, or nil for a clean run.
func (o Outcome) Err() error {
	if len(o.Errors) == 0 {
		return nil
	}
	return o.Errors[0]
}

// Config carries the stage-three load controls. Both caps are explicit
// policy: deeper probing is the most expensive and highest-risk stage.
type Config struct {
	// Fanout bounds concurrent enumeration/assessment within one job.
	Fanout int
	// AssessHostCap limits risk assessment to a prefix of the live hosts.
	AssessHostCap int
}

// Pipeline sequences the four stage probes. It holds no per-job state; one
// Pipeline serves any number of concurrent Run calls.
type Pipeline struct {
	discoverer ports.AssetDiscoverer
	prober     ports.LivenessProber
	enumerator ports.EndpointEnumerator
	assessor   ports.RiskAssessor
	fanout     int
	assessCap  int
	log        *logger.Logger
}

func New(d ports.AssetDiscoverer, p ports.LivenessProber, e ports.EndpointEnumerator, a ports.RiskAssessor, cfg Config, log *logger.Logger) *Pipeline {
	if cfg.Fanout < 1 {
		cfg.Fanout = 1
	}
	if cfg.AssessHostCap < 0 {
		cfg.AssessHostCap = 0
	}
	return &Pipeline{
		discoverer: d,
		prober:     p,
		enumerator: e,
		assessor:   a,
		fanout:     cfg.Fanout,
		assessCap:  cfg.AssessHostCap,
		log:        log,
	}
}

func percent(step int) int {
	return int(math.Round(float64(step) / float64(TotalSteps) * 100))
}

// Run executes the pipeline for target, sending one Progress event per
// completed step on events and closing the channel before returning. The
// context is checked at every suspension point; cancellation aborts the
// remaining steps and surfaces as a step failure, settling the run with
// whatever was accumulated.
func (p *Pipeline) Run(ctx context.Context, target string, events chan<- Progress) Outcome {
	defer close(events)

	var acc []domain.NormalizedResult
	var errs []StepError

	emit := func(step int, label string) {
		events <- Progress{Step: step, TotalSteps: TotalSteps, Label: label, Percent: percent(step)}
	}
	fail := func(step int, label string, err error) Outcome {
		errs = append(errs, StepError{Step: step, Label: label, Err: err})
		p.log.Warnw("pipeline step failed", "target", target, "step", step, "label", label, "error", err)
		return p.settle(acc, errs)
	}

	// Step 1: normalize the target string. Validation already happened in
	// the job service pre-flight.
	host := validation.NormalizeTarget(target)
	emit(1, LabelNormalize)

	if err := ctx.Err(); err != nil {
		return fail(2, LabelDiscover, err)
	}

	// Step 2: asset discovery.
	names, err := p.discoverer.Discover(ctx, host)
	if err != nil {
		return fail(2, LabelDiscover, err)
	}
	for _, name := range names {
		acc = append(acc, normalize.Subdomain(name, p.discoverer.Name()))
	}
	emit(2, LabelDiscover)

	if err := ctx.Err(); err != nil {
		return fail(3, LabelProbe, err)
	}

	// Step 3: liveness over every candidate, sequentially, then bounded
	// fan-out of enumeration and capped risk assessment over the live set.
	var live []ports.HostProbe
	for _, name := range names {
		hp, err := p.prober.Probe(ctx, name)
		if err != nil {
			return fail(3, LabelProbe, err)
		}
		if !hp.Alive {
			continue
		}
		live = append(live, hp)
		acc = append(acc, normalize.Host(hp, p.prober.Name()))
	}

	urls, findings, err := p.probeLive(ctx, live)
	for _, u := range urls {
		acc = append(acc, normalize.URL(u, p.enumerator.Name()))
	}
	for _, f := range findings {
		acc = append(acc, normalize.Finding(f, p.assessor.Name()))
	}
	if err != nil {
		return fail(3, LabelProbe, err)
	}
	emit(3, LabelProbe)

	if err := ctx.Err(); err != nil {
		return fail(4, LabelCompleted, err)
	}

	// Step 4: nothing left to probe; mark the run complete at 100%.
	emit(4, LabelCompleted)
	return p.settle(acc, errs)
}

// probeLive runs endpoint enumeration over every live host and risk
// assessment over the first assessCap of them, at most fanout at a time.
// Partial output gathered before an error is returned alongside it.
func (p *Pipeline) probeLive(ctx context.Context, live []ports.HostProbe) ([]ports.CrawledURL, []ports.RawFinding, error) {
	var (
		mu       sync.Mutex
		urls     []ports.CrawledURL
		findings []ports.RawFinding
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fanout)

	for i, hp := range live {
		host := hp.Host
		assess := i < p.assessCap

		g.Go(func() error {
			us, err := p.enumerator.Enumerate(gctx, host)
			if err != nil {
				return fmt.Errorf("enumerate %s: %w", host, err)
			}
			mu.Lock()
			urls = append(urls, us...)
			mu.Unlock()

			if !assess {
				return nil
			}
			fs, err := p.assessor.Assess(gctx, host)
			if err != nil {
				return fmt.Errorf("assess %s: %w", host, err)
			}
			mu.Lock()
			findings = append(findings, fs...)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return urls, findings, err
}

// settle runs the accumulated set through the final dedup and canonical
// ordering pass, failed runs included.
func (p *Pipeline) settle(acc []domain.NormalizedResult, errs []StepError) Outcome {
	results := normalize.Dedup(acc)
	normalize.Sort(results)
	return Outcome{
		Results: results,
		Summary: normalize.Summarize(results),
		Errors:  errs,
	}
}
