// Package report turns a job's persisted results into a scored report. It is
// decoupled from the live pipeline: reports can be (re)built at any time
// after a job reaches a terminal state, including over the partial results
// of a failed run.
package report

import (
	"context"
	"errors"
	"fmt"

	"ferret/internal/domain"
	"ferret/internal/normalize"
	"ferret/internal/ports"
)

// ErrNotFound distinguishes "never ran" from "ran and failed" at the report
// endpoint.
var ErrNotFound = errors.New("scan not found")

// maxRecommendations caps the remediation list.
const maxRecommendations = 5

type Synthesizer struct {
	store ports.Store
}

func New(store ports.Store) *Synthesizer {
	return &Synthesizer{store: store}
}

// Build assembles the report for scanID from the persisted job record,
// results, and findings. Result reads are best-effort: store errors degrade
// to an empty section rather than failing the report.
func (s *Synthesizer) Build(ctx context.Context, scanID string) (domain.ScanReport, error) {
	if s.store == nil {
		return domain.ScanReport{}, ErrNotFound
	}
	job, found, err := s.store.GetJob(ctx, scanID)
	if err != nil {
		return domain.ScanReport{}, fmt.Errorf("get job: %w", err)
	}
	if !found {
		return domain.ScanReport{}, ErrNotFound
	}

	results, err := s.store.GetResults(ctx, scanID)
	if err != nil {
		results = nil
	}
	findings, err := s.store.GetFindings(ctx, scanID)
	if err != nil {
		findings = nil
	}

	merged := normalize.Dedup(append(results, findings...))
	normalize.Sort(merged)

	rep := domain.ScanReport{
		ScanID:      job.ID,
		Target:      job.Target,
		ScanDate:    job.CreatedAt,
		CompletedAt: job.CompletedAt,
		Summary:     normalize.Summarize(merged),
		Findings:    []domain.NormalizedResult{},
		Subdomains:  []string{},
		LiveHosts:   []string{},
		URLs:        []string{},
		Advisory:    job.Advisory,
	}
	for _, r := range merged {
		switch r.Kind {
		case domain.KindFinding:
			rep.Findings = append(rep.Findings, r)
		case domain.KindHost:
			rep.LiveHosts = append(rep.LiveHosts, r.Value)
		case domain.KindURL:
			rep.URLs = append(rep.URLs, r.Value)
		case domain.KindSubdomain:
			rep.Subdomains = append(rep.Subdomains, r.Value)
		}
	}
	rep.RiskLevel = RiskFromFindings(rep.Findings)
	rep.Recommendations = Recommendations(rep.Findings)
	return rep, nil
}

// RiskFromFindings derives the job-wide verdict with strict precedence:
// critical dominates high dominates "any finding" dominates none.
func RiskFromFindings(findings []domain.NormalizedResult) domain.RiskLevel {
	risk := domain.RiskLow
	for _, f := range findings {
		switch f.Severity() {
		case domain.SeverityCritical:
			return domain.RiskCritical
		case domain.SeverityHigh:
			risk = domain.RiskHigh
		default:
			if risk != domain.RiskHigh {
				risk = domain.RiskMedium
			}
		}
	}
	return risk
}

// Recommendations maps high and critical findings to actionable lines,
// keeping the first five in finding order. Missing metadata falls back to
// empty strings rather than failing the report.
func Recommendations(findings []domain.NormalizedResult) []string {
	recs := []string{}
	for _, f := range findings {
		sev := f.Severity()
		if sev != domain.SeverityCritical && sev != domain.SeverityHigh {
			continue
		}
		recs = append(recs, fmt.Sprintf("[%s] %s: %s", sev, f.Meta(domain.MetaFindingType), f.Meta(domain.MetaTitle)))
		if len(recs) == maxRecommendations {
			break
		}
	}
	return recs
}
