package domain

import "time"

// Core domain models. API projections live in the HTTP adapter; keep these
// decoupled where helpful.

// JobStatus is the lifecycle state of a scan job. Transitions only move
// forward: queued -> running -> completed|failed.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether a job in this status can never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ScanJob is one end-to-end pipeline run for a single target.
type ScanJob struct {
	ID           string     `json:"id"`
	Target       string     `json:"target"`
	OwnerID      string     `json:"owner_id,omitempty"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"` // 0..100, non-decreasing
	TotalSteps   int        `json:"total_steps"`
	CurrentStep  string     `json:"current_step"`
	Advisory     string     `json:"advisory,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Kind classifies a normalized result.
type Kind string

const (
	KindSubdomain Kind = "subdomain"
	KindHost      Kind = "host"
	KindURL       Kind = "url"
	KindFinding   Kind = "finding"
)

// Severity of a finding, carried in result metadata.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting: critical=0 .. info=4. Unknown values
// sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	}
	return 5
}

// Metadata keys shared between probes, the normalizer, and the renderer.
const (
	MetaSeverity    = "severity"
	MetaFindingType = "finding_type"
	MetaTitle       = "title"
	MetaHost        = "host"
	MetaEvidence    = "evidence"
	MetaStatusCode  = "status_code"
	MetaScheme      = "scheme"
	MetaServer      = "server"
)

// NormalizedResult is the canonical record every stage output is converted
// into. (Kind, Value) is unique within one job's result set.
type NormalizedResult struct {
	Kind         Kind              `json:"kind"`
	Value        string            `json:"value"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Source       string            `json:"source"`
	DiscoveredAt time.Time         `json:"discovered_at"`
}

// Meta returns the metadata value for key, or "" when absent. Renderers rely
// on the empty-string default instead of failing on sparse metadata.
func (r NormalizedResult) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}

// Severity of a finding result; non-findings rank as unknown.
func (r NormalizedResult) Severity() Severity {
	return Severity(r.Meta(MetaSeverity))
}

// Summary holds the aggregate counts over one job's normalized results.
type Summary struct {
	Total       int `json:"total"`
	Subdomains  int `json:"subdomains"`
	Hosts       int `json:"hosts"`
	URLs        int `json:"urls"`
	Findings    int `json:"findings"`
	HighOrAbove int `json:"high_or_above"`
	Critical    int `json:"critical"`
}

// RiskLevel is the job-wide verdict derived from the worst finding severity.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ScanReport is a derived, read-only view over a job's persisted results.
// It has no lifecycle of its own and is recomputed on each request.
type ScanReport struct {
	ScanID          string             `json:"scan_id"`
	Target          string             `json:"target"`
	ScanDate        time.Time          `json:"scan_date"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Summary         Summary            `json:"summary"`
	Findings        []NormalizedResult `json:"findings"`
	Subdomains      []string           `json:"subdomains"`
	LiveHosts       []string           `json:"live_hosts"`
	URLs            []string           `json:"urls"`
	RiskLevel       RiskLevel          `json:"risk_level"`
	Recommendations []string           `json:"recommendations"`
	Advisory        string             `json:"advisory,omitempty"`
}
