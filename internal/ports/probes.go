package ports

import (
	"context"

	"ferret/internal/domain"
)

// Raw probe outputs. The pipeline feeds these through the normalizer; probes
// never produce domain.NormalizedResult themselves.

// HostProbe is one liveness check outcome. Probe implementations report
// unreachable hosts as Alive=false with a nil error; errors are reserved for
// hard faults such as cancellation.
type HostProbe struct {
	Host       string
	Alive      bool
	Scheme     string
	StatusCode int
	Server     string
}

// CrawledURL is one enumerated endpoint on a live host.
type CrawledURL struct {
	URL        string
	Host       string
	StatusCode int
}

// RawFinding is one vulnerability or misconfiguration observation.
type RawFinding struct {
	Type     string
	Title    string
	Severity domain.Severity
	Host     string
	Evidence string
}

// The four stage capabilities. The orchestrator depends only on these, so
// network-backed implementations and test stubs substitute cleanly.

// AssetDiscoverer proposes candidate asset names for a normalized target
// domain. The target itself should be among the candidates.
type AssetDiscoverer interface {
	Name() string
	Discover(ctx context.Context, target string) ([]string, error)
}

// LivenessProber checks whether a single candidate host is reachable.
type LivenessProber interface {
	Name() string
	Probe(ctx context.Context, host string) (HostProbe, error)
}

// EndpointEnumerator lists endpoints on a live host.
type EndpointEnumerator interface {
	Name() string
	Enumerate(ctx context.Context, host string) ([]CrawledURL, error)
}

// RiskAssessor inspects a live host for misconfigurations.
type RiskAssessor interface {
	Name() string
	Assess(ctx context.Context, host string) ([]RawFinding, error)
}
