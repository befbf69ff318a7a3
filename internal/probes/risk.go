package probes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ferret/internal/domain"
	"ferret/internal/ports"
)

// HeaderAssessor checks a live host for transport and response-header
// misconfigurations. Passive only: one GET per scheme, no payloads.
type HeaderAssessor struct {
	Client *http.Client
}

func NewHeaderAssessor(timeout time.Duration) *HeaderAssessor {
	return &HeaderAssessor{Client: newHTTPClient(timeout)}
}

func (a *HeaderAssessor) Name() string { return "header_assessment" }

func (a *HeaderAssessor) Assess(ctx context.Context, host string) ([]ports.RawFinding, error) {
	resp, u, err := fetch(ctx, a.Client, host, "/")
	if err != nil {
		return nil, err
	}
	if resp == nil {
		// Probably reported live by a prober with different timing; a host
		// that answers neither scheme now is not a stage failure.
		return nil, nil
	}
	defer resp.Body.Close()
	scheme := u.Scheme

	var findings []ports.RawFinding
	add := func(ftype, title string, sev domain.Severity, evidence string) {
		findings = append(findings, ports.RawFinding{
			Type: ftype, Title: title, Severity: sev, Host: host, Evidence: evidence,
		})
	}

	if scheme == "http" {
		add("plaintext-http", "Site served over unencrypted HTTP", domain.SeverityHigh,
			"HTTPS connection failed; content available on http://"+host)
	}
	h := resp.Header
	if scheme == "https" && h.Get("Strict-Transport-Security") == "" {
		add("missing-hsts", "Strict-Transport-Security header not set", domain.SeverityMedium,
			"response lacks Strict-Transport-Security")
	}
	if h.Get("Content-Security-Policy") == "" {
		add("missing-csp", "Content-Security-Policy header not set", domain.SeverityLow,
			"response lacks Content-Security-Policy")
	}
	if h.Get("X-Content-Type-Options") == "" {
		add("missing-content-type-options", "X-Content-Type-Options header not set", domain.SeverityLow,
			"response lacks X-Content-Type-Options: nosniff")
	}
	if server := h.Get("Server"); strings.ContainsAny(server, "0123456789") {
		add("server-version-disclosure", "Server header discloses software version", domain.SeverityInfo,
			"Server: "+server)
	}
	return findings, nil
}
