// Package normalize converts heterogeneous stage outputs into the canonical
// result shape, deduplicates them, and fixes the presentation order every
// downstream consumer relies on.
package normalize

import (
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"ferret/internal/domain"
	"ferret/internal/ports"
)

// collator performs the locale-aware value comparison used for every
// non-finding kind. Collation handles case folding and accented values the
// way a byte compare does not.
var collator = collate.New(language.Und, collate.IgnoreCase)

// Subdomain canonicalizes one discovered asset name.
func Subdomain(name, source string) domain.NormalizedResult {
	return domain.NormalizedResult{
		Kind:         domain.KindSubdomain,
		Value:        name,
		Source:       source,
		DiscoveredAt: time.Now().UTC(),
	}
}

// Host canonicalizes one confirmed-live host probe.
func Host(p ports.HostProbe, source string) domain.NormalizedResult {
	return domain.NormalizedResult{
		Kind:  domain.KindHost,
		Value: p.Host,
		Metadata: map[string]string{
			domain.MetaScheme:     p.Scheme,
			domain.MetaStatusCode: strconv.Itoa(p.StatusCode),
			domain.MetaServer:     p.Server,
		},
		Source:       source,
		DiscoveredAt: time.Now().UTC(),
	}
}

// URL canonicalizes one enumerated endpoint.
func URL(u ports.CrawledURL, source string) domain.NormalizedResult {
	return domain.NormalizedResult{
		Kind:  domain.KindURL,
		Value: u.URL,
		Metadata: map[string]string{
			domain.MetaHost:       u.Host,
			domain.MetaStatusCode: strconv.Itoa(u.StatusCode),
		},
		Source:       source,
		DiscoveredAt: time.Now().UTC(),
	}
}

// Finding canonicalizes one raw finding. Identity within the finding kind is
// "type@host" so the same weakness on two hosts stays distinct while a
// re-observed weakness on one host collapses.
func Finding(f ports.RawFinding, source string) domain.NormalizedResult {
	return domain.NormalizedResult{
		Kind:  domain.KindFinding,
		Value: f.Type + "@" + f.Host,
		Metadata: map[string]string{
			domain.MetaSeverity:    string(f.Severity),
			domain.MetaFindingType: f.Type,
			domain.MetaTitle:       f.Title,
			domain.MetaHost:        f.Host,
			domain.MetaEvidence:    f.Evidence,
		},
		Source:       source,
		DiscoveredAt: time.Now().UTC(),
	}
}

func key(r domain.NormalizedResult) string {
	return string(r.Kind) + "\x00" + r.Value
}

// Dedup drops later duplicates of (kind, value), keeping the first-seen
// record and its metadata. Input order is otherwise preserved, and the
// operation is idempotent.
func Dedup(in []domain.NormalizedResult) []domain.NormalizedResult {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.NormalizedResult, 0, len(in))
	for _, r := range in {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

var kindRank = map[domain.Kind]int{
	domain.KindFinding:   0,
	domain.KindHost:      1,
	domain.KindURL:       2,
	domain.KindSubdomain: 3,
}

// Sort fixes the canonical presentation order in place: findings first
// (by severity rank, critical to info), then hosts, urls, and subdomains,
// each ordered by value. The sort is stable, so an already-ordered finding
// list is left untouched.
func Sort(in []domain.NormalizedResult) {
	sort.SliceStable(in, func(i, j int) bool {
		a, b := in[i], in[j]
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		if a.Kind == domain.KindFinding {
			return a.Severity().Rank() < b.Severity().Rank()
		}
		return collator.CompareString(a.Value, b.Value) < 0
	})
}

// Summarize counts results per kind and findings at the two highest
// severity bands.
func Summarize(in []domain.NormalizedResult) domain.Summary {
	s := domain.Summary{Total: len(in)}
	for _, r := range in {
		switch r.Kind {
		case domain.KindSubdomain:
			s.Subdomains++
		case domain.KindHost:
			s.Hosts++
		case domain.KindURL:
			s.URLs++
		case domain.KindFinding:
			s.Findings++
			switch r.Severity() {
			case domain.SeverityCritical:
				s.Critical++
				s.HighOrAbove++
			case domain.SeverityHigh:
				s.HighOrAbove++
			}
		}
	}
	return s
}
