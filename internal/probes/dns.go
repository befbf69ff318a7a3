// Package probes holds the default network-backed implementations of the
// four stage capabilities. The pipeline only sees the interfaces; anything
// that resolves or speaks HTTP well enough can replace these.
package probes

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// defaultWordlist covers the hostnames that show up on most org domains.
// Deliberately tiny; bulk brute-forcing is not this tool's job.
var defaultWordlist = []string{
	"www", "mail", "smtp", "webmail", "api", "app", "dev", "staging", "test",
	"admin", "portal", "vpn", "remote", "git", "docs", "blog", "shop",
	"status", "cdn", "static", "assets", "ftp", "ns1", "ns2", "autodiscover",
}

// DNSDiscoverer proposes candidate assets by resolving A records for a
// wordlist of common labels under the target, apex included.
type DNSDiscoverer struct {
	Resolver string // host:port of the recursive resolver
	Wordlist []string
	client   *dns.Client
}

func NewDNSDiscoverer(resolver string) *DNSDiscoverer {
	return &DNSDiscoverer{
		Resolver: resolver,
		Wordlist: defaultWordlist,
		client:   &dns.Client{Timeout: 3 * time.Second},
	}
}

func (d *DNSDiscoverer) Name() string { return "dns_wordlist" }

func (d *DNSDiscoverer) Discover(ctx context.Context, target string) ([]string, error) {
	names := []string{target}
	for _, word := range d.Wordlist {
		if err := ctx.Err(); err != nil {
			return names, err
		}
		candidate := word + "." + target
		if d.resolves(ctx, candidate) {
			names = append(names, candidate)
		}
	}
	return names, nil
}

// resolves reports whether the name has at least one A record. Lookup
// failures count as "does not resolve"; discovery is best-effort per name.
func (d *DNSDiscoverer) resolves(ctx context.Context, name string) bool {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	resp, _, err := d.client.ExchangeContext(ctx, m, d.Resolver)
	if err != nil || resp == nil {
		return false
	}
	return resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0
}
