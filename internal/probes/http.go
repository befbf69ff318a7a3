package probes

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ferret/internal/ports"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// HTTPProber confirms liveness by fetching the host root, HTTPS first with
// an HTTP fallback. Unreachable hosts come back Alive=false, not as errors.
type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{Client: newHTTPClient(timeout)}
}

func (p *HTTPProber) Name() string { return "http_probe" }

func (p *HTTPProber) Probe(ctx context.Context, host string) (ports.HostProbe, error) {
	resp, u, err := fetch(ctx, p.Client, host, "/")
	if err != nil {
		return ports.HostProbe{Host: host}, err
	}
	if resp == nil {
		return ports.HostProbe{Host: host}, nil
	}
	resp.Body.Close()
	return ports.HostProbe{
		Host:       host,
		Alive:      true,
		Scheme:     u.Scheme,
		StatusCode: resp.StatusCode,
		Server:     resp.Header.Get("Server"),
	}, nil
}

// wellKnownPaths are checked on every live host in addition to homepage
// links.
var wellKnownPaths = []string{"/robots.txt", "/sitemap.xml", "/.well-known/security.txt"}

// LinkEnumerator lists endpoints by extracting same-host links from the
// homepage and checking a few well-known paths.
type LinkEnumerator struct {
	Client   *http.Client
	MaxLinks int
}

func NewLinkEnumerator(timeout time.Duration) *LinkEnumerator {
	return &LinkEnumerator{Client: newHTTPClient(timeout), MaxLinks: 25}
}

func (e *LinkEnumerator) Name() string { return "link_enumeration" }

func (e *LinkEnumerator) Enumerate(ctx context.Context, host string) ([]ports.CrawledURL, error) {
	var out []ports.CrawledURL

	resp, base, err := fetch(ctx, e.Client, host, "/")
	if err != nil {
		return nil, err
	}
	if resp != nil {
		doc, perr := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if perr == nil {
			out = append(out, e.extractLinks(doc, base, resp.StatusCode)...)
		}
	}

	for _, path := range wellKnownPaths {
		resp, u, err := fetch(ctx, e.Client, host, path)
		if err != nil {
			return out, err
		}
		if resp == nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 400 {
			out = append(out, ports.CrawledURL{URL: u.String(), Host: host, StatusCode: resp.StatusCode})
		}
	}
	return out, nil
}

// fetch gets path on host, HTTPS first with an HTTP fallback. An unreachable
// host yields (nil, nil, nil); errors are reserved for cancellation.
func fetch(ctx context.Context, client *http.Client, host, path string) (*http.Response, *url.URL, error) {
	for _, scheme := range []string{"https", "http"} {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		u := &url.URL{Scheme: scheme, Host: host, Path: path}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		return resp, u, nil
	}
	return nil, nil, nil
}

func (e *LinkEnumerator) extractLinks(doc *goquery.Document, base *url.URL, status int) []ports.CrawledURL {
	var links []ports.CrawledURL
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Hostname() != base.Hostname() || (abs.Scheme != "http" && abs.Scheme != "https") {
			return true
		}
		abs.Fragment = ""
		links = append(links, ports.CrawledURL{URL: abs.String(), Host: base.Host, StatusCode: status})
		return len(links) < e.MaxLinks
	})
	return links
}
