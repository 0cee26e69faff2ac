// Package sitemap implements the optional seed bootstrap: it reads a site's
// sitemap.xml (following one level of sitemap-index nesting) and returns the
// same-site page URLs it lists. Every failure degrades to an empty result;
// a missing or broken sitemap never stops a crawl.
package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/urlutil"
)

// Fetcher downloads and parses sitemaps.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// New builds a Fetcher with its own short-timeout HTTP client.
func New(timeout time.Duration, userAgent string, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// DiscoverSeedURLs fetches <base>/sitemap.xml and returns the sorted set of
// same-site URLs it (or the sitemaps it indexes) lists.
func (f *Fetcher) DiscoverSeedURLs(ctx context.Context, baseURL string) []string {
	seen := make(map[string]struct{})
	f.collect(ctx, strings.TrimRight(baseURL, "/")+"/sitemap.xml", baseURL, seen, true)

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// collect fetches one sitemap document and accumulates its page URLs,
// descending into child sitemaps only from the top level.
func (f *Fetcher) collect(ctx context.Context, sitemapURL, baseURL string, seen map[string]struct{}, followIndex bool) {
	doc, err := f.fetch(ctx, sitemapURL)
	if err != nil {
		f.logger.Warn("sitemap unavailable", zap.String("url", sitemapURL), zap.Error(err))
		return
	}

	for _, node := range xmlquery.Find(doc, "//url/loc") {
		loc := strings.TrimSpace(node.InnerText())
		if loc == "" || !urlutil.SameSite(loc, baseURL) {
			continue
		}
		seen[loc] = struct{}{}
	}

	if !followIndex {
		return
	}
	for _, node := range xmlquery.Find(doc, "//sitemap/loc") {
		loc := strings.TrimSpace(node.InnerText())
		if loc == "" {
			continue
		}
		f.collect(ctx, loc, baseURL, seen, false)
	}
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*xmlquery.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap: status %d", resp.StatusCode)
	}
	doc, err := xmlquery.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	return doc, nil
}
