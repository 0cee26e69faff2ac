package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// FetcherConfig controls the static HTTP collector.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher implements Fetcher over a Colly collector. Every Fetch clones
// the base collector so callbacks never leak between requests, which keeps
// the fetcher safe for concurrent workers.
type CollyFetcher struct {
	cfg           FetcherConfig
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyFetcher builds a CollyFetcher with a pooled transport.
func NewCollyFetcher(cfg FetcherConfig, logger *zap.Logger) *CollyFetcher {
	// synchronous collection is the default; the colly.Async option cannot
	// be used to state it explicitly because colly v2.1.0's Async(...)
	// ignores its argument and always enables async mode
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true
	// the Frontier owns deduplication; colly must not keep its own visited
	// store or retried URLs would short-circuit with AlreadyVisitedError
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &CollyFetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single GET. On HTTP errors the returned Page still
// carries the status code so the caller can tell a 404 from a 503.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	var (
		page     Page
		fetchErr error
	)
	collector := f.newCollector()

	collector.OnRequest(func(r *colly.Request) {
		setBrowserHeaders(r)
	})
	collector.OnResponse(func(r *colly.Response) {
		page = Page{
			URL:         rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Headers:     r.Headers.Clone(),
			Body:        append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := f.runCollector(ctx, func() error { return collector.Visit(rawURL) }, &fetchErr); err != nil {
		return page, err
	}
	return page, nil
}

// ContentType issues a HEAD request and returns the Content-Type header.
// Used to probe suspicious URLs without downloading their bodies.
func (f *CollyFetcher) ContentType(ctx context.Context, rawURL string) (string, error) {
	var (
		contentType string
		fetchErr    error
	)
	collector := f.newCollector()

	collector.OnResponse(func(r *colly.Response) {
		contentType = r.Headers.Get("Content-Type")
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := f.runCollector(ctx, func() error { return collector.Head(rawURL) }, &fetchErr); err != nil {
		return "", err
	}
	return contentType, nil
}

func (f *CollyFetcher) newCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (f *CollyFetcher) runCollector(ctx context.Context, visit func() error, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- visit()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// setBrowserHeaders mimics an ordinary browser session. Accept-Encoding is
// left to the transport so response bodies arrive decompressed.
func setBrowserHeaders(r *colly.Request) {
	r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	r.Headers.Set("Connection", "keep-alive")
	r.Headers.Set("Upgrade-Insecure-Requests", "1")
	r.Headers.Set("Cache-Control", "max-age=0")
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
