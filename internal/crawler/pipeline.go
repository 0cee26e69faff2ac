package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PipelineConfig controls retry behavior for static fetches.
type PipelineConfig struct {
	// MaxAttempts is the total number of static fetch attempts per job.
	MaxAttempts int
	// InitialRetryDelay is doubled after every failed attempt.
	InitialRetryDelay time.Duration
}

// Pipeline runs the static-then-rendered fetch sequence for a single job.
// Static fetches are retried with exponential backoff; renderer failures are
// never retried here, they surface as renderer-kind errors so the worker can
// recycle its browser handle and requeue the job.
type Pipeline struct {
	cfg      PipelineConfig
	fetcher  Fetcher
	detector Detector
	logger   *zap.Logger
}

func NewPipeline(cfg PipelineConfig, fetcher Fetcher, detector Detector, logger *zap.Logger) *Pipeline {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialRetryDelay <= 0 {
		cfg.InitialRetryDelay = time.Second
	}
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		detector: detector,
		logger:   logger,
	}
}

// Fetch retrieves the page for a job. A nil renderer disables the rendered
// path entirely, including when force is ForceRendered.
func (p *Pipeline) Fetch(ctx context.Context, job Job, renderer Renderer, force ForceMode) (Page, error) {
	if force == ForceRendered {
		if renderer == nil {
			p.logger.Warn("rendered fetch forced but renderer disabled, falling back to static",
				zap.String("url", job.URL))
		} else {
			return p.render(ctx, job, renderer)
		}
	}

	page, err := p.fetchStatic(ctx, job)
	if err != nil {
		return page, err
	}

	if force != ForceStatic && renderer != nil && p.detector.NeedsRender(ctx, page) {
		return p.render(ctx, job, renderer)
	}
	return page, nil
}

func (p *Pipeline) fetchStatic(ctx context.Context, job Job) (Page, error) {
	var (
		page    Page
		lastErr error
	)
	delay := p.cfg.InitialRetryDelay
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			p.logger.Debug("retrying fetch",
				zap.String("url", job.URL),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if err := sleepCtx(ctx, delay); err != nil {
				return Page{}, &FetchError{Kind: KindTransient, URL: job.URL, Err: err}
			}
			delay *= 2
		}

		page, lastErr = p.fetcher.Fetch(ctx, job.URL)
		if lastErr == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return page, &FetchError{Kind: KindTransient, URL: job.URL, Err: lastErr}
		}
		if !isTransientStatus(page.StatusCode) {
			return page, &FetchError{Kind: KindTerminal, URL: job.URL, Err: lastErr}
		}
	}
	return page, &FetchError{
		Kind: KindTerminal,
		URL:  job.URL,
		Err:  fmt.Errorf("exhausted %d attempts: %w", p.cfg.MaxAttempts, lastErr),
	}
}

func (p *Pipeline) render(ctx context.Context, job Job, renderer Renderer) (Page, error) {
	page, err := renderer.Render(ctx, job.URL)
	if err != nil {
		return Page{}, &FetchError{Kind: KindRenderer, URL: job.URL, Err: err}
	}
	if !strings.Contains(strings.ToLower(page.ContentType), "text/html") && page.ContentType != "" {
		p.logger.Debug("rendered non-html document",
			zap.String("url", job.URL),
			zap.String("content_type", page.ContentType))
	}
	return page, nil
}

// isTransientStatus reports whether a failed fetch is worth retrying. A zero
// status means the request never completed (network error).
func isTransientStatus(status int) bool {
	return status == 0 ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
