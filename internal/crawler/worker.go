package crawler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/progress"
	"github.com/scrapeworks/wormy/internal/urlutil"
)

// worker drains the frontier until it is empty, the page cap is reached, or
// the context is canceled. Each worker lazily owns at most one renderer
// handle and recycles it when the browser becomes unusable.
type worker struct {
	id       int
	engine   *Engine
	renderer Renderer
	logger   *zap.Logger
}

func (e *Engine) newWorker(id int) *worker {
	return &worker{
		id:     id,
		engine: e,
		logger: e.deps.Logger.With(zap.Int("worker", id)),
	}
}

func (w *worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if w.engine.recordCount() >= w.engine.cfg.MaxPages {
			w.logger.Debug("page cap reached, worker exiting")
			return
		}
		job, ok := w.engine.frontier.Next()
		if !ok {
			return
		}
		w.process(ctx, job)
	}
}

func (w *worker) process(ctx context.Context, job Job) {
	e := w.engine

	if skip, reason := w.shouldSkip(ctx, job); skip {
		w.logger.Debug("skipping url", zap.String("url", job.URL), zap.String("reason", reason))
		e.frontier.MarkVisited(job.URL)
		e.emit(progress.Event{
			Stage: progress.StagePageSkipped,
			Site:  urlutil.Domain(job.URL),
			URL:   job.URL,
			Depth: job.Depth,
			Note:  reason,
		})
		return
	}

	if e.deps.Limiter != nil {
		if err := e.deps.Limiter.Wait(ctx, urlutil.Domain(job.URL)); err != nil {
			e.frontier.ReturnToPool(job)
			return
		}
	}

	w.ensureRenderer(ctx)

	start := time.Now()
	page, err := e.deps.Pipeline.Fetch(ctx, job, w.renderer, e.cfg.Force)
	if err != nil {
		w.handleFetchError(ctx, job, err)
		return
	}

	record, rawLinks := w.buildRecord(job, page)
	admitted := e.addRecord(record)
	e.frontier.MarkVisited(job.URL)
	if page.FinalURL != "" && page.FinalURL != job.URL {
		e.frontier.MarkVisited(page.FinalURL)
	}
	if !admitted {
		return
	}

	if job.Depth < e.cfg.MaxDepth {
		// enqueue the raw forms; the suspicious-URL gate inspects query
		// strings that normalization strips
		e.frontier.AddBulk(rawLinks, job.Depth+1)
	}

	if page.Rendered && e.cfg.Force != ForceRendered {
		e.emit(progress.Event{
			Stage: progress.StageRenderEscalated,
			Site:  urlutil.Domain(job.URL),
			URL:   job.URL,
			Depth: job.Depth,
		})
	}
	e.emit(progress.Event{
		Stage:       progress.StagePageFetched,
		Site:        urlutil.Domain(job.URL),
		URL:         job.URL,
		Depth:       job.Depth,
		Bytes:       int64(len(page.Body)),
		StatusClass: progress.ClassifyStatus(page.StatusCode),
		Rendered:    page.Rendered,
		Dur:         time.Since(start),
	})
}

// shouldSkip applies the pre-fetch gate: URLs whose raw query carries known
// media-gallery parameters get a HEAD probe, and confirmed binaries are
// dropped without a record. A failed probe is not a confirmation, so the
// URL proceeds to a normal fetch.
func (w *worker) shouldSkip(ctx context.Context, job Job) (bool, string) {
	raw := job.Raw
	if raw == "" {
		raw = job.URL
	}
	if !urlutil.IsSuspicious(raw) {
		return false, ""
	}
	if w.engine.deps.Prober == nil {
		return false, ""
	}
	contentType, err := w.engine.deps.Prober.ContentType(ctx, job.URL)
	if err != nil {
		w.logger.Debug("head probe failed, fetching anyway",
			zap.String("url", job.URL),
			zap.Error(err))
		return false, ""
	}
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/pdf") {
		return false, ""
	}
	return true, fmt.Sprintf("suspicious url confirmed non-document: %s", contentType)
}

func (w *worker) ensureRenderer(ctx context.Context) {
	e := w.engine
	if w.renderer != nil || e.deps.RendererFactory == nil {
		return
	}
	renderer, err := e.deps.RendererFactory(ctx)
	if err != nil {
		w.logger.Warn("renderer unavailable, continuing static-only", zap.Error(err))
		return
	}
	w.renderer = renderer
}

func (w *worker) closeRenderer() {
	if w.renderer == nil {
		return
	}
	if err := w.renderer.Close(); err != nil {
		w.logger.Warn("renderer close failed", zap.Error(err))
	}
	w.renderer = nil
}

func (w *worker) handleFetchError(ctx context.Context, job Job, err error) {
	e := w.engine
	switch ErrorKind(err) {
	case KindRenderer:
		w.logger.Warn("renderer failed, recycling handle",
			zap.String("url", job.URL),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		w.closeRenderer()
		job.Attempts++
		if job.Attempts <= e.cfg.RendererRecycleLimit {
			e.frontier.ReturnToPool(job)
			return
		}
		w.recordFailure(job, err)
	case KindTransient:
		// only surfaces on context cancellation; the job goes back so a
		// resumed crawl would pick it up
		e.frontier.ReturnToPool(job)
	default:
		w.recordFailure(job, err)
	}
}

// recordFailure writes the terminal failure record. The URL is marked
// visited so it is never retried within this crawl.
func (w *worker) recordFailure(job Job, err error) {
	e := w.engine
	w.logger.Warn("page failed", zap.String("url", job.URL), zap.Error(err))
	e.addRecord(PageRecord{
		URL: job.URL,
		Metadata: map[string]any{
			"url":   job.URL,
			"error": err.Error(),
		},
		Text:      fmt.Sprintf("failed to fetch: %v", err),
		Failed:    true,
		FetchedAt: time.Now().UTC(),
	})
	e.frontier.MarkVisited(job.URL)
	e.emit(progress.Event{
		Stage: progress.StagePageFailed,
		Site:  urlutil.Domain(job.URL),
		URL:   job.URL,
		Depth: job.Depth,
		Note:  err.Error(),
	})
}

func (w *worker) buildRecord(job Job, page Page) (PageRecord, []string) {
	e := w.engine
	ct := strings.ToLower(page.ContentType)

	record := PageRecord{
		URL:       job.URL,
		Rendered:  page.Rendered,
		FetchedAt: time.Now().UTC(),
	}
	var rawLinks []string

	switch {
	case strings.Contains(ct, "text/html"):
		record.Metadata = e.deps.HTML.Metadata(page.Body, job.URL, page.ContentType)
		text, err := e.deps.HTML.Text(page.Body)
		if err != nil {
			w.logger.Warn("text extraction failed", zap.String("url", job.URL), zap.Error(err))
		}
		record.Text = text
		links := page.Links
		if !page.Rendered || len(links) == 0 {
			links = e.deps.HTML.Links(page.Body, job.URL)
		}
		record.DiscoveredURLs, rawLinks = e.sameSiteLinks(links)
	case strings.Contains(ct, "application/pdf") || urlutil.IsPDF(job.URL):
		record.Metadata = w.pdfMetadata(job, page)
		if e.deps.PDF != nil {
			text, err := e.deps.PDF.Text(page.Body)
			if err != nil {
				w.logger.Warn("pdf extraction failed", zap.String("url", job.URL), zap.Error(err))
			}
			record.Text = text
		}
	default:
		record.Metadata = map[string]any{
			"url":          job.URL,
			"content_type": page.ContentType,
		}
		record.Text = fmt.Sprintf("unsupported content type: %s", page.ContentType)
	}
	return record, rawLinks
}

func (w *worker) pdfMetadata(job Job, page Page) map[string]any {
	meta := map[string]any{
		"url":          job.URL,
		"content_type": page.ContentType,
	}
	if w.engine.deps.PDF == nil {
		return meta
	}
	for k, v := range w.engine.deps.PDF.Metadata(page.Body) {
		meta[k] = v
	}
	return meta
}

// sameSiteLinks keeps the deduplicated same-site subset of discovered links.
// It returns the normalized forms sorted for the page record, plus the raw
// forms for frontier admission. Foreign hosts and media files never appear
// in either.
func (e *Engine) sameSiteLinks(links []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(links))
	normalized := make([]string, 0, len(links))
	raw := make([]string, 0, len(links))
	for _, link := range links {
		norm, err := urlutil.Normalize(link)
		if err != nil {
			continue
		}
		if !urlutil.SameSite(norm, e.baseURL) {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		normalized = append(normalized, norm)
		raw = append(raw, link)
	}
	sort.Strings(normalized)
	return normalized, raw
}
