package crawler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/progress"
	"github.com/scrapeworks/wormy/internal/urlutil"
)

// EngineConfig controls a single crawl run.
type EngineConfig struct {
	// BaseURL is the seed; crawling never leaves its site.
	BaseURL string
	// SeedURLs are extra starting points, typically from the sitemap.
	SeedURLs []string
	// Concurrency is the worker pool size.
	Concurrency int
	// MaxDepth is the link distance beyond which discoveries are dropped.
	MaxDepth int
	// MaxPages caps the number of page records produced.
	MaxPages int
	// Force pins the acquisition method for every page.
	Force ForceMode
	// RendererRecycleLimit bounds how often one URL may trigger a browser
	// recycle before it is written off as failed.
	RendererRecycleLimit int
}

// EngineDeps carries the engine's collaborators.
type EngineDeps struct {
	Pipeline        *Pipeline
	Prober          HeadProber
	Limiter         DomainLimiter
	RendererFactory RendererFactory
	HTML            HTMLExtractor
	PDF             PDFExtractor
	Emitter         progress.Emitter
	Logger          *zap.Logger
}

// Engine owns one crawl: the frontier, the worker pool, and the record set.
// Run may be called once per Engine.
type Engine struct {
	cfg      EngineConfig
	deps     EngineDeps
	baseURL  string
	frontier *Frontier
	crawlID  [16]byte

	mu      sync.Mutex
	records map[string]PageRecord
}

// NewEngine validates the configuration and prepares a crawl rooted at the
// normalized base URL.
func NewEngine(cfg EngineConfig, deps EngineDeps) (*Engine, error) {
	base, err := urlutil.Normalize(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("normalize base url: %w", err)
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if deps.HTML == nil {
		return nil, fmt.Errorf("html extractor is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 6
	}
	if cfg.MaxDepth < 0 {
		// depth 0 is single-page mode, so only clamp negatives
		cfg.MaxDepth = 0
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	if cfg.RendererRecycleLimit <= 0 {
		cfg.RendererRecycleLimit = 2
	}
	return &Engine{
		cfg:      cfg,
		deps:     deps,
		baseURL:  base,
		frontier: NewFrontier(base),
		crawlID:  progress.UUIDToBytes(uuid.New()),
		records:  make(map[string]PageRecord),
	}, nil
}

// Run crawls from the seed and returns the page records sorted by URL. The
// seed is processed first on its own so the pool always starts with a primed
// frontier; otherwise all but one worker would find it empty and exit.
func (e *Engine) Run(ctx context.Context) ([]PageRecord, error) {
	start := time.Now()
	e.emit(progress.Event{
		Stage: progress.StageCrawlStart,
		Site:  urlutil.Domain(e.baseURL),
	})

	e.frontier.Add(e.cfg.BaseURL, 0)

	seed := e.newWorker(0)
	if job, ok := e.frontier.Next(); ok {
		seed.process(ctx, job)
	}
	seed.closeRenderer()

	// sitemap seeds only enter the pool in discovery mode; at depth 0 the
	// crawl is exactly the seed page and the sitemap is report-only
	if e.cfg.MaxDepth > 0 {
		e.frontier.AddBulk(e.cfg.SeedURLs, 1)
	}

	var wg sync.WaitGroup
	for i := 1; i <= e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := e.newWorker(id)
			defer w.closeRenderer()
			w.run(ctx)
		}(i)
	}
	wg.Wait()

	e.emit(progress.Event{
		Stage: progress.StageCrawlDone,
		Site:  urlutil.Domain(e.baseURL),
		Dur:   time.Since(start),
	})

	records := e.sortedRecords()
	if ctx.Err() != nil {
		return records, fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	return records, nil
}

// BaseURL returns the normalized seed URL.
func (e *Engine) BaseURL() string {
	return e.baseURL
}

// addRecord admits a record unless the URL was already recorded or the page
// cap is full. The cap check lives under the lock so concurrent workers can
// never push the record count past MaxPages.
func (e *Engine) addRecord(rec PageRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.records[rec.URL]; ok {
		return false
	}
	if len(e.records) >= e.cfg.MaxPages {
		return false
	}
	e.records[rec.URL] = rec
	return true
}

func (e *Engine) recordCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

func (e *Engine) sortedRecords() []PageRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PageRecord, 0, len(e.records))
	for _, rec := range e.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func (e *Engine) emit(evt progress.Event) {
	if e.deps.Emitter == nil {
		return
	}
	evt.CrawlID = e.crawlID
	evt.TS = time.Now().UTC()
	e.deps.Emitter.Emit(evt)
}
