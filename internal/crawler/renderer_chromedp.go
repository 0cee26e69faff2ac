package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RendererConfig controls the headless browser.
type RendererConfig struct {
	UserAgent   string
	NavTimeout  time.Duration
	MaxScrolls  int
	ScrollPause time.Duration
	DomainQPS   float64
}

// ChromedpRenderer renders pages in headless Chrome. Each renderer owns one
// browser process; workers hold their own handle and recycle it when the
// browser wedges, so no synchronization is needed around Render beyond the
// per-domain limiter.
type ChromedpRenderer struct {
	cfg             RendererConfig
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	domainLimiters  sync.Map
	logger          *zap.Logger
}

// NewChromedpRenderer starts a headless browser and warms it up. The
// returned renderer must be closed to reap the browser process.
func NewChromedpRenderer(cfg RendererConfig, logger *zap.Logger) (*ChromedpRenderer, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpRenderer{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *ChromedpRenderer) Close() error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Render navigates to the URL, scrolls to the bottom so lazy-loaded content
// attaches, and returns the rendered DOM along with links harvested from it.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string) (Page, error) {
	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return Page{}, fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	r.recordResponse(tabCtx, meta)

	var (
		html        string
		finalURL    string
		contentType string
		links       []string
	)
	tasks := chromedp.Tasks{
		network.Enable(),
		r.userAgentAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		r.scrollToBottom(),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(`document.contentType || ""`, &contentType),
		chromedp.Evaluate(`Array.from(document.querySelectorAll("a[href]")).map(a => a.href)`, &links),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Page{}, fmt.Errorf("chromedp run: %w", err)
	}

	if contentType == "" {
		contentType = meta.headers.Get("Content-Type")
	}
	status := meta.statusCode
	if status == 0 {
		status = http.StatusOK
	}

	return Page{
		URL:         rawURL,
		FinalURL:    meta.finalURL(finalURL, rawURL),
		StatusCode:  status,
		ContentType: contentType,
		Headers:     meta.headers,
		Body:        []byte(html),
		Links:       links,
		Rendered:    true,
	}, nil
}

func (r *ChromedpRenderer) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if r.cfg.UserAgent == "" {
			return nil
		}
		return emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx)
	})
}

// scrollToBottom repeatedly scrolls the window until the document height
// stops growing or the scroll budget is spent.
func (r *ChromedpRenderer) scrollToBottom() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		maxScrolls := r.cfg.MaxScrolls
		if maxScrolls <= 0 {
			return nil
		}
		pause := r.cfg.ScrollPause
		if pause <= 0 {
			pause = time.Second
		}

		var lastHeight int64
		if err := chromedp.Evaluate(`document.body.scrollHeight`, &lastHeight).Do(ctx); err != nil {
			return fmt.Errorf("read scroll height: %w", err)
		}
		for i := 0; i < maxScrolls; i++ {
			if err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil).Do(ctx); err != nil {
				return fmt.Errorf("scroll: %w", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
			var height int64
			if err := chromedp.Evaluate(`document.body.scrollHeight`, &height).Do(ctx); err != nil {
				return fmt.Errorf("read scroll height: %w", err)
			}
			if height == lastHeight {
				return nil
			}
			lastHeight = height
		}
		return nil
	})
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	headers    http.Header
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: make(http.Header),
	}
}

func (m *responseMeta) finalURL(candidates ...string) string {
	if m.url != "" {
		return m.url
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func (r *ChromedpRenderer) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
			for k, v := range resp.Response.Headers {
				meta.headers.Add(k, fmt.Sprint(v))
			}
		})
	})
}

func (r *ChromedpRenderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
