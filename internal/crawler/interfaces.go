package crawler

import "context"

// Fetcher performs the static acquisition of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer is the external rendering backend: given a URL it eventually
// returns rendered HTML, a content type, and the hyperlinks present in the
// live DOM, or fails. A handle is owned by exactly one worker at a time.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
	Close() error
}

// RendererFactory builds a fresh Renderer. Each worker builds its handle
// when it starts processing jobs and again after discarding a broken one.
// A nil factory disables rendered acquisition.
type RendererFactory func(ctx context.Context) (Renderer, error)

// Detector decides whether a statically fetched page likely needs rendering
// to reveal its real content.
type Detector interface {
	NeedsRender(ctx context.Context, page Page) bool
}

// HeadProber answers cheap content-type questions without downloading the
// body; the suspicious-URL skip uses it to confirm binary media.
type HeadProber interface {
	ContentType(ctx context.Context, rawURL string) (string, error)
}

// DomainLimiter is the politeness gate consulted before every dispatch.
type DomainLimiter interface {
	Wait(ctx context.Context, domain string) error
}

// PDFExtractor turns PDF bytes into text and the embedded info dictionary.
type PDFExtractor interface {
	Text(data []byte) (string, error)
	Metadata(data []byte) map[string]any
}

// HTMLExtractor produces a page's visible text, metadata, and links.
type HTMLExtractor interface {
	Text(htmlContent []byte) (string, error)
	Metadata(htmlContent []byte, pageURL, contentType string) map[string]any
	Links(htmlContent []byte, pageURL string) []string
}
