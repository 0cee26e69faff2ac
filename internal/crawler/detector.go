package crawler

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProvider is the slice of the HTML extractor the detector needs.
type TextProvider interface {
	Text(html []byte) (string, error)
}

// HeuristicDetector decides whether a statically fetched page is worth a
// second pass through the headless browser. Pages whose visible text is
// shorter than minTextChars are assumed to be client-side rendered shells.
type HeuristicDetector struct {
	extractor    TextProvider
	minTextChars int
	logger       *zap.Logger
}

func NewHeuristicDetector(extractor TextProvider, minTextChars int, logger *zap.Logger) *HeuristicDetector {
	return &HeuristicDetector{
		extractor:    extractor,
		minTextChars: minTextChars,
		logger:       logger,
	}
}

// NeedsRender reports whether the page should be escalated to the renderer.
// Non-HTML responses are never escalated. An unparsable body counts as
// needing a render, since the browser may still recover a usable DOM.
func (d *HeuristicDetector) NeedsRender(_ context.Context, page Page) bool {
	if !strings.Contains(strings.ToLower(page.ContentType), "text/html") {
		return false
	}
	text, err := d.extractor.Text(page.Body)
	if err != nil {
		d.logger.Debug("static body unparsable, escalating to renderer",
			zap.String("url", page.URL),
			zap.Error(err))
		return true
	}
	// the threshold is in characters, so count runes rather than bytes
	if chars := utf8.RuneCountInString(text); chars < d.minTextChars {
		d.logger.Debug("sparse static text, escalating to renderer",
			zap.String("url", page.URL),
			zap.Int("text_chars", chars),
			zap.Int("threshold", d.minTextChars))
		return true
	}
	return false
}
