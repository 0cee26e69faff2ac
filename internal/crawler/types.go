package crawler

import (
	"net/http"
	"time"
)

// Page is the raw result of one acquisition, static or rendered.
type Page struct {
	// URL is the URL that was requested.
	URL string
	// FinalURL reflects redirects, when known.
	FinalURL string
	// StatusCode is the HTTP status of the document response.
	StatusCode int
	// ContentType is the declared content type.
	ContentType string
	// Headers holds the document response headers.
	Headers http.Header
	// Body is the raw content.
	Body []byte
	// Links holds hyperlinks harvested from the live DOM. Only rendered
	// acquisition fills this; the static path discovers links by parsing
	// Body afterward.
	Links []string
	// Rendered marks pages acquired through the rendering backend.
	Rendered bool
}

// PageRecord is the immutable per-URL result. Exactly one record exists per
// normalized URL, created when its fetch attempt concludes, successfully or
// not.
type PageRecord struct {
	// URL is the normalized URL the record is keyed by.
	URL string `json:"url"`
	// Metadata holds title, meta tags, Open Graph pairs, structured data,
	// or the PDF info dictionary.
	Metadata map[string]any `json:"metadata"`
	// Text is the extracted visible text, or an error description when the
	// fetch failed terminally.
	Text string `json:"content"`
	// DiscoveredURLs lists the same-site links found on the page, sorted.
	DiscoveredURLs []string `json:"discovered_urls"`
	// Failed marks records written for terminal failures.
	Failed bool `json:"failed,omitempty"`
	// Rendered marks records whose content came from the rendering backend.
	Rendered bool `json:"rendered,omitempty"`
	// FetchedAt is when the fetch attempt concluded.
	FetchedAt time.Time `json:"fetched_at"`
}

// Job is the ephemeral unit of work a worker pulls from the frontier.
type Job struct {
	// URL is the normalized form, the frontier's identity for the page.
	URL string
	// Raw preserves the originally discovered URL. The suspicious-URL
	// check needs it: normalization drops the query string it inspects.
	Raw string
	// Depth is the link distance from the seed.
	Depth int
	// Attempts counts pool reinsertions after renderer failures.
	Attempts int
}

// ForceMode pins the acquisition method regardless of the dynamic-content
// heuristic.
type ForceMode string

// Supported acquisition modes.
const (
	// ForceNone lets the heuristic decide per page.
	ForceNone ForceMode = ""
	// ForceStatic never escalates to the rendering backend.
	ForceStatic ForceMode = "static"
	// ForceRendered always uses the rendering backend.
	ForceRendered ForceMode = "rendered"
)
