// Package output persists crawl results as JSON or CSV files under a
// per-crawl directory.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/crawler"
)

// CrawlResult is the serialized outcome of one crawl run.
type CrawlResult struct {
	BaseURL     string               `json:"base_url"`
	CrawledAt   time.Time            `json:"crawled_at"`
	SitemapURLs []string             `json:"sitemap_urls,omitempty"`
	Pages       []crawler.PageRecord `json:"pages"`
}

// Writer lays out result files as <dir>/<name>/<timestamp>.<ext>.
type Writer struct {
	dir    string
	logger *zap.Logger
	// now is swappable for deterministic file names in tests
	now func() time.Time
}

// New builds a Writer rooted at dir.
func New(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger, now: time.Now}
}

// Write persists the result in the requested format and returns the path of
// the file it created.
func (w *Writer) Write(format, name string, result CrawlResult) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return w.WriteJSON(name, result)
	case "csv":
		return w.WriteCSV(name, result)
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteJSON writes the full result, sitemap URLs included, as indented JSON.
func (w *Writer) WriteJSON(name string, result CrawlResult) (string, error) {
	path, err := w.preparePath(name, "json")
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crawl result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write json result: %w", err)
	}
	w.logger.Info("crawl result written",
		zap.String("path", path),
		zap.Int("pages", len(result.Pages)))
	return path, nil
}

// WriteCSV writes one row per page. Structured metadata is flattened to a
// JSON column so the format stays rectangular.
func (w *Writer) WriteCSV(name string, result CrawlResult) (string, error) {
	path, err := w.preparePath(name, "csv")
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv result: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{"url", "title", "content", "discovered_urls", "failed", "rendered", "fetched_at", "metadata"}
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, page := range result.Pages {
		meta, err := json.Marshal(page.Metadata)
		if err != nil {
			w.logger.Warn("metadata not serializable, writing empty",
				zap.String("url", page.URL),
				zap.Error(err))
			meta = []byte("{}")
		}
		row := []string{
			page.URL,
			metadataTitle(page.Metadata),
			page.Text,
			strings.Join(page.DiscoveredURLs, "|"),
			strconv.FormatBool(page.Failed),
			strconv.FormatBool(page.Rendered),
			page.FetchedAt.UTC().Format(time.RFC3339),
			string(meta),
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush csv result: %w", err)
	}
	w.logger.Info("crawl result written",
		zap.String("path", path),
		zap.Int("pages", len(result.Pages)))
	return path, nil
}

func (w *Writer) preparePath(name, ext string) (string, error) {
	dir := filepath.Join(w.dir, sanitizeName(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	stamp := w.now().UTC().Format("20060102-150405")
	return filepath.Join(dir, stamp+"."+ext), nil
}

// sanitizeName keeps crawl names filesystem-safe.
func sanitizeName(name string) string {
	if name == "" {
		return "crawl"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

func metadataTitle(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if title, ok := meta["title"].(string); ok {
		return title
	}
	return ""
}
