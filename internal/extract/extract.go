// Package extract turns fetched HTML into the pieces a page record needs:
// visible text, a metadata map, and the set of discovered links.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/scrapeworks/wormy/internal/urlutil"
)

// strippedSelectors are removed wholesale before text extraction; they hold
// chrome, not content.
const strippedSelectors = "script,style,nav,header,footer,aside"

// Extractor parses HTML content. Parse and metadata problems degrade the
// output, they never abort a crawl.
type Extractor struct {
	logger *zap.Logger
}

// New builds an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Text extracts the visible text of an HTML document: scripts, styles,
// navigation chrome, and hidden elements are dropped, remaining text nodes
// are joined with single newlines, and blank lines collapse away.
func (e *Extractor) Text(htmlContent []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		return "", err
	}
	doc.Find(strippedSelectors).Remove()
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if strings.Contains(strings.ReplaceAll(strings.ToLower(style), " ", ""), "display:none") {
			s.Remove()
		}
	})
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), "hidden") {
			s.Remove()
		}
	})

	var lines []string
	doc.Selection.Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			collectText(node, &lines)
		}
	})
	return strings.Join(lines, "\n"), nil
}

// collectText walks the node tree appending each non-blank text node.
func collectText(node *html.Node, lines *[]string) {
	if node.Type == html.TextNode {
		if text := strings.TrimSpace(node.Data); text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, lines)
	}
}

// Metadata reads the page title, every <meta name=...> and <meta
// property=...> pair (keys lowercased), and any application/ld+json
// structured-data blocks. Malformed JSON-LD is logged and skipped.
func (e *Extractor) Metadata(htmlContent []byte, pageURL, contentType string) map[string]any {
	meta := map[string]any{
		"url":          pageURL,
		"content_type": contentType,
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		e.logger.Warn("parse html for metadata", zap.String("url", pageURL), zap.Error(err))
		return meta
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if name, ok := s.Attr("name"); ok && name != "" {
			meta[strings.ToLower(name)] = content
		} else if property, ok := s.Attr("property"); ok && property != "" {
			meta[strings.ToLower(property)] = content
		}
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var schema any
		if err := json.Unmarshal([]byte(s.Text()), &schema); err != nil {
			e.logger.Warn("skipping malformed ld+json block",
				zap.String("url", pageURL), zap.Error(err))
			return
		}
		meta["schema_org"] = schema
	})

	return meta
}

// Links collects every anchor href, resolved to an absolute URL against the
// page. Malformed markup or hrefs yield a best-effort subset, never an
// error.
func (e *Extractor) Links(htmlContent []byte, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		e.logger.Warn("parse html for links", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		abs, err := urlutil.Resolve(pageURL, href)
		if err != nil {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}
