// Package urlutil contains the pure URL policy used for crawl admission:
// canonical normalization, same-site checks, and the suspicious-URL
// heuristics that keep gallery links and media files out of the frontier.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// mediaExtensions lists file extensions that never hold crawlable content.
var mediaExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "svg": {},
	"mp3": {}, "mp4": {}, "wav": {}, "avi": {}, "mov": {},
}

// suspiciousParams are query parameters associated with image galleries and
// item viewers rather than pages worth crawling.
var suspiciousParams = []string{"itemId", "imageId", "galleryId"}

// Normalize produces the canonical form of a URL used for deduplication:
// the whole URL is lowercased, the scheme defaults to https, the trailing
// slash is stripped from the path, and the query and fragment are dropped.
// Dropping the query means /item?id=1 and /item?id=2 collapse to one entry;
// content is addressed by path.
func Normalize(rawURL string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(rawURL))
	if raw == "" {
		return "", fmt.Errorf("normalize: empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", rawURL, err)
	}
	if u.Host == "" {
		// Scheme-less input like "example.com/page" parses entirely into
		// the path; reparse with the default scheme so the host is found.
		u, err = url.Parse("https://" + strings.TrimPrefix(raw, "//"))
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("normalize %q: no host", rawURL)
		}
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "http" {
		scheme = "https"
	}
	path := strings.TrimRight(u.Path, "/")
	return scheme + "://" + u.Host + path, nil
}

// Domain extracts the host portion of a URL. It returns "" when the URL
// cannot be parsed.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SameSite reports whether a URL belongs to the same host as the base URL
// and is not an obvious media file. Only same-site URLs may enter the
// frontier.
func SameSite(rawURL, baseURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Host, base.Host) || u.Host == "" {
		return false
	}
	return !IsMediaExtension(u.Path)
}

// MatchesBase reports whether a URL lives under the base URL: same host and
// the base path as prefix. Seed admission uses this stricter rule.
func MatchesBase(rawURL, baseURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, base.Host) && strings.HasPrefix(u.Path, base.Path)
}

// IsMediaExtension reports whether the path ends in an image/audio/video
// file extension.
func IsMediaExtension(path string) bool {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return false
	}
	ext := strings.ToLower(path[idx+1:])
	_, ok := mediaExtensions[ext]
	return ok
}

// IsSuspicious reports whether a URL looks like non-content media: either
// its query carries gallery/item parameters or its path has a media
// extension. The check runs on the raw URL, before normalization discards
// the query string.
func IsSuspicious(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	query := u.Query()
	for _, param := range suspiciousParams {
		if query.Has(param) {
			return true
		}
	}
	return IsMediaExtension(u.Path)
}

// IsPDF reports whether a URL points at a PDF by path suffix. Content-type
// probing for suffix-less PDFs happens at fetch time.
func IsPDF(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// Resolve makes an absolute URL from a possibly relative href against the
// page it appeared on.
func Resolve(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("resolve base %q: %w", pageURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("resolve href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
