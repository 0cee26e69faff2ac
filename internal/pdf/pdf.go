// Package pdf extracts plain text and document metadata from PDF content.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Extractor pulls text and the embedded info dictionary out of PDF bytes.
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

// Text extracts the text of every page, joined with newline separators.
// Pages that fail to decode are skipped; the document failing to open is an
// error for the caller to record.
func (e *Extractor) Text(data []byte) (text string, err error) {
	// The underlying parser panics on malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("skipping undecodable pdf page", zap.Int("page", i), zap.Error(err))
			continue
		}
		pages = append(pages, content)
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// Metadata returns the document's info dictionary (Title, Author, and so
// on) as a string map. A document without one yields an empty map.
func (e *Extractor) Metadata(data []byte) (meta map[string]any) {
	meta = map[string]any{}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("pdf metadata read failed", zap.Any("cause", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Warn("open pdf for metadata", zap.Error(err))
		return meta
	}
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	for _, key := range info.Keys() {
		value := info.Key(key)
		switch value.Kind() {
		case pdf.String:
			meta[key] = value.RawString()
		case pdf.Name:
			meta[key] = value.Name()
		case pdf.Integer:
			meta[key] = value.Int64()
		case pdf.Real:
			meta[key] = value.Float64()
		case pdf.Bool:
			meta[key] = value.Bool()
		default:
			meta[key] = value.String()
		}
	}
	return meta
}
