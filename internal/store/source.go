package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/careledger/claimsort/internal/model"
	"github.com/gabriel-vasile/mimetype"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// Document is an opaque handle to one source document
type Document struct {
	URL     string    // Full storage URL
	Name    string    // Document name
	Size    int64     // Size in bytes
	ModTime time.Time // Last modification time
}

// Source enumerates documents in the inbox location and extracts their
// raw text. The storage medium is abstract: plain paths, file://, s3://
// and anything else afs understands.
type Source struct {
	fs      afs.Service
	baseURL string
}

// NewSource creates a document source for the given location
func NewSource(baseURL string) *Source {
	return &Source{fs: afs.New(), baseURL: normalizeLocation(baseURL)}
}

// List enumerates the documents currently in the source location.
// Directories and claimsort's own artifacts are skipped.
func (s *Source) List(ctx context.Context) ([]Document, error) {
	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("list source %s: %w", s.baseURL, err)
	}

	var docs []Document
	for _, obj := range objects {
		if obj.IsDir() {
			continue
		}
		name := obj.Name()
		if name == model.MetaName || name == ReportName || strings.HasPrefix(name, ".") {
			continue
		}
		docs = append(docs, Document{
			URL:     obj.URL(),
			Name:    name,
			Size:    obj.Size(),
			ModTime: obj.ModTime(),
		})
	}

	return docs, nil
}

// Text extracts raw text from the document. Formats without a text layer
// (e.g. plain images, which would need OCR upstream) yield an empty
// string, not an error; the pipeline then skips the document as
// text-absent.
func (s *Source) Text(ctx context.Context, doc Document) (string, error) {
	data, err := s.fs.DownloadWithURL(ctx, doc.URL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", doc.URL, err)
	}
	if len(data) == 0 {
		return "", nil
	}

	kind := mimetype.Detect(data)
	switch {
	case kind.Is("application/pdf"):
		return string(extractPDFText(data)), nil
	case kind.Is("text/html"):
		return visibleHTMLText(string(data)), nil
	case strings.HasPrefix(kind.String(), "text/"):
		return string(data), nil
	default:
		// No text layer we can read directly
		return "", nil
	}
}

// Raw returns the document bytes (used by the extraction cache key)
func (s *Source) Raw(ctx context.Context, doc Document) ([]byte, error) {
	return s.fs.DownloadWithURL(ctx, doc.URL)
}

// BaseURL returns the normalized source location
func (s *Source) BaseURL() string {
	return s.baseURL
}

// normalizeLocation resolves relative paths and scheme-less absolute
// paths into proper storage URLs so afs treats them uniformly
func normalizeLocation(location string) string {
	norm := location
	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		if abs, err := filepath.Abs(norm); err == nil {
			norm = abs
		}
	}
	if url.Scheme(norm, "") == "" && !url.IsRelative(norm) {
		norm = url.ToFileURL(norm)
	}
	return norm
}
