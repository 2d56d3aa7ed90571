// Package processor provides per-format file processors for the
// ingestion pipeline. Each processor extracts raw text, per-unit texts
// (pages, rows, blocks), and technical metadata from uploaded bytes.
package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/papertrove/papertrove/pkg/models"
)

// UnitKind labels the granularity of a processed unit.
type UnitKind string

const (
	// UnitPage is one PDF page (1-based key).
	UnitPage UnitKind = "page"
	// UnitRow is one CSV row (0-based key).
	UnitRow UnitKind = "row"
	// UnitBlock is a monotonic block for formats without inner structure.
	UnitBlock UnitKind = "block"
)

// Unit is one extracted text unit.
type Unit struct {
	// Key is the page number, row index, or monotonic block index.
	Key int

	// Kind labels what Key means.
	Kind UnitKind

	// Text is the extracted unit text.
	Text string

	// OCRText is OCR output for image units, if any.
	OCRText string

	// ImageDescription is a model-generated description for image units.
	ImageDescription string
}

// Result is the output of processing one upload.
type Result struct {
	// RawText is the concatenated extracted text.
	RawText string

	// Units are the per-page/per-row texts in document order.
	Units []Unit

	// Technical holds processor-derived metadata (page counts, OCR
	// notes, column names). Never merged into the user summary.
	Technical map[string]string
}

// Processor extracts text from one file format.
type Processor interface {
	// Process extracts text and technical metadata from raw bytes.
	Process(ctx context.Context, data []byte) (*Result, error)

	// FileType classifies resources handled by this processor.
	FileType() models.FileType

	// SupportedTypes returns the MIME types this processor handles.
	SupportedTypes() []string

	// SupportedExtensions returns the file extensions this processor handles.
	SupportedExtensions() []string
}

// Registry maps MIME types and extensions to processors.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Processor
	byExt  map[string]Processor
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]Processor),
		byExt:  make(map[string]Processor),
	}
}

// Register adds a processor for all its supported types and extensions.
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mimeType := range p.SupportedTypes() {
		r.byType[strings.ToLower(mimeType)] = p
	}
	for _, ext := range p.SupportedExtensions() {
		r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = p
	}
}

// Get returns the processor for the given content type and extension.
// Content type wins; extension is the fallback. An unknown format
// yields models.ErrUnsupportedFormat.
func (r *Registry) Get(contentType, ext string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if contentType != "" {
		if idx := strings.Index(contentType, ";"); idx != -1 {
			contentType = strings.TrimSpace(contentType[:idx])
		}
		if p, ok := r.byType[strings.ToLower(contentType)]; ok {
			return p, nil
		}
	}

	if ext != "" {
		if p, ok := r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
			return p, nil
		}
	}

	return nil, fmt.Errorf("no processor for content type %q, extension %q: %w",
		contentType, ext, models.ErrUnsupportedFormat)
}
