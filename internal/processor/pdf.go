package processor

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/papertrove/papertrove/pkg/models"
)

// PDFProcessor extracts one unit per page from the embedded text layer.
// Image-only pages yield empty text; their count is recorded in the
// technical metadata so clients can see what was not indexed.
type PDFProcessor struct{}

var _ Processor = (*PDFProcessor)(nil)

// NewPDFProcessor creates a PDF processor.
func NewPDFProcessor() *PDFProcessor {
	return &PDFProcessor{}
}

// FileType returns the processed file type.
func (p *PDFProcessor) FileType() models.FileType { return models.FileTypePDF }

// SupportedTypes returns the handled MIME types.
func (p *PDFProcessor) SupportedTypes() []string {
	return []string{"application/pdf"}
}

// SupportedExtensions returns the handled extensions.
func (p *PDFProcessor) SupportedExtensions() []string {
	return []string{"pdf"}
}

// Process extracts page texts and document-level technical metadata.
func (p *PDFProcessor) Process(ctx context.Context, data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w: %v", models.ErrProcessor, err)
	}

	numPages := reader.NumPage()
	result := &Result{
		Technical: map[string]string{
			"pages": strconv.Itoa(numPages),
		},
	}

	var raw strings.Builder
	emptyPages := 0
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page should not sink the document.
			text = ""
		}
		text = strings.TrimSpace(text)
		if text == "" {
			emptyPages++
		}

		result.Units = append(result.Units, Unit{
			Key:  i,
			Kind: UnitPage,
			Text: text,
		})
		if text != "" {
			if raw.Len() > 0 {
				raw.WriteString("\n\n")
			}
			raw.WriteString(text)
		}
	}

	if emptyPages > 0 {
		result.Technical["pages_without_text_layer"] = strconv.Itoa(emptyPages)
	}

	result.RawText = raw.String()
	return result, nil
}
