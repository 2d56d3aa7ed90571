package processor

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/papertrove/papertrove/pkg/models"
)

// TextProcessor handles plaintext and markdown files as a single unit.
type TextProcessor struct{}

var _ Processor = (*TextProcessor)(nil)

// NewTextProcessor creates a text processor.
func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

// FileType returns the processed file type.
func (p *TextProcessor) FileType() models.FileType { return models.FileTypeText }

// SupportedTypes returns the handled MIME types.
func (p *TextProcessor) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown"}
}

// SupportedExtensions returns the handled extensions.
func (p *TextProcessor) SupportedExtensions() []string {
	return []string{"txt", "md", "markdown", "log"}
}

// Process returns the whole file as one unit.
func (p *TextProcessor) Process(ctx context.Context, data []byte) (*Result, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.TrimSpace(text)

	return &Result{
		RawText: text,
		Units:   []Unit{{Key: 0, Kind: UnitBlock, Text: text}},
		Technical: map[string]string{
			"characters": strconv.Itoa(len(text)),
		},
	}, nil
}

// SnippetProcessor handles user-authored snippets: title and body as a
// single unit. Snippets have no backing file; the coordinator passes
// the combined text as bytes.
type SnippetProcessor struct{}

var _ Processor = (*SnippetProcessor)(nil)

// NewSnippetProcessor creates a snippet processor.
func NewSnippetProcessor() *SnippetProcessor {
	return &SnippetProcessor{}
}

// FileType returns the processed file type.
func (p *SnippetProcessor) FileType() models.FileType { return models.FileTypeSnippet }

// SupportedTypes returns the handled MIME types.
func (p *SnippetProcessor) SupportedTypes() []string {
	return []string{"application/x-snippet"}
}

// SupportedExtensions returns the handled extensions.
func (p *SnippetProcessor) SupportedExtensions() []string {
	return nil
}

// Process returns the snippet text as one unit.
func (p *SnippetProcessor) Process(ctx context.Context, data []byte) (*Result, error) {
	text := strings.TrimSpace(string(data))
	return &Result{
		RawText: text,
		Units:   []Unit{{Key: 0, Kind: UnitBlock, Text: text}},
		Technical: map[string]string{
			"characters": strconv.Itoa(len(text)),
		},
	}, nil
}
