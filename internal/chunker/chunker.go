// Package chunker splits processed documents into searchable chunks and
// builds each chunk's composite searchable text.
package chunker

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papertrove/papertrove/internal/processor"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Config contains chunking configuration.
type Config struct {
	// ChunkSize is the soft limit per chunk in characters. Units below
	// this become one chunk; larger ones are split into windows.
	// Default: 2400 (roughly 600 tokens).
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the window overlap in characters.
	// Default: 360 (15% of the default chunk size).
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// DefaultConfig returns the default chunker configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    2400,
		ChunkOverlap: 360,
	}
}

// Chunker emits chunks from processed units. CSV rows are atomic and
// never split; other units are windowed when they exceed the soft limit.
type Chunker struct {
	config Config
}

// New creates a chunker.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize * 15 / 100
	}
	return &Chunker{config: cfg}
}

// Chunk converts processed units into chunks for the given resource.
// Chunk offsets are relative to the concatenated extracted content.
func (c *Chunker) Chunk(res *models.Resource, units []processor.Unit) []*models.Chunk {
	var chunks []*models.Chunk
	now := time.Now()
	offset := 0

	for _, unit := range units {
		text := strings.TrimSpace(unit.Text)
		if text == "" && unit.OCRText == "" && unit.ImageDescription == "" {
			continue
		}

		windows := []window{{text: text, start: 0}}
		if unit.Kind != processor.UnitRow && len(text) > c.config.ChunkSize {
			windows = c.split(text)
		}

		for _, w := range windows {
			chunk := &models.Chunk{
				ID:         uuid.New().String(),
				ResourceID: res.ID,
				TenantID:   res.TenantID,
				Index:      len(chunks),
				CharStart:  offset + w.start,
				CharEnd:    offset + w.start + len(w.text),
				Text:       w.text,
				CreatedAt:  now,
			}

			switch unit.Kind {
			case processor.UnitPage:
				page := unit.Key
				chunk.PageNumber = &page
			case processor.UnitRow:
				row := unit.Key
				chunk.RowIndex = &row
			}

			if unit.OCRText != "" {
				chunk.OCRText = unit.OCRText
				chunk.OCRTextNormalized = textnorm.Normalize(unit.OCRText)
			}
			if unit.ImageDescription != "" {
				chunk.ImageDescription = unit.ImageDescription
			}

			chunk.TextNormalized = textnorm.Normalize(chunk.Text)
			chunk.SearchableText = BuildSearchableText(res, chunk)
			chunks = append(chunks, chunk)
		}

		offset += len(text) + 1
	}

	return chunks
}

type window struct {
	text  string
	start int
}

// split cuts text into overlapping windows of at most ChunkSize
// characters, preferring to break at a whitespace near the boundary.
func (c *Chunker) split(text string) []window {
	var windows []window
	step := c.config.ChunkSize - c.config.ChunkOverlap

	for start := 0; start < len(text); start += step {
		end := start + c.config.ChunkSize
		if end >= len(text) {
			windows = append(windows, window{text: text[start:], start: start})
			break
		}

		// Back up to the nearest whitespace to avoid cutting words.
		cut := end
		for cut > start+step && !isSpace(text[cut]) {
			cut--
		}
		if cut == start+step {
			cut = end
		}

		windows = append(windows, window{text: text[start:cut], start: start})
	}

	return windows
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// BuildSearchableText composes the chunk's searchable text: the
// normalized concatenation of the parent's file name, summary, tags,
// and keywords with the chunk's own text and OCR text. This is the
// field scored against phrase queries, and it must be rebuilt whenever
// any contributing resource field changes.
func BuildSearchableText(res *models.Resource, chunk *models.Chunk) string {
	parts := make([]string, 0, 6)
	if res.FileName != "" {
		parts = append(parts, res.FileName)
	}
	if res.Summary != "" {
		parts = append(parts, res.Summary)
	}
	if len(res.Tags) > 0 {
		parts = append(parts, strings.Join(res.Tags, " "))
	}
	if len(res.Keywords) > 0 {
		parts = append(parts, strings.Join(res.Keywords, " "))
	}
	if chunk.Text != "" {
		parts = append(parts, chunk.Text)
	}
	if chunk.OCRText != "" {
		parts = append(parts, chunk.OCRText)
	}
	return textnorm.Normalize(strings.Join(parts, " "))
}

// maxDocumentKeywords bounds how many keywords feed the document vector.
const maxDocumentKeywords = 20

// BuildDocumentText composes the input for the resource-level embedding:
// the summary followed by the top keywords. Empty when the resource has
// neither, in which case no document vector is generated.
func BuildDocumentText(res *models.Resource) string {
	parts := make([]string, 0, 2)
	if res.Summary != "" {
		parts = append(parts, res.Summary)
	}
	keywords := res.Keywords
	if len(keywords) > maxDocumentKeywords {
		keywords = keywords[:maxDocumentKeywords]
	}
	if len(keywords) > 0 {
		parts = append(parts, strings.Join(keywords, " "))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
