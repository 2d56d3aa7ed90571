package models

import (
	"time"
)

// Chunk is one searchable unit of a resource. Chunks are the atomic
// scoring unit for phrase, keyword, and semantic search.
type Chunk struct {
	// ID is the unique identifier for this chunk.
	ID string `json:"id"`

	// ResourceID links the chunk to its parent resource.
	ResourceID string `json:"resource_id"`

	// TenantID always equals the parent resource's tenant.
	TenantID string `json:"tenant_id"`

	// Index is the position of this chunk within the resource (0-based).
	Index int `json:"index"`

	// CharStart is the character offset in the extracted content.
	CharStart int `json:"char_start"`

	// CharEnd is the ending character offset.
	CharEnd int `json:"char_end"`

	// Text is the raw chunk text.
	Text string `json:"text"`

	// TextNormalized is Text after diacritic folding and lowercasing.
	TextNormalized string `json:"text_normalized"`

	// OCRText is the OCR output for image chunks, if any.
	OCRText string `json:"ocr_text,omitempty"`

	// OCRTextNormalized is OCRText normalized.
	OCRTextNormalized string `json:"ocr_text_normalized,omitempty"`

	// ImageDescription is a model-generated description for image chunks.
	ImageDescription string `json:"image_description,omitempty"`

	// SearchableText is the normalized concatenation of the parent's
	// file name, summary, tags, and keywords with the chunk's own text.
	// This is the field scored against phrase queries, and it is
	// refreshed whenever the parent's contributing fields change.
	SearchableText string `json:"searchable_text"`

	// PageNumber is the source page for PDF chunks (1-based), nil otherwise.
	PageNumber *int `json:"page_number,omitempty"`

	// RowIndex is the source row for CSV chunks (0-based), nil otherwise.
	RowIndex *int `json:"row_index,omitempty"`

	// Embedding is the chunk-level vector, or nil when unavailable.
	Embedding []float32 `json:"-"`

	// CreatedAt is when the chunk was created.
	CreatedAt time.Time `json:"created_at"`
}

// ChunkField names a chunk text column that phrase and keyword
// strategies can match against.
type ChunkField string

const (
	// ChunkFieldSearchable is the composite searchable_text field.
	ChunkFieldSearchable ChunkField = "searchable_text"
	// ChunkFieldText is the normalized raw chunk text.
	ChunkFieldText ChunkField = "text_normalized"
	// ChunkFieldOCR is the normalized OCR text.
	ChunkFieldOCR ChunkField = "ocr_text_normalized"
	// ChunkFieldImageDescription is the model-generated image description.
	ChunkFieldImageDescription ChunkField = "image_description"
)
