// Package models defines the core data types for Papertrove.
package models

import (
	"time"
)

// FileType classifies an ingested resource by how it was processed.
type FileType string

const (
	// FileTypePDF is a PDF document processed page by page.
	FileTypePDF FileType = "pdf"
	// FileTypeImage is an image processed through OCR.
	FileTypeImage FileType = "image"
	// FileTypeCSV is a spreadsheet processed row by row.
	FileTypeCSV FileType = "csv"
	// FileTypeText is a plaintext or markdown file.
	FileTypeText FileType = "text"
	// FileTypeSnippet is a user-authored text snippet with no backing file.
	FileTypeSnippet FileType = "snippet"
)

// Resource represents one ingested document or snippet.
// Every resource belongs to exactly one tenant; the tenant never changes
// after creation.
type Resource struct {
	// ID is the unique identifier for the resource.
	ID string `json:"id"`

	// TenantID identifies the owning tenant. Immutable.
	TenantID string `json:"tenant_id"`

	// FileID is the opaque handle into the blob store.
	// Empty for snippets, which have no backing file.
	FileID string `json:"file_id,omitempty"`

	// FileName is the original file name as uploaded.
	FileName string `json:"file_name"`

	// MimeType is the MIME type of the original upload.
	MimeType string `json:"mime_type"`

	// FileType classifies the processor that handled the resource.
	FileType FileType `json:"file_type"`

	// SizeBytes is the size of the original upload.
	SizeBytes int64 `json:"size_bytes"`

	// Summary is the user-authored description. It is preserved verbatim
	// and never overwritten by machine extraction.
	Summary string `json:"summary,omitempty"`

	// TechnicalMetadata holds processor-derived detail (page counts,
	// AI-generated descriptions, OCR notes). Kept separate from Summary.
	TechnicalMetadata map[string]string `json:"technical_metadata,omitempty"`

	// Tags are user-supplied labels.
	Tags []string `json:"tags,omitempty"`

	// Vendor is the matched vendor name, if any.
	Vendor string `json:"vendor,omitempty"`

	// Entities are extracted named entities (people, organizations).
	Entities []string `json:"entities,omitempty"`

	// Keywords are extracted search keywords, including identifier tokens.
	Keywords []string `json:"keywords,omitempty"`

	// AmountsCents are extracted money amounts in minor units.
	AmountsCents []int64 `json:"amounts_cents,omitempty"`

	// Currency is the ISO currency code for the extracted amounts.
	Currency string `json:"currency,omitempty"`

	// Dates are extracted calendar dates in ISO-8601 form (YYYY-MM-DD).
	Dates []string `json:"dates,omitempty"`

	// Content is the concatenated extracted text, possibly truncated
	// for display.
	Content string `json:"content,omitempty"`

	// Embedding is the document-level vector, or nil when embedding failed
	// or is disabled.
	Embedding []float32 `json:"-"`

	// ChunkCount is the number of chunks the resource was split into.
	ChunkCount int `json:"chunk_count,omitempty"`

	// CreatedAt is when the resource was ingested.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the resource was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Searchable field names used in change events and reindex decisions.
const (
	FieldContent  = "content"
	FieldSummary  = "summary"
	FieldTags     = "tags"
	FieldFileName = "file_name"
	FieldVendor   = "vendor"
	FieldTechMeta = "technical_metadata"
)

// ChangeEvent describes a mutation to a resource's fields.
// The reindex coordinator consumes these to refresh derived data.
type ChangeEvent struct {
	// TenantID is the owning tenant.
	TenantID string `json:"tenant_id"`

	// ResourceID is the mutated resource.
	ResourceID string `json:"resource_id"`

	// ChangedFields lists the field names that changed.
	ChangedFields []string `json:"changed_fields"`

	// OccurredAt is when the mutation committed. Newer events supersede
	// older ones for the same resource.
	OccurredAt time.Time `json:"occurred_at"`
}

// Changed reports whether the event includes the named field.
func (e *ChangeEvent) Changed(field string) bool {
	for _, f := range e.ChangedFields {
		if f == field {
			return true
		}
	}
	return false
}
