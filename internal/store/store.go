// Package store provides document and chunk storage interfaces and
// implementations for the search core.
package store

import (
	"context"

	"github.com/papertrove/papertrove/pkg/models"
)

// DocumentStore defines the interface for resource, chunk, and category
// storage. Every operation is scoped by tenant; implementations must
// refuse cross-tenant reads.
type DocumentStore interface {
	// PutResource stores a resource and its chunks transactionally.
	// If the resource already exists the call fails with models.ErrConflict.
	PutResource(ctx context.Context, res *models.Resource, chunks []*models.Chunk) error

	// GetResource retrieves a resource by ID. Returns models.ErrNotFound
	// when the resource does not exist in the tenant.
	GetResource(ctx context.Context, tenantID, id string) (*models.Resource, error)

	// GetResources retrieves a batch of resources by ID. Missing IDs are
	// silently skipped; order follows the input IDs.
	GetResources(ctx context.Context, tenantID string, ids []string) ([]*models.Resource, error)

	// UpdateResource applies the update and returns the stored resource
	// together with the names of the searchable fields that changed.
	// Callers use the changed-field list to enqueue reindex work.
	UpdateResource(ctx context.Context, tenantID, id string, update ResourceUpdate) (*models.Resource, []string, error)

	// DeleteResource removes a resource and all its chunks.
	DeleteResource(ctx context.Context, tenantID, id string) error

	// ListResources lists resources with optional filtering and pagination.
	ListResources(ctx context.Context, tenantID string, opts *ListOptions) ([]*models.Resource, error)

	// GetChunks retrieves all chunks for a resource in index order.
	GetChunks(ctx context.Context, tenantID, resourceID string) ([]*models.Chunk, error)

	// ReplaceChunks atomically swaps the chunk set of a resource.
	ReplaceChunks(ctx context.Context, tenantID, resourceID string, chunks []*models.Chunk) error

	// UpdateChunkSearchableText rewrites searchable_text for the given
	// chunk IDs.
	UpdateChunkSearchableText(ctx context.Context, tenantID string, texts map[string]string) error

	// UpdateChunkEmbeddings updates embeddings for the given chunk IDs.
	// Nil values clear the embedding.
	UpdateChunkEmbeddings(ctx context.Context, tenantID string, embeddings map[string][]float32) error

	// KeywordSearch performs a substring match of the normalized phrase
	// against one chunk field, returning chunk hits with occurrence counts.
	KeywordSearch(ctx context.Context, tenantID, phrase string, field models.ChunkField, limit int) ([]*ChunkHit, error)

	// TokenSearch returns chunks whose field contains at least one of the
	// tokens, with per-chunk matched-token counts. Callers compute the
	// overlap ratio.
	TokenSearch(ctx context.Context, tenantID string, tokens []string, field models.ChunkField, limit int) ([]*ChunkHit, error)

	// VectorSearch performs cosine-similarity top-K over resource-level or
	// chunk-level embeddings. Items without an embedding are skipped.
	VectorSearch(ctx context.Context, tenantID string, vector []float32, scope VectorScope, limit int) ([]*VectorHit, error)

	// FilterSearch returns resources matching exact-value predicates.
	FilterSearch(ctx context.Context, tenantID string, filter *ResourceFilter, limit int) ([]*models.Resource, error)

	// GetCategories returns all categories for the tenant.
	GetCategories(ctx context.Context, tenantID string) ([]*models.Category, error)

	// GetCategory returns one category by type, or models.ErrNotFound.
	GetCategory(ctx context.Context, tenantID, categoryType string) (*models.Category, error)

	// UpsertCategory creates or replaces a category.
	UpsertCategory(ctx context.Context, cat *models.Category) error

	// Stats returns per-tenant statistics.
	Stats(ctx context.Context, tenantID string) (*TenantStats, error)

	// Close releases resources.
	Close() error
}

// ResourceUpdate carries a partial update to a resource's mutable fields.
// Nil pointers leave the field untouched. TechnicalMetadata entries are
// merged into the existing map; the user summary is only written when
// the caller supplies one.
type ResourceUpdate struct {
	FileName          *string
	Summary           *string
	Tags              *[]string
	Vendor            *string
	Content           *string
	Keywords          *[]string
	Entities          *[]string
	TechnicalMetadata map[string]string
	Embedding         []float32
}

// ListOptions configures resource listing.
type ListOptions struct {
	// Limit is the maximum number of resources to return. Default: 100.
	Limit int

	// Offset is the number of resources to skip.
	Offset int

	// FileType filters by processed file type.
	FileType models.FileType

	// OrderDesc reverses the created_at sort order.
	OrderDesc bool
}

// VectorScope selects which embedding level a vector search runs over.
type VectorScope string

const (
	// ScopeResource searches document-level embeddings.
	ScopeResource VectorScope = "resource"
	// ScopeChunk searches chunk-level embeddings.
	ScopeChunk VectorScope = "chunk"
)

// ChunkHit is one chunk returned by a keyword or token search.
type ChunkHit struct {
	// Chunk is the matched chunk.
	Chunk *models.Chunk

	// Occurrences counts substring occurrences for keyword search.
	Occurrences int

	// MatchedTokens counts distinct query tokens found, for token search.
	MatchedTokens int
}

// VectorHit is one similarity hit from a vector search.
type VectorHit struct {
	// ResourceID is the matched resource.
	ResourceID string

	// Chunk is set for chunk-scope searches, nil for resource scope.
	Chunk *models.Chunk

	// Similarity is the cosine similarity in [-1,1].
	Similarity float64
}

// ResourceFilter describes exact-match predicates for filter search.
// Zero-valued fields are not applied.
type ResourceFilter struct {
	// Vendors matches resources whose vendor is any of these values.
	Vendors []string

	// Entities matches resources whose entity set intersects these values.
	Entities []string

	// Keywords matches resources whose keyword set intersects these values.
	Keywords []string

	// AmountsCents matches resources whose amount set intersects these
	// values. Currency, when set, must also match.
	AmountsCents []int64
	Currency     string

	// HasAmounts matches resources with any extracted amount.
	HasAmounts bool

	// Dates matches resources whose date set intersects these ISO dates.
	Dates []string

	// FileTypes restricts results to the given file types.
	FileTypes []models.FileType
}

// Empty reports whether the filter applies no predicate.
func (f *ResourceFilter) Empty() bool {
	return f == nil ||
		(len(f.Vendors) == 0 && len(f.Entities) == 0 && len(f.Keywords) == 0 &&
			len(f.AmountsCents) == 0 && !f.HasAmounts && len(f.Dates) == 0)
}

// TenantStats contains per-tenant statistics about the store.
type TenantStats struct {
	// Resources is the number of stored resources.
	Resources int64 `json:"resources"`

	// Chunks is the number of stored chunks.
	Chunks int64 `json:"chunks"`

	// ContentBytes is the total size of original uploads.
	ContentBytes int64 `json:"content_bytes"`

	// EmbeddingDimension is the configured embedding dimension.
	EmbeddingDimension int `json:"embedding_dimension"`
}
