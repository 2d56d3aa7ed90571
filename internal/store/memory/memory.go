// Package memory provides an in-memory DocumentStore used for tests and
// single-binary development mode.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/pkg/models"
)

// Store implements store.DocumentStore in memory.
type Store struct {
	mu         sync.RWMutex
	resources  map[string]map[string]*models.Resource // tenant -> id -> resource
	chunks     map[string]map[string][]*models.Chunk  // tenant -> resource id -> chunks
	categories map[string]map[string]*models.Category // tenant -> type -> category
	dimension  int
}

var _ store.DocumentStore = (*Store)(nil)

// New creates an empty in-memory store.
func New(dimension int) *Store {
	return &Store{
		resources:  make(map[string]map[string]*models.Resource),
		chunks:     make(map[string]map[string][]*models.Chunk),
		categories: make(map[string]map[string]*models.Category),
		dimension:  dimension,
	}
}

// PutResource stores a resource and its chunks.
func (s *Store) PutResource(ctx context.Context, res *models.Resource, chunks []*models.Chunk) error {
	if res.ID == "" || res.TenantID == "" {
		return fmt.Errorf("resource id and tenant are required: %w", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tenant := s.resources[res.TenantID]
	if tenant == nil {
		tenant = make(map[string]*models.Resource)
		s.resources[res.TenantID] = tenant
	}
	if _, exists := tenant[res.ID]; exists {
		return fmt.Errorf("resource %s: %w", res.ID, models.ErrConflict)
	}

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	res.UpdatedAt = time.Now()
	res.ChunkCount = len(chunks)
	tenant[res.ID] = copyResource(res)

	tenantChunks := s.chunks[res.TenantID]
	if tenantChunks == nil {
		tenantChunks = make(map[string][]*models.Chunk)
		s.chunks[res.TenantID] = tenantChunks
	}
	tenantChunks[res.ID] = copyChunks(chunks)
	return nil
}

// GetResource retrieves a resource by ID within the tenant.
func (s *Store) GetResource(ctx context.Context, tenantID, id string) (*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := s.resources[tenantID][id]
	if res == nil {
		return nil, fmt.Errorf("resource %s: %w", id, models.ErrNotFound)
	}
	return copyResource(res), nil
}

// GetResources retrieves a batch of resources, preserving input order.
func (s *Store) GetResources(ctx context.Context, tenantID string, ids []string) ([]*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*models.Resource
	for _, id := range ids {
		if res := s.resources[tenantID][id]; res != nil {
			results = append(results, copyResource(res))
		}
	}
	return results, nil
}

// UpdateResource applies a partial update and reports changed fields.
func (s *Store) UpdateResource(ctx context.Context, tenantID, id string, update store.ResourceUpdate) (*models.Resource, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.resources[tenantID][id]
	if res == nil {
		return nil, nil, fmt.Errorf("resource %s: %w", id, models.ErrNotFound)
	}

	var changed []string
	if update.FileName != nil && *update.FileName != res.FileName {
		res.FileName = *update.FileName
		changed = append(changed, models.FieldFileName)
	}
	if update.Summary != nil && *update.Summary != res.Summary {
		res.Summary = *update.Summary
		changed = append(changed, models.FieldSummary)
	}
	if update.Tags != nil && !equalStrings(*update.Tags, res.Tags) {
		res.Tags = append([]string(nil), *update.Tags...)
		changed = append(changed, models.FieldTags)
	}
	if update.Vendor != nil && *update.Vendor != res.Vendor {
		res.Vendor = *update.Vendor
		changed = append(changed, models.FieldVendor)
	}
	if update.Content != nil && *update.Content != res.Content {
		res.Content = *update.Content
		changed = append(changed, models.FieldContent)
	}
	if update.Keywords != nil {
		res.Keywords = append([]string(nil), *update.Keywords...)
	}
	if update.Entities != nil {
		res.Entities = append([]string(nil), *update.Entities...)
	}
	if update.Embedding != nil {
		res.Embedding = append([]float32(nil), update.Embedding...)
	}
	if len(update.TechnicalMetadata) > 0 {
		if res.TechnicalMetadata == nil {
			res.TechnicalMetadata = map[string]string{}
		}
		merged := false
		for k, v := range update.TechnicalMetadata {
			if res.TechnicalMetadata[k] != v {
				res.TechnicalMetadata[k] = v
				merged = true
			}
		}
		if merged {
			changed = append(changed, models.FieldTechMeta)
		}
	}

	res.UpdatedAt = time.Now()
	return copyResource(res), changed, nil
}

// DeleteResource removes a resource and its chunks.
func (s *Store) DeleteResource(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resources[tenantID][id] == nil {
		return fmt.Errorf("resource %s: %w", id, models.ErrNotFound)
	}
	delete(s.resources[tenantID], id)
	delete(s.chunks[tenantID], id)
	return nil
}

// ListResources lists resources with optional filtering.
func (s *Store) ListResources(ctx context.Context, tenantID string, opts *store.ListOptions) ([]*models.Resource, error) {
	if opts == nil {
		opts = &store.ListOptions{}
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*models.Resource
	for _, res := range s.resources[tenantID] {
		if opts.FileType != "" && res.FileType != opts.FileType {
			continue
		}
		results = append(results, copyResource(res))
	}

	sort.Slice(results, func(i, j int) bool {
		if opts.OrderDesc {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})

	if opts.Offset >= len(results) {
		return nil, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// GetChunks retrieves all chunks for a resource in index order.
func (s *Store) GetChunks(ctx context.Context, tenantID, resourceID string) ([]*models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyChunks(s.chunks[tenantID][resourceID]), nil
}

// ReplaceChunks swaps the chunk set of a resource.
func (s *Store) ReplaceChunks(ctx context.Context, tenantID, resourceID string, chunks []*models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.resources[tenantID][resourceID]
	if res == nil {
		return fmt.Errorf("resource %s: %w", resourceID, models.ErrNotFound)
	}
	if s.chunks[tenantID] == nil {
		s.chunks[tenantID] = make(map[string][]*models.Chunk)
	}
	s.chunks[tenantID][resourceID] = copyChunks(chunks)
	res.ChunkCount = len(chunks)
	return nil
}

// UpdateChunkSearchableText rewrites searchable_text for the given chunks.
func (s *Store) UpdateChunkSearchableText(ctx context.Context, tenantID string, texts map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunks := range s.chunks[tenantID] {
		for _, chunk := range chunks {
			if text, ok := texts[chunk.ID]; ok {
				chunk.SearchableText = text
			}
		}
	}
	return nil
}

// UpdateChunkEmbeddings updates embeddings for the given chunks.
func (s *Store) UpdateChunkEmbeddings(ctx context.Context, tenantID string, embeddings map[string][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunks := range s.chunks[tenantID] {
		for _, chunk := range chunks {
			if embedding, ok := embeddings[chunk.ID]; ok {
				chunk.Embedding = append([]float32(nil), embedding...)
			}
		}
	}
	return nil
}

// KeywordSearch performs a substring match against one chunk field.
func (s *Store) KeywordSearch(ctx context.Context, tenantID, phrase string, field models.ChunkField, limit int) ([]*store.ChunkHit, error) {
	if phrase == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []*store.ChunkHit
	for _, chunks := range s.chunks[tenantID] {
		for _, chunk := range chunks {
			value := chunkFieldValue(chunk, field)
			if count := strings.Count(value, phrase); count > 0 {
				hits = append(hits, &store.ChunkHit{Chunk: copyChunk(chunk), Occurrences: count})
			}
			if len(hits) >= limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// TokenSearch returns chunks containing at least one token.
func (s *Store) TokenSearch(ctx context.Context, tenantID string, tokens []string, field models.ChunkField, limit int) ([]*store.ChunkHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []*store.ChunkHit
	for _, chunks := range s.chunks[tenantID] {
		for _, chunk := range chunks {
			value := chunkFieldValue(chunk, field)
			matched := 0
			for _, token := range tokens {
				if strings.Contains(value, token) {
					matched++
				}
			}
			if matched > 0 {
				hits = append(hits, &store.ChunkHit{Chunk: copyChunk(chunk), MatchedTokens: matched})
			}
			if len(hits) >= limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// VectorSearch performs cosine-similarity top-K over stored embeddings.
func (s *Store) VectorSearch(ctx context.Context, tenantID string, vector []float32, scope store.VectorScope, limit int) ([]*store.VectorHit, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []*store.VectorHit
	switch scope {
	case store.ScopeResource:
		for _, res := range s.resources[tenantID] {
			sim, ok := cosineSimilarity(vector, res.Embedding)
			if !ok {
				continue
			}
			hits = append(hits, &store.VectorHit{ResourceID: res.ID, Similarity: sim})
		}
	case store.ScopeChunk:
		for _, chunks := range s.chunks[tenantID] {
			for _, chunk := range chunks {
				sim, ok := cosineSimilarity(vector, chunk.Embedding)
				if !ok {
					continue
				}
				hits = append(hits, &store.VectorHit{
					ResourceID: chunk.ResourceID,
					Chunk:      copyChunk(chunk),
					Similarity: sim,
				})
			}
		}
	default:
		return nil, fmt.Errorf("unknown vector scope %q", scope)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// FilterSearch returns resources matching exact-value predicates.
func (s *Store) FilterSearch(ctx context.Context, tenantID string, filter *store.ResourceFilter, limit int) ([]*models.Resource, error) {
	if filter.Empty() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*models.Resource
	for _, res := range s.resources[tenantID] {
		if !matchesFilter(res, filter) {
			continue
		}
		results = append(results, copyResource(res))
		if len(results) >= limit {
			break
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// GetCategories returns all categories for the tenant.
func (s *Store) GetCategories(ctx context.Context, tenantID string) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var categories []*models.Category
	for _, cat := range s.categories[tenantID] {
		categories = append(categories, copyCategory(cat))
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Type < categories[j].Type })
	return categories, nil
}

// GetCategory returns one category by type.
func (s *Store) GetCategory(ctx context.Context, tenantID, categoryType string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cat := s.categories[tenantID][categoryType]
	if cat == nil {
		return nil, fmt.Errorf("category %s: %w", categoryType, models.ErrNotFound)
	}
	return copyCategory(cat), nil
}

// UpsertCategory creates or replaces a category.
func (s *Store) UpsertCategory(ctx context.Context, cat *models.Category) error {
	if cat.TenantID == "" || cat.Type == "" {
		return fmt.Errorf("category tenant and type are required: %w", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tenant := s.categories[cat.TenantID]
	if tenant == nil {
		tenant = make(map[string]*models.Category)
		s.categories[cat.TenantID] = tenant
	}
	if existing := tenant[cat.Type]; existing != nil {
		cat.CreatedAt = existing.CreatedAt
	} else if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now()
	}
	cat.UpdatedAt = time.Now()
	tenant[cat.Type] = copyCategory(cat)
	return nil
}

// Stats returns per-tenant statistics.
func (s *Store) Stats(ctx context.Context, tenantID string) (*store.TenantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &store.TenantStats{EmbeddingDimension: s.dimension}
	for _, res := range s.resources[tenantID] {
		stats.Resources++
		stats.ContentBytes += res.SizeBytes
	}
	for _, chunks := range s.chunks[tenantID] {
		stats.Chunks += int64(len(chunks))
	}
	return stats, nil
}

// Close releases resources.
func (s *Store) Close() error { return nil }

// Helper functions

func matchesFilter(res *models.Resource, filter *store.ResourceFilter) bool {
	if len(filter.Vendors) > 0 && !containsFold(filter.Vendors, res.Vendor) {
		return false
	}
	if len(filter.Entities) > 0 && !intersectsFold(filter.Entities, res.Entities) {
		return false
	}
	if len(filter.Keywords) > 0 && !intersectsFold(filter.Keywords, res.Keywords) {
		return false
	}
	if len(filter.AmountsCents) > 0 {
		if !intersectsInt64(filter.AmountsCents, res.AmountsCents) {
			return false
		}
		if filter.Currency != "" && res.Currency != "" && filter.Currency != res.Currency {
			return false
		}
	} else if filter.HasAmounts && len(res.AmountsCents) == 0 {
		return false
	}
	if len(filter.Dates) > 0 && !intersects(filter.Dates, res.Dates) {
		return false
	}
	if len(filter.FileTypes) > 0 {
		found := false
		for _, t := range filter.FileTypes {
			if res.FileType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func intersectsFold(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

func intersectsInt64(a, b []int64) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func chunkFieldValue(chunk *models.Chunk, field models.ChunkField) string {
	switch field {
	case models.ChunkFieldSearchable:
		return chunk.SearchableText
	case models.ChunkFieldText:
		return chunk.TextNormalized
	case models.ChunkFieldOCR:
		return chunk.OCRTextNormalized
	case models.ChunkFieldImageDescription:
		return chunk.ImageDescription
	}
	return ""
}

func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func copyResource(res *models.Resource) *models.Resource {
	dup := *res
	dup.Tags = append([]string(nil), res.Tags...)
	dup.Entities = append([]string(nil), res.Entities...)
	dup.Keywords = append([]string(nil), res.Keywords...)
	dup.AmountsCents = append([]int64(nil), res.AmountsCents...)
	dup.Dates = append([]string(nil), res.Dates...)
	dup.Embedding = append([]float32(nil), res.Embedding...)
	if res.TechnicalMetadata != nil {
		dup.TechnicalMetadata = make(map[string]string, len(res.TechnicalMetadata))
		for k, v := range res.TechnicalMetadata {
			dup.TechnicalMetadata[k] = v
		}
	}
	return &dup
}

func copyChunk(chunk *models.Chunk) *models.Chunk {
	dup := *chunk
	dup.Embedding = append([]float32(nil), chunk.Embedding...)
	if chunk.PageNumber != nil {
		page := *chunk.PageNumber
		dup.PageNumber = &page
	}
	if chunk.RowIndex != nil {
		row := *chunk.RowIndex
		dup.RowIndex = &row
	}
	return &dup
}

func copyChunks(chunks []*models.Chunk) []*models.Chunk {
	dup := make([]*models.Chunk, len(chunks))
	for i, chunk := range chunks {
		dup[i] = copyChunk(chunk)
	}
	return dup
}

func copyCategory(cat *models.Category) *models.Category {
	dup := *cat
	dup.Entities = append([]string(nil), cat.Entities...)
	dup.IgnoredWords = append([]string(nil), cat.IgnoredWords...)
	dup.TriggerKeywords = append([]string(nil), cat.TriggerKeywords...)
	return &dup
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
