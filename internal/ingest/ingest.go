// Package ingest coordinates the document ingestion pipeline: blob
// persistence, format-specific processing, metadata extraction,
// chunking, embedding, and suggestion indexing. The blob and the
// processor run synchronously; everything after resource creation is
// best effort and degrades without failing the upload.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papertrove/papertrove/internal/blob"
	"github.com/papertrove/papertrove/internal/category"
	"github.com/papertrove/papertrove/internal/chunker"
	"github.com/papertrove/papertrove/internal/embeddings"
	"github.com/papertrove/papertrove/internal/extract"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/processor"
	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/internal/suggest"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Config contains ingestion configuration.
type Config struct {
	// MaxFileBytes is the upload size limit. Default: 50 MiB.
	MaxFileBytes int64 `yaml:"max_file_bytes"`

	// EmbedTimeout bounds the embedding calls for one resource.
	// Default: 60s.
	EmbedTimeout time.Duration `yaml:"embed_timeout"`
}

// DefaultConfig returns the default ingestion configuration.
func DefaultConfig() Config {
	return Config{
		MaxFileBytes: 50 << 20,
		EmbedTimeout: 60 * time.Second,
	}
}

// Upload is one file upload. Summary and Tags are optional
// user-supplied metadata carried onto the resource.
type Upload struct {
	FileName string
	MimeType string
	Data     []byte
	Summary  string
	Tags     []string
}

// Snippet is a user-authored text resource. Source optionally records
// where the snippet came from (clipper, email, manual entry).
type Snippet struct {
	Title  string
	Body   string
	Tags   []string
	Source string
}

// Coordinator runs the ingestion pipeline.
type Coordinator struct {
	store       store.DocumentStore
	blobs       blob.Store
	registry    *processor.Registry
	extractor   *extract.Extractor
	chunker     *chunker.Chunker
	embedder    embeddings.Provider
	suggestions suggest.Index
	categories  *category.Service
	audit       *observability.AuditLogger
	logger      *observability.Logger
	metrics     *observability.Metrics
	config      Config
}

// Deps bundles the coordinator's dependencies. Embedder and suggestions
// may be nil; the pipeline skips those steps.
type Deps struct {
	Store       store.DocumentStore
	Blobs       blob.Store
	Registry    *processor.Registry
	Extractor   *extract.Extractor
	Chunker     *chunker.Chunker
	Embedder    embeddings.Provider
	Suggestions suggest.Index
	Categories  *category.Service
	Audit       *observability.AuditLogger
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// New creates an ingestion coordinator.
func New(deps Deps, cfg Config) *Coordinator {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultConfig().MaxFileBytes
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultConfig().EmbedTimeout
	}
	return &Coordinator{
		store:       deps.Store,
		blobs:       deps.Blobs,
		registry:    deps.Registry,
		extractor:   deps.Extractor,
		chunker:     deps.Chunker,
		embedder:    deps.Embedder,
		suggestions: deps.Suggestions,
		categories:  deps.Categories,
		audit:       deps.Audit,
		logger:      deps.Logger.WithFields("component", "ingest"),
		metrics:     deps.Metrics,
		config:      cfg,
	}
}

// IngestFile persists the upload, processes it, and creates the
// resource with its chunks. The blob write and the processor run must
// both succeed; a failure in either rolls back the blob. Later steps
// degrade individually.
func (c *Coordinator) IngestFile(ctx context.Context, tenantID, callerID string, up *Upload) (*models.Resource, error) {
	start := time.Now()

	if int64(len(up.Data)) > c.config.MaxFileBytes {
		return nil, fmt.Errorf("upload of %d bytes exceeds limit %d: %w",
			len(up.Data), c.config.MaxFileBytes, models.ErrTooLarge)
	}

	ext := strings.TrimPrefix(filepath.Ext(up.FileName), ".")
	proc, err := c.registry.Get(up.MimeType, ext)
	if err != nil {
		return nil, err
	}

	fileID, err := c.blobs.Put(ctx, tenantID, bytes.NewReader(up.Data), ext)
	if err != nil {
		c.countIngest(proc.FileType(), "error")
		return nil, fmt.Errorf("persist blob: %w", err)
	}

	result, err := proc.Process(ctx, up.Data)
	if err != nil {
		if delErr := c.blobs.Delete(ctx, tenantID, fileID); delErr != nil {
			c.logger.Error(ctx, "blob rollback failed", "file_id", fileID, "error", delErr)
		}
		c.countIngest(proc.FileType(), "error")
		return nil, fmt.Errorf("process %s: %w: %w", up.FileName, models.ErrProcessor, err)
	}

	res := &models.Resource{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		FileID:    fileID,
		FileName:  up.FileName,
		MimeType:  up.MimeType,
		FileType:  proc.FileType(),
		SizeBytes: int64(len(up.Data)),
		Summary:   strings.TrimSpace(up.Summary),
		Tags:      cleanTags(up.Tags),
	}
	if err := c.finish(ctx, callerID, res, result); err != nil {
		c.countIngest(proc.FileType(), "error")
		return nil, err
	}

	c.countIngest(res.FileType, "success")
	if c.metrics != nil {
		c.metrics.IngestDuration.WithLabelValues(string(res.FileType)).
			Observe(time.Since(start).Seconds())
	}
	return res, nil
}

// IngestSnippet creates a resource from a user-authored snippet.
// Snippets have no backing file.
func (c *Coordinator) IngestSnippet(ctx context.Context, tenantID, callerID string, sn *Snippet) (*models.Resource, error) {
	start := time.Now()

	title := strings.TrimSpace(sn.Title)
	body := strings.TrimSpace(sn.Body)
	if title == "" || body == "" {
		return nil, fmt.Errorf("snippet title and body are required: %w", models.ErrValidation)
	}
	if int64(len(body)) > c.config.MaxFileBytes {
		return nil, fmt.Errorf("snippet of %d bytes exceeds limit %d: %w",
			len(body), c.config.MaxFileBytes, models.ErrTooLarge)
	}

	result, err := processor.NewSnippetProcessor().Process(ctx, []byte(body))
	if err != nil {
		return nil, fmt.Errorf("process snippet: %w: %w", models.ErrProcessor, err)
	}
	res := &models.Resource{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		FileName:  title,
		MimeType:  "text/plain",
		FileType:  models.FileTypeSnippet,
		SizeBytes: int64(len(body)),
		Tags:      cleanTags(sn.Tags),
	}
	if src := strings.TrimSpace(sn.Source); src != "" {
		res.TechnicalMetadata = map[string]string{"snippet_source": src}
	}
	if err := c.finish(ctx, callerID, res, result); err != nil {
		c.countIngest(models.FileTypeSnippet, "error")
		return nil, err
	}

	c.countIngest(models.FileTypeSnippet, "success")
	if c.metrics != nil {
		c.metrics.IngestDuration.WithLabelValues(string(models.FileTypeSnippet)).
			Observe(time.Since(start).Seconds())
	}
	return res, nil
}

// finish runs the shared tail of the pipeline: extraction, chunking,
// embedding, persistence, suggestion indexing, and the audit entry.
func (c *Coordinator) finish(ctx context.Context, callerID string, res *models.Resource, result *processor.Result) error {
	extraction := c.extractor.Extract(ctx, result.RawText, c.vendorEntities(ctx, res.TenantID))
	applyExtraction(res, extraction)
	res.Content = result.RawText
	if res.TechnicalMetadata == nil {
		res.TechnicalMetadata = result.Technical
	} else {
		for k, v := range result.Technical {
			res.TechnicalMetadata[k] = v
		}
	}
	now := time.Now()
	res.CreatedAt = now
	res.UpdatedAt = now

	chunks := c.chunker.Chunk(res, result.Units)
	res.ChunkCount = len(chunks)

	c.embed(ctx, res, chunks)

	if err := c.store.PutResource(ctx, res, chunks); err != nil {
		return fmt.Errorf("store resource: %w", err)
	}

	if c.suggestions != nil {
		if err := c.suggestions.IndexResource(ctx, res); err != nil {
			c.logger.Warn(ctx, "suggestion indexing failed", "resource_id", res.ID, "error", err)
			c.countDependencyError("suggest")
		}
	}

	if c.audit != nil {
		c.audit.Record(ctx, res.TenantID, callerID, observability.AuditCreate, res.ID)
	}
	return nil
}

// Delete removes the resource, its chunks, its blob, and its file name
// suggestion entry.
func (c *Coordinator) Delete(ctx context.Context, tenantID, callerID, resourceID string) error {
	res, err := c.store.GetResource(ctx, tenantID, resourceID)
	if err != nil {
		return err
	}
	if err := c.store.DeleteResource(ctx, tenantID, resourceID); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	if res.FileID != "" {
		if err := c.blobs.Delete(ctx, tenantID, res.FileID); err != nil {
			c.logger.Warn(ctx, "blob delete failed", "file_id", res.FileID, "error", err)
			c.countDependencyError("blob")
		}
	}
	if c.suggestions != nil {
		if err := c.suggestions.RemoveResource(ctx, res); err != nil {
			c.logger.Warn(ctx, "suggestion removal failed", "resource_id", res.ID, "error", err)
			c.countDependencyError("suggest")
		}
	}

	if c.audit != nil {
		c.audit.Record(ctx, tenantID, callerID, observability.AuditDelete, resourceID)
	}
	return nil
}

// embed fills document and chunk vectors. The document vector covers
// the summary and top keywords; chunk vectors cover each chunk's
// searchable text. Failures leave vectors nil; the resource stays
// searchable through the keyword strategies.
func (c *Coordinator) embed(ctx context.Context, res *models.Resource, chunks []*models.Chunk) {
	if c.embedder == nil {
		return
	}
	ectx, cancel := context.WithTimeout(ctx, c.config.EmbedTimeout)
	defer cancel()

	if docText := chunker.BuildDocumentText(res); docText != "" {
		vector, err := c.embedder.Embed(ectx, docText)
		if err != nil {
			c.logger.Warn(ctx, "document embedding failed", "resource_id", res.ID, "error", err)
			c.countDependencyError("embedding")
		} else {
			res.Embedding = vector
		}
	}

	if len(chunks) == 0 {
		return
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.SearchableText
	}

	batchSize := c.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	for offset := 0; offset < len(texts); offset += batchSize {
		end := offset + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedder.EmbedBatch(ectx, texts[offset:end])
		if err != nil {
			c.logger.Warn(ctx, "chunk embedding batch failed",
				"resource_id", res.ID, "offset", offset, "error", err)
			c.countDependencyError("embedding")
			continue
		}
		for i, v := range vectors {
			if offset+i < len(chunks) {
				chunks[offset+i].Embedding = v
			}
		}
	}
}

// vendorEntities returns the tenant's vendor category entities for the
// extractor's vendor match. Failures degrade to no vendor detection.
func (c *Coordinator) vendorEntities(ctx context.Context, tenantID string) []string {
	if c.categories == nil {
		return nil
	}
	categories, err := c.categories.Enabled(ctx, tenantID)
	if err != nil {
		c.logger.Warn(ctx, "vendor entity load failed", "error", err)
		return nil
	}
	for _, cat := range categories {
		if cat.Type == models.CategoryVendor {
			return cat.Entities
		}
	}
	return nil
}

// applyExtraction copies extracted metadata onto the resource. Keywords
// include the normalized identifier tokens so exact ID search can hit
// them through the keywords set.
func applyExtraction(res *models.Resource, ext *extract.Extraction) {
	res.Vendor = ext.Vendor
	res.Entities = ext.Entities
	res.Dates = ext.Dates

	keywords := append([]string(nil), ext.Keywords...)
	for _, groups := range [][]string{ext.IDs, ext.Emails, ext.IBANs} {
		for _, id := range groups {
			keywords = append(keywords, textnorm.Normalize(id))
		}
	}
	res.Keywords = dedupe(keywords)

	seen := make(map[int64]struct{})
	for _, m := range ext.Money {
		if _, dup := seen[m.AmountCents]; dup {
			continue
		}
		seen[m.AmountCents] = struct{}{}
		res.AmountsCents = append(res.AmountsCents, m.AmountCents)
		if res.Currency == "" && m.Currency != "" {
			res.Currency = m.Currency
		}
	}
}

func (c *Coordinator) countIngest(fileType models.FileType, status string) {
	if c.metrics != nil {
		c.metrics.IngestCounter.WithLabelValues(string(fileType), status).Inc()
	}
}

func (c *Coordinator) countDependencyError(dependency string) {
	if c.metrics != nil {
		c.metrics.DependencyErrors.WithLabelValues(dependency).Inc()
	}
}

// cleanTags trims, drops empties, and dedupes user-supplied tags.
func cleanTags(tags []string) []string {
	trimmed := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed = append(trimmed, strings.TrimSpace(tag))
	}
	return dedupe(trimmed)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
