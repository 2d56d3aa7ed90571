// Package reindex refreshes derived search data after resource
// mutations. Events are coalesced per resource (latest wins), processed
// on a bounded worker pool, and serialized per resource so two tasks
// never touch the same resource concurrently.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/papertrove/papertrove/internal/chunker"
	"github.com/papertrove/papertrove/internal/embeddings"
	"github.com/papertrove/papertrove/internal/extract"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/processor"
	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/internal/suggest"
	"github.com/papertrove/papertrove/pkg/models"
)

// Config contains reindex coordinator configuration.
type Config struct {
	// Workers is the worker pool size. Default: 4.
	Workers int `yaml:"workers"`

	// TaskTimeout bounds one reindex task. Default: 60s.
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// DefaultConfig returns the default reindex configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		TaskTimeout: 60 * time.Second,
	}
}

// Coordinator consumes change events and applies the selective reindex
// decision tree.
type Coordinator struct {
	store       store.DocumentStore
	chunker     *chunker.Chunker
	embedder    embeddings.Provider
	extractor   *extract.Extractor
	suggestions suggest.Index
	logger      *observability.Logger
	metrics     *observability.Metrics
	config      Config

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string]*models.ChangeEvent
	order   []string
	active  map[string]bool
	closed  bool

	wg sync.WaitGroup
}

// Deps bundles the coordinator's dependencies. Embedder and suggestions
// may be nil.
type Deps struct {
	Store       store.DocumentStore
	Chunker     *chunker.Chunker
	Embedder    embeddings.Provider
	Extractor   *extract.Extractor
	Suggestions suggest.Index
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// New creates a reindex coordinator. Call Start to launch the workers.
func New(deps Deps, cfg Config) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultConfig().TaskTimeout
	}
	c := &Coordinator{
		store:       deps.Store,
		chunker:     deps.Chunker,
		embedder:    deps.Embedder,
		extractor:   deps.Extractor,
		suggestions: deps.Suggestions,
		logger:      deps.Logger.WithFields("component", "reindex"),
		metrics:     deps.Metrics,
		config:      cfg,
		pending:     make(map[string]*models.ChangeEvent),
		active:      make(map[string]bool),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Start launches the worker pool.
func (c *Coordinator) Start() {
	for i := 0; i < c.config.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Close drains all pending work and stops the workers.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
	c.wg.Wait()
}

// Enqueue registers a change event. Events for the same resource
// coalesce: the changed-field sets union and the newest timestamp wins.
// Enqueue never blocks the mutation path.
func (c *Coordinator) Enqueue(event *models.ChangeEvent) {
	if len(event.ChangedFields) == 0 {
		return
	}
	key := event.TenantID + "/" + event.ResourceID

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn(context.Background(), "event dropped, coordinator closed",
			"resource_id", event.ResourceID)
		return
	}
	if prev, ok := c.pending[key]; ok {
		c.pending[key] = mergeEvents(prev, event)
		if c.metrics != nil {
			c.metrics.ReindexCounter.WithLabelValues("superseded").Inc()
		}
	} else {
		c.pending[key] = event
		c.order = append(c.order, key)
	}
	c.updateQueueDepth()
	c.cond.Signal()
	c.mu.Unlock()
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		key, event, ok := c.next()
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.config.TaskTimeout)
		err := c.process(ctx, event)
		cancel()

		status := "success"
		if err != nil {
			status = "error"
			c.logger.Error(context.Background(), "reindex failed",
				"tenant_id", event.TenantID, "resource_id", event.ResourceID,
				"changed_fields", event.ChangedFields, "error", err)
		}
		if c.metrics != nil {
			c.metrics.ReindexCounter.WithLabelValues(status).Inc()
		}

		c.mu.Lock()
		delete(c.active, key)
		c.cond.Broadcast()
		c.mu.Unlock()
	}
}

// next blocks until a resource with no in-flight task is available, or
// until the coordinator is closed with an empty queue.
func (c *Coordinator) next() (string, *models.ChangeEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		for i, key := range c.order {
			if c.active[key] {
				continue
			}
			c.order = append(c.order[:i], c.order[i+1:]...)
			event := c.pending[key]
			delete(c.pending, key)
			c.active[key] = true
			c.updateQueueDepth()
			return key, event, true
		}
		if c.closed && len(c.order) == 0 {
			return "", nil, false
		}
		c.cond.Wait()
	}
}

// process applies the decision tree for one event.
func (c *Coordinator) process(ctx context.Context, event *models.ChangeEvent) error {
	contentChanged := event.Changed(models.FieldContent) || event.Changed(models.FieldSummary)
	tagsChanged := event.Changed(models.FieldTags)
	namingChanged := event.Changed(models.FieldFileName) || event.Changed(models.FieldVendor)
	if !contentChanged && !tagsChanged && !namingChanged {
		// Technical-metadata-only mutation.
		return nil
	}

	res, err := c.store.GetResource(ctx, event.TenantID, event.ResourceID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Deleted between the mutation and the task run.
			return nil
		}
		return fmt.Errorf("load resource: %w", err)
	}

	if tagsChanged {
		if err := c.refreshKeywords(ctx, res); err != nil {
			c.logger.Warn(ctx, "keyword refresh failed", "resource_id", res.ID, "error", err)
		}
	}

	if event.Changed(models.FieldContent) {
		if err := c.rebuildChunks(ctx, res); err != nil {
			return err
		}
	} else {
		if err := c.refreshSearchableText(ctx, res); err != nil {
			return err
		}
		if contentChanged {
			if err := c.refreshEmbeddings(ctx, res); err != nil {
				c.logger.Warn(ctx, "embedding refresh failed", "resource_id", res.ID, "error", err)
			}
		}
	}

	if namingChanged && c.suggestions != nil {
		if err := c.suggestions.IndexResource(ctx, res); err != nil {
			c.logger.Warn(ctx, "suggestion refresh failed", "resource_id", res.ID, "error", err)
		}
	}
	return nil
}

// rebuildChunks re-chunks the resource from its stored content and
// regenerates embeddings. Content mutations only happen for snippets,
// which chunk as a single block.
func (c *Coordinator) rebuildChunks(ctx context.Context, res *models.Resource) error {
	units := []processor.Unit{{Key: 0, Kind: processor.UnitBlock, Text: res.Content}}
	chunks := c.chunker.Chunk(res, units)

	if c.embedder != nil {
		if err := c.refreshDocumentVector(ctx, res); err != nil {
			c.logger.Warn(ctx, "document embedding failed", "resource_id", res.ID, "error", err)
		}
		c.embedChunks(ctx, res, chunks)
	}

	if err := c.store.ReplaceChunks(ctx, res.TenantID, res.ID, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	return nil
}

// refreshSearchableText recomputes searchable_text for the existing
// chunks from the resource's current fields.
func (c *Coordinator) refreshSearchableText(ctx context.Context, res *models.Resource) error {
	chunks, err := c.store.GetChunks(ctx, res.TenantID, res.ID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}
	texts := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		texts[chunk.ID] = chunker.BuildSearchableText(res, chunk)
	}
	if err := c.store.UpdateChunkSearchableText(ctx, res.TenantID, texts); err != nil {
		return fmt.Errorf("update searchable text: %w", err)
	}
	return nil
}

// refreshEmbeddings regenerates the document vector and the per-chunk
// vectors without touching the chunk set.
func (c *Coordinator) refreshEmbeddings(ctx context.Context, res *models.Resource) error {
	if c.embedder == nil {
		return nil
	}
	if err := c.refreshDocumentVector(ctx, res); err != nil {
		return err
	}

	chunks, err := c.store.GetChunks(ctx, res.TenantID, res.ID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	c.embedChunks(ctx, res, chunks)
	if len(chunks) == 0 {
		return nil
	}
	vectors := make(map[string][]float32, len(chunks))
	for _, chunk := range chunks {
		vectors[chunk.ID] = chunk.Embedding
	}
	if err := c.store.UpdateChunkEmbeddings(ctx, res.TenantID, vectors); err != nil {
		return fmt.Errorf("update chunk embeddings: %w", err)
	}
	return nil
}

// refreshKeywords re-runs extraction over the stored content and
// rewrites the keyword set.
func (c *Coordinator) refreshKeywords(ctx context.Context, res *models.Resource) error {
	if c.extractor == nil || res.Content == "" {
		return nil
	}
	extraction := c.extractor.Extract(ctx, res.Content, nil)
	if len(extraction.Keywords) == 0 {
		return nil
	}
	updated, _, err := c.store.UpdateResource(ctx, res.TenantID, res.ID,
		store.ResourceUpdate{Keywords: &extraction.Keywords})
	if err != nil {
		return fmt.Errorf("store keywords: %w", err)
	}
	*res = *updated
	return nil
}

// refreshDocumentVector regenerates the resource-level embedding from
// the summary and top keywords. No input text means nothing to store.
func (c *Coordinator) refreshDocumentVector(ctx context.Context, res *models.Resource) error {
	docText := chunker.BuildDocumentText(res)
	if docText == "" {
		return nil
	}
	vector, err := c.embedder.Embed(ctx, docText)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	if _, _, err := c.store.UpdateResource(ctx, res.TenantID, res.ID,
		store.ResourceUpdate{Embedding: vector}); err != nil {
		return fmt.Errorf("store document embedding: %w", err)
	}
	res.Embedding = vector
	return nil
}

func (c *Coordinator) embedChunks(ctx context.Context, res *models.Resource, chunks []*models.Chunk) {
	if c.embedder == nil || len(chunks) == 0 {
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
		vectors, err := c.embedder.EmbedBatch(ctx, texts[offset:end])
		if err != nil {
			c.logger.Warn(ctx, "chunk embedding batch failed",
				"resource_id", res.ID, "offset", offset, "error", err)
			continue
		}
		for i, v := range vectors {
			if offset+i < len(chunks) {
				chunks[offset+i].Embedding = v
			}
		}
	}
}

func (c *Coordinator) updateQueueDepth() {
	if c.metrics != nil {
		c.metrics.ReindexQueueDepth.Set(float64(len(c.pending)))
	}
}

// mergeEvents unions the changed-field sets, keeping the newest
// timestamp.
func mergeEvents(older, newer *models.ChangeEvent) *models.ChangeEvent {
	merged := &models.ChangeEvent{
		TenantID:      newer.TenantID,
		ResourceID:    newer.ResourceID,
		ChangedFields: append([]string(nil), newer.ChangedFields...),
		OccurredAt:    newer.OccurredAt,
	}
	for _, field := range older.ChangedFields {
		if !merged.Changed(field) {
			merged.ChangedFields = append(merged.ChangedFields, field)
		}
	}
	if older.OccurredAt.After(merged.OccurredAt) {
		merged.OccurredAt = older.OccurredAt
	}
	return merged
}
