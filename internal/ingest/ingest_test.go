package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	blobmemory "github.com/papertrove/papertrove/internal/blob/memory"
	"github.com/papertrove/papertrove/internal/category"
	"github.com/papertrove/papertrove/internal/chunker"
	"github.com/papertrove/papertrove/internal/extract"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/processor"
	storememory "github.com/papertrove/papertrove/internal/store/memory"
	suggestmemory "github.com/papertrove/papertrove/internal/suggest/memory"
	"github.com/papertrove/papertrove/pkg/models"
)

type fakeEmbedder struct {
	vector      []float32
	err         error
	calls       int
	docInputs   []string
	batchInputs []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.docInputs = append(f.docInputs, text)
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batchInputs = append(f.batchInputs, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string      { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return len(f.vector) }
func (f *fakeEmbedder) MaxBatchSize() int { return 2 }

type failingProcessor struct{}

func (failingProcessor) Process(context.Context, []byte) (*processor.Result, error) {
	return nil, errors.New("corrupt input")
}
func (failingProcessor) FileType() models.FileType    { return models.FileTypePDF }
func (failingProcessor) SupportedTypes() []string     { return []string{"application/pdf"} }
func (failingProcessor) SupportedExtensions() []string { return []string{"pdf"} }

type testEnv struct {
	coordinator *Coordinator
	store       *storememory.Store
	blobs       *blobmemory.Store
	suggestions *suggestmemory.Index
}

func newTestEnv(t *testing.T, embedder *fakeEmbedder, cfg Config) *testEnv {
	t.Helper()
	st := storememory.New(3)
	blobs := blobmemory.New()
	suggestions := suggestmemory.New()
	logger := observability.NewNopLogger()

	registry := processor.NewRegistry()
	registry.Register(processor.NewTextProcessor())
	registry.Register(failingProcessor{})

	deps := Deps{
		Store:       st,
		Blobs:       blobs,
		Registry:    registry,
		Extractor:   extract.NewExtractor(nil, logger, nil, extract.Config{}),
		Chunker:     chunker.New(chunker.Config{}),
		Suggestions: suggestions,
		Categories:  category.NewService(st),
		Audit:       observability.NewAuditLogger(logger),
		Logger:      logger,
	}
	if embedder != nil {
		deps.Embedder = embedder
	}
	return &testEnv{
		coordinator: New(deps, cfg),
		store:       st,
		blobs:       blobs,
		suggestions: suggestions,
	}
}

func TestIngestFile(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	env := newTestEnv(t, embedder, Config{})
	ctx := context.Background()

	body := "Invoice INV-2024 from Google for 125.50 EUR due 2024-03-15 billing@google.com"
	res, err := env.coordinator.IngestFile(ctx, "tenant-a", "user-1", &Upload{
		FileName: "march-invoice.txt",
		MimeType: "text/plain",
		Data:     []byte(body),
	})
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	if res.FileType != models.FileTypeText {
		t.Errorf("FileType = %s, want text", res.FileType)
	}
	if res.FileID == "" {
		t.Error("FileID is empty")
	}
	if res.Vendor != "google" {
		t.Errorf("Vendor = %q, want google", res.Vendor)
	}
	if len(res.AmountsCents) != 1 || res.AmountsCents[0] != 12550 || res.Currency != "EUR" {
		t.Errorf("amounts = %v %s, want [12550] EUR", res.AmountsCents, res.Currency)
	}
	if len(res.Dates) != 1 || res.Dates[0] != "2024-03-15" {
		t.Errorf("Dates = %v", res.Dates)
	}
	if !containsString(res.Keywords, "inv-2024") {
		t.Errorf("Keywords = %v, want inv-2024 included", res.Keywords)
	}
	if len(res.Embedding) != 3 {
		t.Errorf("document embedding = %v, want 3-dim vector", res.Embedding)
	}

	stored, err := env.store.GetResource(ctx, "tenant-a", res.ID)
	if err != nil {
		t.Fatalf("GetResource() error = %v", err)
	}
	if stored.ChunkCount == 0 {
		t.Error("stored resource has no chunks")
	}
	chunks, err := env.store.GetChunks(ctx, "tenant-a", res.ID)
	if err != nil {
		t.Fatalf("GetChunks() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks persisted")
	}
	if chunks[0].SearchableText == "" {
		t.Error("chunk searchable text is empty")
	}
	if len(chunks[0].Embedding) != 3 {
		t.Errorf("chunk embedding = %v, want 3-dim vector", chunks[0].Embedding)
	}

	reader, mimeType, err := env.blobs.Get(ctx, "tenant-a", res.FileID)
	if err != nil {
		t.Fatalf("blob Get() error = %v", err)
	}
	reader.Close()
	if mimeType != "text/plain; charset=utf-8" && mimeType != "text/plain" {
		t.Errorf("blob mime = %q", mimeType)
	}

	suggestions, err := env.suggestions.QueryPrefix(ctx, "tenant-a", "march", 5)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) == 0 {
		t.Error("file name not indexed for suggestions")
	}
}

func TestIngestFileTooLarge(t *testing.T) {
	env := newTestEnv(t, nil, Config{MaxFileBytes: 10})

	_, err := env.coordinator.IngestFile(context.Background(), "tenant-a", "user-1", &Upload{
		FileName: "big.txt",
		MimeType: "text/plain",
		Data:     []byte("this body is larger than ten bytes"),
	})
	if !errors.Is(err, models.ErrTooLarge) {
		t.Errorf("IngestFile() error = %v, want ErrTooLarge", err)
	}
}

func TestIngestFileUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	_, err := env.coordinator.IngestFile(context.Background(), "tenant-a", "user-1", &Upload{
		FileName: "movie.mp4",
		MimeType: "video/mp4",
		Data:     []byte("bytes"),
	})
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("IngestFile() error = %v, want ErrUnsupportedFormat", err)
	}

	count, _, statsErr := env.blobs.Stats(context.Background(), "tenant-a")
	if statsErr != nil {
		t.Fatalf("Stats() error = %v", statsErr)
	}
	if count != 0 {
		t.Errorf("blob count = %d, want 0 after rejected upload", count)
	}
}

func TestIngestFileProcessorFailureRollsBackBlob(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	_, err := env.coordinator.IngestFile(context.Background(), "tenant-a", "user-1", &Upload{
		FileName: "broken.pdf",
		MimeType: "application/pdf",
		Data:     []byte("not a pdf"),
	})
	if !errors.Is(err, models.ErrProcessor) {
		t.Errorf("IngestFile() error = %v, want ErrProcessor", err)
	}

	count, _, statsErr := env.blobs.Stats(context.Background(), "tenant-a")
	if statsErr != nil {
		t.Fatalf("Stats() error = %v", statsErr)
	}
	if count != 0 {
		t.Errorf("blob count = %d, want 0 after rollback", count)
	}
}

func TestIngestEmbeddingFailureDegrades(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("service down")}
	env := newTestEnv(t, embedder, Config{})
	ctx := context.Background()

	res, err := env.coordinator.IngestFile(ctx, "tenant-a", "user-1", &Upload{
		FileName: "notes.txt",
		MimeType: "text/plain",
		Data:     []byte("plain searchable notes"),
	})
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if res.Embedding != nil {
		t.Errorf("Embedding = %v, want nil after failure", res.Embedding)
	}

	chunks, err := env.store.GetChunks(ctx, "tenant-a", res.ID)
	if err != nil {
		t.Fatalf("GetChunks() error = %v", err)
	}
	for _, chunk := range chunks {
		if chunk.Embedding != nil {
			t.Errorf("chunk %s embedding = %v, want nil", chunk.ID, chunk.Embedding)
		}
	}
}

func TestIngestSnippet(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	ctx := context.Background()

	res, err := env.coordinator.IngestSnippet(ctx, "tenant-a", "user-1", &Snippet{
		Title:  "wifi password",
		Body:   "office network key is hunter2",
		Tags:   []string{"it", " office "},
		Source: "manual",
	})
	if err != nil {
		t.Fatalf("IngestSnippet() error = %v", err)
	}
	if res.FileType != models.FileTypeSnippet {
		t.Errorf("FileType = %s, want snippet", res.FileType)
	}
	if res.FileID != "" {
		t.Errorf("FileID = %q, want empty for snippet", res.FileID)
	}
	if res.FileName != "wifi password" {
		t.Errorf("FileName = %q", res.FileName)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "it" || res.Tags[1] != "office" {
		t.Errorf("Tags = %v, want [it office]", res.Tags)
	}
	if res.TechnicalMetadata["snippet_source"] != "manual" {
		t.Errorf("snippet_source = %q, want manual", res.TechnicalMetadata["snippet_source"])
	}
	if res.TechnicalMetadata["characters"] == "" {
		t.Error("processor metadata lost when merging snippet_source")
	}

	if _, err := env.coordinator.IngestSnippet(ctx, "tenant-a", "user-1", &Snippet{Body: "body"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty title error = %v, want ErrValidation", err)
	}
}

func TestIngestFileUserMetadata(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	ctx := context.Background()

	res, err := env.coordinator.IngestFile(ctx, "tenant-a", "user-1", &Upload{
		FileName: "scan.txt",
		MimeType: "text/plain",
		Data:     []byte("handwritten meeting notes"),
		Summary:  " insurance renewal paperwork ",
		Tags:     []string{"insurance", "", "insurance", "2024"},
	})
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	if res.Summary != "insurance renewal paperwork" {
		t.Errorf("Summary = %q, want trimmed user description", res.Summary)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "insurance" || res.Tags[1] != "2024" {
		t.Errorf("Tags = %v, want [insurance 2024]", res.Tags)
	}

	chunks, err := env.store.GetChunks(ctx, "tenant-a", res.ID)
	if err != nil {
		t.Fatalf("GetChunks() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks persisted")
	}
	if !strings.Contains(chunks[0].SearchableText, "insurance renewal") {
		t.Errorf("SearchableText = %q, want user summary included", chunks[0].SearchableText)
	}
}

func TestEmbeddingInputs(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0}}
	env := newTestEnv(t, embedder, Config{})
	ctx := context.Background()

	res, err := env.coordinator.IngestFile(ctx, "tenant-a", "user-1", &Upload{
		FileName: "renewal.txt",
		MimeType: "text/plain",
		Data:     []byte("policy POL-2024 renews in march"),
		Summary:  "insurance renewal",
	})
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	if len(embedder.docInputs) != 1 {
		t.Fatalf("document embed calls = %d, want 1", len(embedder.docInputs))
	}
	if !strings.HasPrefix(embedder.docInputs[0], "insurance renewal") {
		t.Errorf("document embed input = %q, want summary first", embedder.docInputs[0])
	}
	if !strings.Contains(embedder.docInputs[0], "pol-2024") {
		t.Errorf("document embed input = %q, want keywords included", embedder.docInputs[0])
	}

	chunks, err := env.store.GetChunks(ctx, "tenant-a", res.ID)
	if err != nil {
		t.Fatalf("GetChunks() error = %v", err)
	}
	if len(embedder.batchInputs) != len(chunks) {
		t.Fatalf("chunk embed inputs = %d, want %d", len(embedder.batchInputs), len(chunks))
	}
	if embedder.batchInputs[0] != chunks[0].SearchableText {
		t.Errorf("chunk embed input = %q, want searchable text %q",
			embedder.batchInputs[0], chunks[0].SearchableText)
	}
}

func TestDeleteCascades(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	ctx := context.Background()

	res, err := env.coordinator.IngestFile(ctx, "tenant-a", "user-1", &Upload{
		FileName: "contract.txt",
		MimeType: "text/plain",
		Data:     []byte("signed service agreement"),
	})
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	if err := env.coordinator.Delete(ctx, "tenant-a", "user-1", res.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := env.store.GetResource(ctx, "tenant-a", res.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetResource() error = %v, want ErrNotFound", err)
	}
	if _, _, err := env.blobs.Get(ctx, "tenant-a", res.FileID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("blob Get() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteUnknownResource(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	err := env.coordinator.Delete(context.Background(), "tenant-a", "user-1", "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
