package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/papertrove/papertrove/internal/auth"
	blobmemory "github.com/papertrove/papertrove/internal/blob/memory"
	"github.com/papertrove/papertrove/internal/category"
	"github.com/papertrove/papertrove/internal/chunker"
	"github.com/papertrove/papertrove/internal/extract"
	"github.com/papertrove/papertrove/internal/ingest"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/processor"
	"github.com/papertrove/papertrove/internal/query"
	"github.com/papertrove/papertrove/internal/reindex"
	"github.com/papertrove/papertrove/internal/search"
	storememory "github.com/papertrove/papertrove/internal/store/memory"
	suggestmemory "github.com/papertrove/papertrove/internal/suggest/memory"
	"github.com/papertrove/papertrove/pkg/models"
)

type testGateway struct {
	handler http.Handler
	store   *storememory.Store
	blobs   *blobmemory.Store
	auth    *auth.Service
}

func newTestGateway(t *testing.T, authCfg auth.Config) *testGateway {
	t.Helper()

	st := storememory.New(3)
	blobs := blobmemory.New()
	suggestions := suggestmemory.New()
	logger := observability.NewNopLogger()
	audit := observability.NewAuditLogger(logger)
	categories := category.NewService(st)

	registry := processor.NewRegistry()
	registry.Register(processor.NewTextProcessor())

	ch := chunker.New(chunker.Config{})
	extractor := extract.NewExtractor(nil, logger, nil, extract.Config{})

	ingestor := ingest.New(ingest.Deps{
		Store:       st,
		Blobs:       blobs,
		Registry:    registry,
		Extractor:   extractor,
		Chunker:     ch,
		Suggestions: suggestions,
		Categories:  categories,
		Audit:       audit,
		Logger:      logger,
	}, ingest.Config{})

	analyzer := query.NewAnalyzer(categories, logger)
	searcher := search.New(st, nil, analyzer, logger, nil, search.Config{})

	reindexer := reindex.New(reindex.Deps{
		Store:       st,
		Chunker:     ch,
		Extractor:   extractor,
		Suggestions: suggestions,
		Logger:      logger,
	}, reindex.Config{Workers: 1})
	reindexer.Start()
	t.Cleanup(reindexer.Close)

	authService := auth.NewService(authCfg)

	server := New(Config{}, Deps{
		Store:       st,
		Blobs:       blobs,
		Searcher:    searcher,
		Suggestions: suggestions,
		Ingestor:    ingestor,
		Reindexer:   reindexer,
		Categories:  categories,
		Auth:        authService,
		Audit:       audit,
		Logger:      logger,
	})

	return &testGateway{
		handler: server.routes(),
		store:   st,
		blobs:   blobs,
		auth:    authService,
	}
}

func (g *testGateway) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, fileName, contentType, body string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName)}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(body)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, writer.FormDataContentType()
}

func uploadResource(t *testing.T, g *testGateway, fileName, body string) *models.Resource {
	t.Helper()
	buf, contentType := multipartUpload(t, fileName, "text/plain", body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", buf)
	req.Header.Set("Content-Type", contentType)

	rec := g.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res models.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	return &res
}

func TestHealthzOpen(t *testing.T) {
	g := newTestGateway(t, auth.Config{JWTSecret: "secret"})

	rec := g.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestUploadAndSearch(t *testing.T) {
	g := newTestGateway(t, auth.Config{})
	res := uploadResource(t, g, "march-invoice.txt", "Invoice INV-2024 from the vendor for 125.50 EUR")

	rec := g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=INV-2024", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ResourceID != res.ID {
		t.Errorf("results = %+v, want one hit for %s", resp.Results, res.ID)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	g := newTestGateway(t, auth.Config{})

	rec := g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	g := newTestGateway(t, auth.Config{})

	buf, contentType := multipartUpload(t, "binary.exe", "application/octet-stream", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", buf)
	req.Header.Set("Content-Type", contentType)

	rec := g.do(t, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestUploadWithDescriptionAndTags(t *testing.T) {
	g := newTestGateway(t, auth.Config{})

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", "receipt.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("parking garage receipt")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("description", "downtown parking"); err != nil {
		t.Fatalf("write description: %v", err)
	}
	if err := writer.WriteField("tags", "travel, expenses"); err != nil {
		t.Fatalf("write tags: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resources", buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := g.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res models.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	if res.Summary != "downtown parking" {
		t.Errorf("Summary = %q, want downtown parking", res.Summary)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "travel" || res.Tags[1] != "expenses" {
		t.Errorf("Tags = %v, want [travel expenses]", res.Tags)
	}
}

func TestSnippetRoundTrip(t *testing.T) {
	g := newTestGateway(t, auth.Config{})

	body := strings.NewReader(`{"title": "meeting notes", "text": "discussed quarterly roadmap",
		"tags": ["planning"], "snippet_source": "clipper"}`)
	rec := g.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/snippets", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("snippet status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res models.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	if len(res.Tags) != 1 || res.Tags[0] != "planning" {
		t.Errorf("Tags = %v, want [planning]", res.Tags)
	}
	if res.TechnicalMetadata["snippet_source"] != "clipper" {
		t.Errorf("snippet_source = %q, want clipper", res.TechnicalMetadata["snippet_source"])
	}

	rec = g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resources/"+res.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
}

func TestSnippetRejectsEmptyTitle(t *testing.T) {
	g := newTestGateway(t, auth.Config{})

	body := strings.NewReader(`{"title": "", "text": "orphan"}`)
	rec := g.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/snippets", body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateResource(t *testing.T) {
	g := newTestGateway(t, auth.Config{})
	res := uploadResource(t, g, "notes.txt", "original body text")

	body := strings.NewReader(`{"summary": "updated summary", "tags": ["finance"]}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/resources/"+res.ID, body)
	rec := g.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}

	var updated models.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	if updated.Summary != "updated summary" {
		t.Errorf("Summary = %q, want updated summary", updated.Summary)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "finance" {
		t.Errorf("Tags = %v, want [finance]", updated.Tags)
	}
}

func TestDeleteResource(t *testing.T) {
	g := newTestGateway(t, auth.Config{})
	res := uploadResource(t, g, "notes.txt", "throwaway text")

	rec := g.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/resources/"+res.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resources/"+res.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestDownload(t *testing.T) {
	g := newTestGateway(t, auth.Config{})
	content := "the original file bytes"
	res := uploadResource(t, g, "report.txt", content)

	rec := g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resources/"+res.ID+"/file", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != content {
		t.Errorf("body = %q, want original content", body)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "report.txt") {
		t.Errorf("Content-Disposition = %q, missing file name", got)
	}
}

func TestCategoryAdmin(t *testing.T) {
	g := newTestGateway(t, auth.Config{})

	body := strings.NewReader(`{"entities": ["apollo"], "match_score": 0.8, "enabled": true}`)
	rec := g.do(t, httptest.NewRequest(http.MethodPut, "/api/v1/categories/project", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = g.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/categories/project/entities",
		strings.NewReader(`{"entity": "Artemis"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("add entity status = %d, body %s", rec.Code, rec.Body.String())
	}
	var cat models.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}
	if !cat.HasEntity("artemis") {
		t.Errorf("entities = %v, want artemis present", cat.Entities)
	}

	rec = g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("list status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	g := newTestGateway(t, auth.Config{})
	uploadResource(t, g, "one.txt", "first document body")

	rec := g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Resources != 1 {
		t.Errorf("Resources = %d, want 1", stats.Resources)
	}
	if stats.BlobCount != 1 {
		t.Errorf("BlobCount = %d, want 1", stats.BlobCount)
	}
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	g := newTestGateway(t, auth.Config{JWTSecret: "secret", TokenExpiry: time.Hour})

	rec := g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resources", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthBearerToken(t *testing.T) {
	g := newTestGateway(t, auth.Config{JWTSecret: "secret", TokenExpiry: time.Hour})

	token, err := g.auth.GenerateJWT(&auth.Identity{UserID: "user-1", TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := g.do(t, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func TestTenantOverrideRequiresAdmin(t *testing.T) {
	g := newTestGateway(t, auth.Config{JWTSecret: "secret", TokenExpiry: time.Hour})

	userToken, err := g.auth.GenerateJWT(&auth.Identity{UserID: "user-1", TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	adminToken, err := g.auth.GenerateJWT(&auth.Identity{UserID: "admin-1", TenantID: "tenant-a", Admin: true})
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resources?tenant=tenant-b", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	if rec := g.do(t, req); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin override status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/resources?tenant=tenant-b", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	if rec := g.do(t, req); rec.Code != http.StatusOK {
		t.Errorf("admin override status = %d, want 200", rec.Code)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	g := newTestGateway(t, auth.Config{})
	uploadResource(t, g, "quarterly-report.txt", "numbers for the quarter")

	rec := g.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/suggest?q=quart", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest status = %d", rec.Code)
	}
	var resp struct {
		Suggestions []*models.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Suggestions) == 0 {
		t.Error("no suggestions for indexed file name")
	}
}

type failingSuggestIndex struct{}

func (failingSuggestIndex) IndexResource(context.Context, *models.Resource) error  { return nil }
func (failingSuggestIndex) RemoveResource(context.Context, *models.Resource) error { return nil }
func (failingSuggestIndex) QueryPrefix(context.Context, string, string, int) ([]*models.Suggestion, error) {
	return nil, errors.New("index unavailable")
}
func (failingSuggestIndex) Close() error { return nil }

func TestSuggestDegradesOnIndexFailure(t *testing.T) {
	logger := observability.NewNopLogger()
	server := New(Config{}, Deps{
		Store:       storememory.New(3),
		Suggestions: failingSuggestIndex{},
		Auth:        auth.NewService(auth.Config{}),
		Logger:      logger,
	})

	rec := httptest.NewRecorder()
	server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/suggest?q=quart", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest status = %d, want 200 despite index failure", rec.Code)
	}
	var resp struct {
		Suggestions []*models.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Suggestions) != 0 {
		t.Errorf("suggestions = %v, want empty list", resp.Suggestions)
	}
}
