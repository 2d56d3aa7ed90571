package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/papertrove/papertrove/internal/ingest"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/pkg/models"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing;
// larger files spill to disk before the size check.
const maxMultipartMemory = 16 << 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "search")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, r, fmt.Errorf("query parameter q is required: %w", models.ErrValidation))
		return
	}
	limit := parseIntParam(r, "limit", 0)

	resp, err := s.deps.Searcher.Search(r.Context(), tenantID, query, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "suggest")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prefix := r.URL.Query().Get("q")
	limit := parseIntParam(r, "limit", 0)

	start := time.Now()
	suggestions, err := s.deps.Suggestions.QueryPrefix(r.Context(), tenantID, prefix, limit)
	if s.deps.Metrics != nil {
		s.deps.Metrics.SuggestDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		// Autocomplete never fails the request; an index outage
		// degrades to no suggestions.
		s.logger.Warn(r.Context(), "suggestion query failed", "error", err)
		suggestions = nil
	}
	if suggestions == nil {
		suggestions = []*models.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tenantID, callerID, err := s.tenantFor(r, "upload")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.writeError(w, r, fmt.Errorf("parse multipart form: %w: %w", models.ErrValidation, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("form field file is required: %w", models.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := s.deps.Ingestor.IngestFile(r.Context(), tenantID, callerID, &ingest.Upload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
		Summary:  r.FormValue("description"),
		Tags:     splitTags(r.FormValue("tags")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type snippetRequest struct {
	Title  string   `json:"title"`
	Text   string   `json:"text"`
	Tags   []string `json:"tags"`
	Source string   `json:"snippet_source"`
}

func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	tenantID, callerID, err := s.tenantFor(r, "snippet")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req snippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("decode snippet: %w", models.ErrValidation))
		return
	}

	res, err := s.deps.Ingestor.IngestSnippet(r.Context(), tenantID, callerID, &ingest.Snippet{
		Title:  req.Title,
		Body:   req.Text,
		Tags:   req.Tags,
		Source: req.Source,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "list")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := &store.ListOptions{
		Limit:     parseIntParam(r, "limit", 100),
		Offset:    parseIntParam(r, "offset", 0),
		FileType:  models.FileType(r.URL.Query().Get("file_type")),
		OrderDesc: r.URL.Query().Get("order") != "asc",
	}
	resources, err := s.deps.Store.ListResources(r.Context(), tenantID, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "get")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Store.GetResource(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type resourceUpdateRequest struct {
	Summary     *string   `json:"summary"`
	Tags        *[]string `json:"tags"`
	Description *string   `json:"description"`
	FileName    *string   `json:"file_name"`
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	tenantID, callerID, err := s.tenantFor(r, "update")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req resourceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("decode update: %w", models.ErrValidation))
		return
	}

	update := store.ResourceUpdate{
		Summary:  req.Summary,
		Tags:     req.Tags,
		FileName: req.FileName,
	}
	if req.Description != nil {
		update.TechnicalMetadata = map[string]string{"description": *req.Description}
	}

	res, changed, err := s.deps.Store.UpdateResource(r.Context(), tenantID, r.PathValue("id"), update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if len(changed) > 0 && s.deps.Reindexer != nil {
		s.deps.Reindexer.Enqueue(&models.ChangeEvent{
			TenantID:      tenantID,
			ResourceID:    res.ID,
			ChangedFields: changed,
			OccurredAt:    time.Now(),
		})
	}
	if s.deps.Audit != nil {
		s.deps.Audit.Record(r.Context(), tenantID, callerID, observability.AuditUpdate, res.ID)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	tenantID, callerID, err := s.tenantFor(r, "delete")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.deps.Ingestor.Delete(r.Context(), tenantID, callerID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	tenantID, callerID, err := s.tenantFor(r, "download")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Store.GetResource(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.FileID == "" {
		s.writeError(w, r, fmt.Errorf("resource %s has no backing file: %w", res.ID, models.ErrNotFound))
		return
	}

	reader, mimeType, err := s.deps.Blobs.Get(r.Context(), tenantID, res.FileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer reader.Close()

	if res.MimeType != "" {
		mimeType = res.MimeType
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", res.FileName))
	if res.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(res.SizeBytes, 10))
	}
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Warn(r.Context(), "download interrupted", "resource_id", res.ID, "error", err)
		return
	}

	if s.deps.Audit != nil {
		s.deps.Audit.Record(r.Context(), tenantID, callerID, observability.AuditDownload, res.ID)
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "list_categories")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	categories, err := s.deps.Categories.List(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "get_category")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cat, err := s.deps.Categories.Get(r.Context(), tenantID, r.PathValue("type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	tenantID, callerID, err := s.tenantFor(r, "upsert_category")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var cat models.Category
	if err := json.NewDecoder(r.Body).Decode(&cat); err != nil {
		s.writeError(w, r, fmt.Errorf("decode category: %w", models.ErrValidation))
		return
	}
	cat.TenantID = tenantID
	cat.Type = r.PathValue("type")

	if err := s.deps.Categories.Upsert(r.Context(), &cat); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Audit != nil {
		s.deps.Audit.Record(r.Context(), tenantID, callerID, observability.AuditUpdate, "category/"+cat.Type)
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleAddEntity(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "add_entity")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Entity string `json:"entity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Entity == "" {
		s.writeError(w, r, fmt.Errorf("field entity is required: %w", models.ErrValidation))
		return
	}

	cat, err := s.deps.Categories.AddEntity(r.Context(), tenantID, r.PathValue("type"), req.Entity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "remove_entity")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cat, err := s.deps.Categories.RemoveEntity(r.Context(), tenantID, r.PathValue("type"), r.PathValue("entity"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleSetIgnoredWords(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "set_ignored_words")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Words []string `json:"words"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("decode ignored words: %w", models.ErrValidation))
		return
	}

	cat, err := s.deps.Categories.SetIgnoredWords(r.Context(), tenantID, r.PathValue("type"), req.Words)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleSetTriggerKeywords(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "set_trigger_keywords")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("decode trigger keywords: %w", models.ErrValidation))
		return
	}

	cat, err := s.deps.Categories.SetTriggerKeywords(r.Context(), tenantID, r.PathValue("type"), req.Keywords)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

type statsResponse struct {
	*store.TenantStats
	BlobCount int64 `json:"blob_count"`
	BlobBytes int64 `json:"blob_bytes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tenantID, _, err := s.tenantFor(r, "stats")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stats, err := s.deps.Store.Stats(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := statsResponse{TenantStats: stats}
	if s.deps.Blobs != nil {
		count, bytes, err := s.deps.Blobs.Stats(r.Context(), tenantID)
		if err != nil {
			s.logger.Warn(r.Context(), "blob stats failed", "error", err)
		} else {
			resp.BlobCount = count
			resp.BlobBytes = bytes
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// splitTags parses a comma-separated tag list from a form field.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
