package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/pkg/models"
)

const chunkColumns = `id, resource_id, tenant_id, chunk_index, char_start, char_end,
	text, text_normalized, ocr_text, ocr_text_normalized, image_description,
	searchable_text, page_number, row_index, embedding, created_at`

// GetChunks retrieves all chunks for a resource in index order.
func (s *Store) GetChunks(ctx context.Context, tenantID, resourceID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks
		WHERE tenant_id = $1 AND resource_id = $2
		ORDER BY chunk_index ASC
	`, tenantID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// ReplaceChunks atomically swaps the chunk set of a resource.
func (s *Store) ReplaceChunks(ctx context.Context, tenantID, resourceID string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE tenant_id = $1 AND resource_id = $2`, tenantID, resourceID)
	if err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE resources SET chunk_count = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, resourceID, len(chunks))
	if err != nil {
		return fmt.Errorf("update chunk count: %w", err)
	}

	return tx.Commit()
}

// UpdateChunkSearchableText rewrites searchable_text for the given chunks.
func (s *Store) UpdateChunkSearchableText(ctx context.Context, tenantID string, texts map[string]string) error {
	if len(texts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE chunks SET searchable_text = $3 WHERE tenant_id = $1 AND id = $2`)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for id, text := range texts {
		if _, err := stmt.ExecContext(ctx, tenantID, id, text); err != nil {
			return fmt.Errorf("update chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// UpdateChunkEmbeddings updates embeddings for the given chunks.
func (s *Store) UpdateChunkEmbeddings(ctx context.Context, tenantID string, embeddings map[string][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE chunks SET embedding = $3 WHERE tenant_id = $1 AND id = $2`)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for id, embedding := range embeddings {
		if _, err := stmt.ExecContext(ctx, tenantID, id, encodeEmbedding(embedding)); err != nil {
			return fmt.Errorf("update chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// KeywordSearch performs a substring match of the normalized phrase
// against one chunk field.
func (s *Store) KeywordSearch(ctx context.Context, tenantID, phrase string, field models.ChunkField, limit int) ([]*store.ChunkHit, error) {
	column, err := chunkFieldColumn(field)
	if err != nil {
		return nil, err
	}
	if phrase == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+chunkColumns+` FROM chunks
		WHERE tenant_id = $1 AND %s LIKE '%%' || $2 || '%%'
		ORDER BY chunk_index ASC
		LIMIT $3
	`, column), tenantID, escapeLike(phrase), limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}

	hits := make([]*store.ChunkHit, 0, len(chunks))
	for _, chunk := range chunks {
		hits = append(hits, &store.ChunkHit{
			Chunk:       chunk,
			Occurrences: strings.Count(chunkFieldValue(chunk, field), phrase),
		})
	}
	return hits, nil
}

// TokenSearch returns chunks whose field contains at least one of the
// tokens, with per-chunk matched-token counts.
func (s *Store) TokenSearch(ctx context.Context, tenantID string, tokens []string, field models.ChunkField, limit int) ([]*store.ChunkHit, error) {
	column, err := chunkFieldColumn(field)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	conds := make([]string, 0, len(tokens))
	args := []any{tenantID}
	for _, token := range tokens {
		args = append(args, escapeLike(token))
		conds = append(conds, fmt.Sprintf("%s LIKE '%%' || $%d || '%%'", column, len(args)))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+chunkColumns+` FROM chunks
		WHERE tenant_id = $1 AND (%s)
		LIMIT $%d
	`, strings.Join(conds, " OR "), len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("token search: %w", err)
	}
	defer rows.Close()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}

	hits := make([]*store.ChunkHit, 0, len(chunks))
	for _, chunk := range chunks {
		value := chunkFieldValue(chunk, field)
		matched := 0
		for _, token := range tokens {
			if strings.Contains(value, token) {
				matched++
			}
		}
		hits = append(hits, &store.ChunkHit{Chunk: chunk, MatchedTokens: matched})
	}
	return hits, nil
}

// VectorSearch performs cosine-similarity top-K over stored embeddings.
// Similarity is computed in-process over the decoded vectors, so the
// database needs no vector extension.
func (s *Store) VectorSearch(ctx context.Context, tenantID string, vector []float32, scope store.VectorScope, limit int) ([]*store.VectorHit, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var hits []*store.VectorHit

	switch scope {
	case store.ScopeResource:
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, embedding FROM resources
			WHERE tenant_id = $1 AND embedding IS NOT NULL
		`, tenantID)
		if err != nil {
			return nil, fmt.Errorf("vector search resources: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			var embeddingStr sql.NullString
			if err := rows.Scan(&id, &embeddingStr); err != nil {
				return nil, fmt.Errorf("scan resource embedding: %w", err)
			}
			if !embeddingStr.Valid {
				continue
			}
			sim, ok := cosineSimilarity(vector, decodeEmbedding(embeddingStr.String))
			if !ok {
				continue
			}
			hits = append(hits, &store.VectorHit{ResourceID: id, Similarity: sim})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("resource embeddings: %w", err)
		}

	case store.ScopeChunk:
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+chunkColumns+` FROM chunks
			WHERE tenant_id = $1 AND embedding IS NOT NULL
		`, tenantID)
		if err != nil {
			return nil, fmt.Errorf("vector search chunks: %w", err)
		}
		defer rows.Close()

		chunks, err := collectChunks(rows)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			sim, ok := cosineSimilarity(vector, chunk.Embedding)
			if !ok {
				continue
			}
			hits = append(hits, &store.VectorHit{
				ResourceID: chunk.ResourceID,
				Chunk:      chunk,
				Similarity: sim,
			})
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

	query := `SELECT ` + resourceColumns + ` FROM resources WHERE tenant_id = $1`
	args := []any{tenantID}

	if len(filter.Vendors) > 0 {
		args = append(args, pq.Array(filter.Vendors))
		query += fmt.Sprintf(" AND lower(vendor) = ANY($%d)", len(args))
	}
	if len(filter.Entities) > 0 {
		args = append(args, pq.Array(filter.Entities))
		query += fmt.Sprintf(" AND entities && $%d", len(args))
	}
	if len(filter.Keywords) > 0 {
		args = append(args, pq.Array(filter.Keywords))
		query += fmt.Sprintf(" AND keywords && $%d", len(args))
	}
	if len(filter.AmountsCents) > 0 {
		args = append(args, pq.Array(filter.AmountsCents))
		query += fmt.Sprintf(" AND amounts_cents && $%d", len(args))
		if filter.Currency != "" {
			args = append(args, filter.Currency)
			query += fmt.Sprintf(" AND (currency = '' OR currency = $%d)", len(args))
		}
	} else if filter.HasAmounts {
		query += " AND cardinality(amounts_cents) > 0"
	}
	if len(filter.Dates) > 0 {
		args = append(args, pq.Array(filter.Dates))
		query += fmt.Sprintf(" AND dates && $%d", len(args))
	}
	if len(filter.FileTypes) > 0 {
		types := make([]string, len(filter.FileTypes))
		for i, t := range filter.FileTypes {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		query += fmt.Sprintf(" AND file_type = ANY($%d)", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter search: %w", err)
	}
	defer rows.Close()

	var results []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func collectChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var embeddingStr sql.NullString

		err := rows.Scan(
			&chunk.ID, &chunk.ResourceID, &chunk.TenantID, &chunk.Index,
			&chunk.CharStart, &chunk.CharEnd, &chunk.Text, &chunk.TextNormalized,
			&chunk.OCRText, &chunk.OCRTextNormalized, &chunk.ImageDescription,
			&chunk.SearchableText, &chunk.PageNumber, &chunk.RowIndex,
			&embeddingStr, &chunk.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}

		if embeddingStr.Valid {
			chunk.Embedding = decodeEmbedding(embeddingStr.String)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// chunkFieldColumn maps a chunk field to its column, rejecting anything
// else so field names can never reach the SQL text unchecked.
func chunkFieldColumn(field models.ChunkField) (string, error) {
	switch field {
	case models.ChunkFieldSearchable:
		return "searchable_text", nil
	case models.ChunkFieldText:
		return "text_normalized", nil
	case models.ChunkFieldOCR:
		return "ocr_text_normalized", nil
	case models.ChunkFieldImageDescription:
		return "image_description", nil
	}
	return "", fmt.Errorf("unknown chunk field %q", field)
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

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
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
