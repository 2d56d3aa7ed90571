// Package postgres provides a DocumentStore implementation backed by
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.DocumentStore using PostgreSQL.
type Store struct {
	db        *sql.DB
	dimension int
	ownsDB    bool // whether this store owns the db connection
}

var _ store.DocumentStore = (*Store)(nil)

// Config contains configuration for the Postgres store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	// If empty, DB must be provided.
	DSN string

	// DB is an existing database connection to reuse.
	// If provided, DSN is ignored and the store will not close the connection.
	DB *sql.DB

	// Dimension is the embedding dimension (e.g., 1536 for text-embedding-3-small).
	Dimension int

	// RunMigrations controls whether to run migrations on startup.
	RunMigrations bool
}

// New creates a new Postgres document store.
func New(cfg Config) (*Store, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	var db *sql.DB
	var ownsDB bool
	var err error

	if cfg.DB != nil {
		db = cfg.DB
	} else if cfg.DSN != "" {
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	} else {
		return nil, fmt.Errorf("either DSN or DB must be provided")
	}

	s := &Store{
		db:        db,
		dimension: cfg.Dimension,
		ownsDB:    ownsDB,
	}

	if cfg.RunMigrations {
		if err := s.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if err := s.ensureDimension(context.Background()); err != nil {
		if ownsDB {
			db.Close()
		}
		return nil, err
	}

	return s, nil
}

// ensureDimension records the embedding dimension on first startup and
// refuses to start against a store whose persisted vectors were written
// with a different dimension.
func (s *Store) ensureDimension(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create store_meta: %w", err)
	}

	var stored string
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = 'embedding_dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES ('embedding_dimension', $1)`,
			strconv.Itoa(s.dimension)); err != nil {
			return fmt.Errorf("record embedding dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read embedding dimension: %w", err)
	}
	return checkDimension(stored, s.dimension)
}

// checkDimension compares the persisted dimension against the
// configured one. A mismatch means the stored vectors are unusable with
// the configured embedding model, so startup fails.
func checkDimension(stored string, want int) error {
	got, err := strconv.Atoi(strings.TrimSpace(stored))
	if err != nil {
		return fmt.Errorf("parse stored embedding dimension %q: %w", stored, err)
	}
	if got != want {
		return fmt.Errorf("embedding dimension mismatch: store has %d, configured %d", got, want)
	}
	return nil
}

// runMigrations applies pending database migrations.
func (s *Store) runMigrations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema_migrations: %w", err)
	}
	return applied, nil
}

const resourceColumns = `id, tenant_id, file_id, file_name, mime_type, file_type, size_bytes,
	summary, technical_metadata, tags, vendor, entities, keywords, amounts_cents,
	currency, dates, content, embedding, chunk_count, created_at, updated_at`

// PutResource stores a resource and its chunks transactionally.
func (s *Store) PutResource(ctx context.Context, res *models.Resource, chunks []*models.Chunk) error {
	if res.ID == "" || res.TenantID == "" {
		return fmt.Errorf("resource id and tenant are required: %w", models.ErrValidation)
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	res.UpdatedAt = time.Now()
	res.ChunkCount = len(chunks)

	techMeta, err := json.Marshal(orEmptyMap(res.TechnicalMetadata))
	if err != nil {
		return fmt.Errorf("marshal technical metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, res.ID, res.TenantID, res.FileID, res.FileName, res.MimeType, string(res.FileType),
		res.SizeBytes, res.Summary, string(techMeta), pq.Array(orEmpty(res.Tags)),
		res.Vendor, pq.Array(orEmpty(res.Entities)), pq.Array(orEmpty(res.Keywords)),
		pq.Array(res.AmountsCents), res.Currency, pq.Array(orEmpty(res.Dates)),
		res.Content, encodeEmbedding(res.Embedding), res.ChunkCount,
		res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("resource %s: %w", res.ID, models.ErrConflict)
		}
		return fmt.Errorf("insert resource: %w", err)
	}

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}

	return tx.Commit()
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, resource_id, tenant_id, chunk_index, char_start, char_end,
			text, text_normalized, ocr_text, ocr_text_normalized, image_description,
			searchable_text, page_number, row_index, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.ResourceID, chunk.TenantID, chunk.Index,
			chunk.CharStart, chunk.CharEnd, chunk.Text, chunk.TextNormalized,
			chunk.OCRText, chunk.OCRTextNormalized, chunk.ImageDescription,
			chunk.SearchableText, chunk.PageNumber, chunk.RowIndex,
			encodeEmbedding(chunk.Embedding), chunk.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// GetResource retrieves a resource by ID within the tenant.
func (s *Store) GetResource(ctx context.Context, tenantID, id string) (*models.Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+resourceColumns+` FROM resources WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	res, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resource %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query resource: %w", err)
	}
	return res, nil
}

// GetResources retrieves a batch of resources by ID, preserving the
// input order. Missing IDs are skipped.
func (s *Store) GetResources(ctx context.Context, tenantID string, ids []string) ([]*models.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resourceColumns+` FROM resources WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Resource, len(ids))
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		byID[res.ID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}

	results := make([]*models.Resource, 0, len(byID))
	for _, id := range ids {
		if res, ok := byID[id]; ok {
			results = append(results, res)
		}
	}
	return results, nil
}

// UpdateResource applies a partial update and reports which searchable
// fields changed.
func (s *Store) UpdateResource(ctx context.Context, tenantID, id string, update store.ResourceUpdate) (*models.Resource, []string, error) {
	res, err := s.GetResource(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
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
		res.Tags = *update.Tags
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
		res.Keywords = *update.Keywords
	}
	if update.Entities != nil {
		res.Entities = *update.Entities
	}
	if update.Embedding != nil {
		res.Embedding = update.Embedding
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

	techMeta, err := json.Marshal(orEmptyMap(res.TechnicalMetadata))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal technical metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE resources SET
			file_name = $3, summary = $4, tags = $5, vendor = $6, content = $7,
			keywords = $8, entities = $9, technical_metadata = $10, embedding = $11,
			updated_at = $12
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, res.FileName, res.Summary, pq.Array(orEmpty(res.Tags)),
		res.Vendor, res.Content, pq.Array(orEmpty(res.Keywords)),
		pq.Array(orEmpty(res.Entities)), string(techMeta),
		encodeEmbedding(res.Embedding), res.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("update resource: %w", err)
	}

	return res, changed, nil
}

// DeleteResource removes a resource; chunks cascade.
func (s *Store) DeleteResource(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM resources WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("resource %s: %w", id, models.ErrNotFound)
	}
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

	query := `SELECT ` + resourceColumns + ` FROM resources WHERE tenant_id = $1`
	args := []any{tenantID}
	argNum := 2

	if opts.FileType != "" {
		query += fmt.Sprintf(" AND file_type = $%d", argNum)
		args = append(args, string(opts.FileType))
		argNum++
	}

	dir := "ASC"
	if opts.OrderDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY created_at %s LIMIT $%d OFFSET $%d", dir, argNum, argNum+1)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
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

// Stats returns per-tenant statistics.
func (s *Store) Stats(ctx context.Context, tenantID string) (*store.TenantStats, error) {
	stats := &store.TenantStats{EmbeddingDimension: s.dimension}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM resources WHERE tenant_id = $1
	`, tenantID).Scan(&stats.Resources, &stats.ContentBytes)
	if err != nil {
		return nil, fmt.Errorf("count resources: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE tenant_id = $1`, tenantID).
		Scan(&stats.Chunks)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	return stats, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases resources.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Helper functions

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*models.Resource, error) {
	var res models.Resource
	var fileType, techMetaJSON string
	var embeddingStr sql.NullString

	err := row.Scan(
		&res.ID, &res.TenantID, &res.FileID, &res.FileName, &res.MimeType,
		&fileType, &res.SizeBytes, &res.Summary, &techMetaJSON,
		pq.Array(&res.Tags), &res.Vendor, pq.Array(&res.Entities),
		pq.Array(&res.Keywords), pq.Array(&res.AmountsCents), &res.Currency,
		pq.Array(&res.Dates), &res.Content, &embeddingStr, &res.ChunkCount,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}

	res.FileType = models.FileType(fileType)
	if err := json.Unmarshal([]byte(techMetaJSON), &res.TechnicalMetadata); err != nil {
		return nil, fmt.Errorf("unmarshal technical metadata: %w", err)
	}
	if embeddingStr.Valid {
		res.Embedding = decodeEmbedding(embeddingStr.String)
	}
	return &res, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
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

func encodeEmbedding(embedding []float32) sql.NullString {
	if len(embedding) == 0 {
		return sql.NullString{}
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')

	return sql.NullString{String: sb.String(), Valid: true}
}

func decodeEmbedding(s string) []float32 {
	if s == "" {
		return nil
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	embedding := make([]float32, len(parts))
	for i, p := range parts {
		var f float64
		fmt.Sscanf(strings.TrimSpace(p), "%f", &f)
		embedding[i] = float32(f)
	}
	return embedding
}

// Migration represents an embedded migration.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		suffix := ""
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	migrations := make([]Migration, 0, len(ids))
	for _, id := range ids {
		migrations = append(migrations, *entries[id])
	}
	return migrations, nil
}
