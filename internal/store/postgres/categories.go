package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/papertrove/papertrove/pkg/models"
)

const categoryColumns = `tenant_id, type, entities, ignored_words, trigger_keywords,
	max_non_category_words, match_score, enabled, created_at, updated_at`

// GetCategories returns all categories for the tenant.
func (s *Store) GetCategories(ctx context.Context, tenantID string) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE tenant_id = $1 ORDER BY type ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// GetCategory returns one category by type.
func (s *Store) GetCategory(ctx context.Context, tenantID, categoryType string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM categories WHERE tenant_id = $1 AND type = $2
	`, tenantID, categoryType)

	cat, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category %s: %w", categoryType, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return cat, nil
}

// UpsertCategory creates or replaces a category.
func (s *Store) UpsertCategory(ctx context.Context, cat *models.Category) error {
	if cat.TenantID == "" || cat.Type == "" {
		return fmt.Errorf("category tenant and type are required: %w", models.ErrValidation)
	}
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now()
	}
	cat.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, type) DO UPDATE SET
			entities = EXCLUDED.entities,
			ignored_words = EXCLUDED.ignored_words,
			trigger_keywords = EXCLUDED.trigger_keywords,
			max_non_category_words = EXCLUDED.max_non_category_words,
			match_score = EXCLUDED.match_score,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`, cat.TenantID, cat.Type, pq.Array(orEmpty(cat.Entities)),
		pq.Array(orEmpty(cat.IgnoredWords)), pq.Array(orEmpty(cat.TriggerKeywords)),
		cat.MaxNonCategoryWords, cat.MatchScore, cat.Enabled,
		cat.CreatedAt, cat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var cat models.Category
	err := row.Scan(
		&cat.TenantID, &cat.Type, pq.Array(&cat.Entities),
		pq.Array(&cat.IgnoredWords), pq.Array(&cat.TriggerKeywords),
		&cat.MaxNonCategoryWords, &cat.MatchScore, &cat.Enabled,
		&cat.CreatedAt, &cat.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}
