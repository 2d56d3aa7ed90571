// Package category manages per-tenant search category configuration:
// vendor, people, and price by default, plus tenant-defined types.
package category

import (
	"context"
	"fmt"
	"sync"

	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Default configuration applied when a tenant has no categories yet.
var (
	defaultVendorSeed = []string{
		"google", "amazon", "aws", "microsoft", "apple", "adobe", "slack",
		"zoom", "dropbox", "github", "gitlab", "atlassian", "stripe",
		"paypal", "vodafone", "o2", "t-mobile", "skoda", "ikea", "tesco",
	}
	defaultVendorIgnored = []string{
		"invoice", "bill", "payment", "contract", "subscription",
		"from", "by", "provider", "service",
	}
	defaultPeopleIgnored = []string{
		"email", "from", "to", "cc", "contact", "person", "sent",
		"received", "by", "author", "sender",
	}
	defaultPriceTriggers = []string{
		"price", "cost", "amount", "number", "how much", "what price",
	}
)

// Service provides category CRUD with lazy default seeding.
type Service struct {
	store store.DocumentStore

	mu     sync.Mutex
	seeded map[string]bool
}

// NewService creates a category service over the given store.
func NewService(st store.DocumentStore) *Service {
	return &Service{store: st, seeded: make(map[string]bool)}
}

// List returns all categories for the tenant, seeding defaults on the
// first call for a tenant with no configuration.
func (s *Service) List(ctx context.Context, tenantID string) ([]*models.Category, error) {
	categories, err := s.store.GetCategories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if len(categories) > 0 {
		return categories, nil
	}

	if err := s.seedDefaults(ctx, tenantID); err != nil {
		return nil, err
	}
	categories, err = s.store.GetCategories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories after seeding: %w", err)
	}
	return categories, nil
}

// Enabled returns the tenant's enabled categories, seeding defaults
// first if needed.
func (s *Service) Enabled(ctx context.Context, tenantID string) ([]*models.Category, error) {
	categories, err := s.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	enabled := categories[:0:0]
	for _, cat := range categories {
		if cat.Enabled {
			enabled = append(enabled, cat)
		}
	}
	return enabled, nil
}

// Get returns one category by type.
func (s *Service) Get(ctx context.Context, tenantID, categoryType string) (*models.Category, error) {
	return s.store.GetCategory(ctx, tenantID, categoryType)
}

// Upsert validates and stores a category.
func (s *Service) Upsert(ctx context.Context, cat *models.Category) error {
	if cat.Type == "" {
		return fmt.Errorf("category type is required: %w", models.ErrValidation)
	}
	if cat.MatchScore < 0 || cat.MatchScore > 1 {
		return fmt.Errorf("match score %v out of range: %w", cat.MatchScore, models.ErrValidation)
	}
	cat.Entities = normalizeAll(cat.Entities)
	cat.IgnoredWords = normalizeAll(cat.IgnoredWords)
	cat.TriggerKeywords = normalizeAll(cat.TriggerKeywords)
	return s.store.UpsertCategory(ctx, cat)
}

// AddEntity adds one canonical entity to a category.
func (s *Service) AddEntity(ctx context.Context, tenantID, categoryType, entity string) (*models.Category, error) {
	cat, err := s.store.GetCategory(ctx, tenantID, categoryType)
	if err != nil {
		return nil, err
	}

	entity = textnorm.Normalize(entity)
	if entity == "" {
		return nil, fmt.Errorf("empty entity: %w", models.ErrValidation)
	}
	if cat.HasEntity(entity) {
		return cat, nil
	}
	cat.Entities = append(cat.Entities, entity)
	if err := s.store.UpsertCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// RemoveEntity removes one entity from a category.
func (s *Service) RemoveEntity(ctx context.Context, tenantID, categoryType, entity string) (*models.Category, error) {
	cat, err := s.store.GetCategory(ctx, tenantID, categoryType)
	if err != nil {
		return nil, err
	}

	entity = textnorm.Normalize(entity)
	kept := cat.Entities[:0]
	for _, e := range cat.Entities {
		if e != entity {
			kept = append(kept, e)
		}
	}
	cat.Entities = kept
	if err := s.store.UpsertCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// SetIgnoredWords replaces a category's ignored-word set.
func (s *Service) SetIgnoredWords(ctx context.Context, tenantID, categoryType string, words []string) (*models.Category, error) {
	cat, err := s.store.GetCategory(ctx, tenantID, categoryType)
	if err != nil {
		return nil, err
	}
	cat.IgnoredWords = normalizeAll(words)
	if err := s.store.UpsertCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// SetTriggerKeywords replaces a category's trigger-keyword set.
func (s *Service) SetTriggerKeywords(ctx context.Context, tenantID, categoryType string, keywords []string) (*models.Category, error) {
	cat, err := s.store.GetCategory(ctx, tenantID, categoryType)
	if err != nil {
		return nil, err
	}
	cat.TriggerKeywords = normalizeAll(keywords)
	if err := s.store.UpsertCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// seedDefaults creates the vendor, people, and price categories once
// per tenant.
func (s *Service) seedDefaults(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	if s.seeded[tenantID] {
		s.mu.Unlock()
		return nil
	}
	s.seeded[tenantID] = true
	s.mu.Unlock()

	defaults := []*models.Category{
		{
			TenantID:            tenantID,
			Type:                models.CategoryVendor,
			Entities:            append([]string(nil), defaultVendorSeed...),
			IgnoredWords:        append([]string(nil), defaultVendorIgnored...),
			MaxNonCategoryWords: 1,
			MatchScore:          0.88,
			Enabled:             true,
		},
		{
			TenantID:            tenantID,
			Type:                models.CategoryPeople,
			IgnoredWords:        append([]string(nil), defaultPeopleIgnored...),
			MaxNonCategoryWords: 1,
			MatchScore:          0.85,
			Enabled:             true,
		},
		{
			TenantID:            tenantID,
			Type:                models.CategoryPrice,
			TriggerKeywords:     append([]string(nil), defaultPriceTriggers...),
			MaxNonCategoryWords: 1,
			MatchScore:          0.90,
			Enabled:             true,
		},
	}

	for _, cat := range defaults {
		if err := s.store.UpsertCategory(ctx, cat); err != nil {
			return fmt.Errorf("seed category %s: %w", cat.Type, err)
		}
	}
	return nil
}

func normalizeAll(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if n := textnorm.Normalize(v); n != "" {
			result = append(result, n)
		}
	}
	return result
}
