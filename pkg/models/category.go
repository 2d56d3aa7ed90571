package models

import (
	"time"
)

// Well-known category types. Tenants may also define custom types.
const (
	CategoryVendor = "vendor"
	CategoryPeople = "people"
	CategoryPrice  = "price"
)

// Category is a per-tenant configuration binding a set of recognizable
// entities to a match strategy and score. Categories drive query-time
// intent detection; changing one affects future queries immediately but
// never rescores stored documents.
type Category struct {
	// TenantID is the owning tenant.
	TenantID string `json:"tenant_id"`

	// Type is the category type: vendor, people, price, or a
	// user-defined string.
	Type string `json:"type"`

	// Entities are canonical lowercase strings matched case-insensitively
	// against query tokens.
	Entities []string `json:"entities,omitempty"`

	// IgnoredWords are stopword-like terms that do not count toward the
	// non-category word limit (e.g. "invoice" for the vendor category).
	IgnoredWords []string `json:"ignored_words,omitempty"`

	// TriggerKeywords activate the category even without an entity match
	// (e.g. "price" for the price category).
	TriggerKeywords []string `json:"trigger_keywords,omitempty"`

	// MaxNonCategoryWords is how many extra words may appear in a query
	// before the category is no longer considered the dominant intent.
	MaxNonCategoryWords int `json:"max_non_category_words"`

	// MatchScore is the fixed score assigned when this category matches,
	// in [0,1].
	MatchScore float64 `json:"match_score"`

	// Enabled toggles the category without deleting its configuration.
	Enabled bool `json:"enabled"`

	// CreatedAt is when the category was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the category was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEntity reports whether the category contains the given canonical
// entity.
func (c *Category) HasEntity(entity string) bool {
	for _, e := range c.Entities {
		if e == entity {
			return true
		}
	}
	return false
}
