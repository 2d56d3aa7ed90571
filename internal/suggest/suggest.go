// Package suggest provides the autocomplete suggestion index: per-tenant
// term sets accumulated at ingestion time and queried by prefix while
// the user types.
package suggest

import (
	"context"

	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Category names one of the per-tenant suggestion sets.
type Category string

const (
	// CategoryFilenames holds normalized file names.
	CategoryFilenames Category = "filenames"
	// CategoryVendors holds matched vendor names.
	CategoryVendors Category = "vendors"
	// CategoryEntities holds extracted named entities.
	CategoryEntities Category = "entities"
	// CategoryKeywords holds extracted keywords and identifiers.
	CategoryKeywords Category = "keywords"
	// CategoryAllTerms holds general content tokens.
	CategoryAllTerms Category = "all_terms"
)

// Categories lists all suggestion categories in descending priority.
var Categories = []Category{
	CategoryFilenames,
	CategoryVendors,
	CategoryEntities,
	CategoryKeywords,
	CategoryAllTerms,
}

// Priority returns the fixed score weight for a category.
func (c Category) Priority() float64 {
	switch c {
	case CategoryFilenames:
		return 1.0
	case CategoryVendors:
		return 0.9
	case CategoryEntities:
		return 0.8
	case CategoryKeywords:
		return 0.7
	default:
		return 0.5
	}
}

// SuggestionType maps a category to the API-visible suggestion type.
func (c Category) SuggestionType() models.SuggestionType {
	switch c {
	case CategoryFilenames:
		return models.SuggestionFile
	case CategoryVendors:
		return models.SuggestionVendor
	case CategoryEntities:
		return models.SuggestionEntity
	case CategoryKeywords:
		return models.SuggestionKeyword
	default:
		return models.SuggestionTerm
	}
}

// Index defines the suggestion index interface.
type Index interface {
	// IndexResource increments term frequencies for all terms extracted
	// from the resource.
	IndexResource(ctx context.Context, res *models.Resource) error

	// RemoveResource removes the resource's file name term. Term-to-
	// resource membership is not tracked, so other terms may remain as
	// residuals; search correctness is unaffected.
	RemoveResource(ctx context.Context, res *models.Resource) error

	// QueryPrefix returns suggestions whose normalized form starts with
	// the prefix, ordered by priority times observed frequency.
	QueryPrefix(ctx context.Context, tenantID, prefix string, limit int) ([]*models.Suggestion, error)

	// Close releases resources.
	Close() error
}

const (
	// MinPrefixLength is the shortest prefix that yields suggestions.
	// Shorter prefixes return an empty list.
	MinPrefixLength = 2

	// DefaultLimit is the suggestion count when the caller passes none.
	DefaultLimit = 10

	// MaxLimit caps the suggestion count per query.
	MaxLimit = 50
)

// ClampLimit resolves a caller-supplied limit to the allowed range.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// maxContentTerms bounds how many general tokens one resource feeds
// into the all_terms set.
const maxContentTerms = 200

// TermsFor extracts the normalized suggestion terms per category from a
// resource. Shared by all index backends.
func TermsFor(res *models.Resource) map[Category][]string {
	terms := make(map[Category][]string)

	if name := textnorm.Normalize(res.FileName); name != "" {
		terms[CategoryFilenames] = []string{name}
	}
	if vendor := textnorm.Normalize(res.Vendor); vendor != "" {
		terms[CategoryVendors] = []string{vendor}
	}
	for _, entity := range res.Entities {
		if e := textnorm.Normalize(entity); e != "" {
			terms[CategoryEntities] = append(terms[CategoryEntities], e)
		}
	}
	for _, keyword := range res.Keywords {
		if k := textnorm.Normalize(keyword); k != "" {
			terms[CategoryKeywords] = append(terms[CategoryKeywords], k)
		}
	}

	seen := make(map[string]bool)
	var general []string
	addTokens := func(text string) {
		for _, token := range textnorm.Tokenize(textnorm.Normalize(text)) {
			if len(token) < 3 || seen[token] || len(general) >= maxContentTerms {
				continue
			}
			seen[token] = true
			general = append(general, token)
		}
	}
	addTokens(res.FileName)
	addTokens(res.Summary)
	for _, tag := range res.Tags {
		addTokens(tag)
	}
	addTokens(res.Content)
	if len(general) > 0 {
		terms[CategoryAllTerms] = general
	}

	return terms
}
