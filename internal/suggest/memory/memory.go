// Package memory provides an in-memory suggestion index used for tests
// and development mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/papertrove/papertrove/internal/suggest"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Index implements suggest.Index in memory.
type Index struct {
	mu    sync.RWMutex
	terms map[string]map[suggest.Category]map[string]float64 // tenant -> category -> term -> score
}

var _ suggest.Index = (*Index)(nil)

// New creates an empty in-memory suggestion index.
func New() *Index {
	return &Index{terms: make(map[string]map[suggest.Category]map[string]float64)}
}

// IndexResource increments term frequencies for the resource's terms.
func (i *Index) IndexResource(ctx context.Context, res *models.Resource) error {
	terms := suggest.TermsFor(res)
	if len(terms) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	tenant := i.terms[res.TenantID]
	if tenant == nil {
		tenant = make(map[suggest.Category]map[string]float64)
		i.terms[res.TenantID] = tenant
	}
	for cat, catTerms := range terms {
		set := tenant[cat]
		if set == nil {
			set = make(map[string]float64)
			tenant[cat] = set
		}
		for _, term := range catTerms {
			set[term] += cat.Priority()
		}
	}
	return nil
}

// RemoveResource removes the resource's file name term.
func (i *Index) RemoveResource(ctx context.Context, res *models.Resource) error {
	name := textnorm.Normalize(res.FileName)
	if name == "" {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.terms[res.TenantID][suggest.CategoryFilenames], name)
	return nil
}

// QueryPrefix returns suggestions matching the normalized prefix.
func (i *Index) QueryPrefix(ctx context.Context, tenantID, prefix string, limit int) ([]*models.Suggestion, error) {
	prefix = textnorm.Normalize(prefix)
	if len([]rune(prefix)) < suggest.MinPrefixLength {
		return nil, nil
	}
	limit = suggest.ClampLimit(limit)

	i.mu.RLock()
	defer i.mu.RUnlock()

	seen := make(map[string]bool)
	var suggestions []*models.Suggestion
	for _, cat := range suggest.Categories {
		for term, score := range i.terms[tenantID][cat] {
			if !strings.HasPrefix(term, prefix) || seen[term] {
				continue
			}
			seen[term] = true
			suggestions = append(suggestions, &models.Suggestion{
				Text:  term,
				Type:  cat.SuggestionType(),
				Score: score,
			})
		}
	}

	sort.SliceStable(suggestions, func(a, b int) bool {
		return suggestions[a].Score > suggestions[b].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// Close releases resources.
func (i *Index) Close() error { return nil }
