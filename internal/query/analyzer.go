// Package query parses raw search queries into a structured intent:
// exact tokens, money, dates, file-type hints, and active categories.
package query

import (
	"context"
	"strings"

	"github.com/papertrove/papertrove/internal/category"
	"github.com/papertrove/papertrove/internal/extract"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// fileTypeHints maps trailing query tokens to canonical file types.
var fileTypeHints = map[string]models.FileType{
	"pdf":         models.FileTypePDF,
	"pdfs":        models.FileTypePDF,
	"image":       models.FileTypeImage,
	"images":      models.FileTypeImage,
	"photo":       models.FileTypeImage,
	"photos":      models.FileTypeImage,
	"png":         models.FileTypeImage,
	"jpg":         models.FileTypeImage,
	"jpeg":        models.FileTypeImage,
	"csv":         models.FileTypeCSV,
	"spreadsheet": models.FileTypeCSV,
	"excel":       models.FileTypeCSV,
	"txt":         models.FileTypeText,
	"snippet":     models.FileTypeSnippet,
	"snippets":    models.FileTypeSnippet,
}

// Analyzer turns raw query strings into a models.QueryIntent.
type Analyzer struct {
	categories *category.Service
	logger     *observability.Logger
}

// NewAnalyzer creates a query analyzer.
func NewAnalyzer(categories *category.Service, logger *observability.Logger) *Analyzer {
	return &Analyzer{
		categories: categories,
		logger:     logger.WithFields("component", "query"),
	}
}

// Analyze parses the raw query for the tenant. Analysis never fails:
// when category configuration cannot be loaded the intent simply
// carries no categories.
func (a *Analyzer) Analyze(ctx context.Context, tenantID, raw string) *models.QueryIntent {
	intent := &models.QueryIntent{
		Raw:        raw,
		IDs:        extract.IDs(raw),
		Emails:     extract.Emails(raw),
		IBANs:      extract.IBANs(raw),
		Dates:      extract.Dates(raw),
		Categories: make(map[string]*models.CategoryMatch),
	}
	for _, m := range extract.MoneyAmounts(raw) {
		intent.Money = append(intent.Money, models.Money{
			Currency:    m.Currency,
			AmountCents: m.AmountCents,
		})
	}
	intent.HasStrongSignal = len(intent.IDs) > 0 || len(intent.Emails) > 0 ||
		len(intent.IBANs) > 0 || len(intent.Money) > 0

	// Residual phrase: strip recognized spans, then trailing file-type
	// hints.
	clean := textnorm.Normalize(extract.StripRecognized(raw))
	tokens := textnorm.Tokenize(clean)
	for len(tokens) > 0 {
		hint, ok := fileTypeHints[tokens[len(tokens)-1]]
		if !ok {
			break
		}
		intent.FileTypes = appendUnique(intent.FileTypes, string(hint))
		tokens = tokens[:len(tokens)-1]
	}
	intent.CleanText = strings.Join(tokens, " ")

	a.detectCategories(ctx, tenantID, intent, tokens)
	return intent
}

// detectCategories runs the per-category activation algorithm over the
// clean query tokens.
func (a *Analyzer) detectCategories(ctx context.Context, tenantID string, intent *models.QueryIntent, tokens []string) {
	if a.categories == nil {
		return
	}
	categories, err := a.categories.Enabled(ctx, tenantID)
	if err != nil {
		a.logger.Warn(ctx, "category load failed, analyzing without categories", "error", err)
		return
	}

	clean := strings.Join(tokens, " ")
	for _, cat := range categories {
		var matched []string
		for _, entity := range cat.Entities {
			if containsPhrase(clean, entity) {
				matched = append(matched, entity)
			}
		}

		triggered := false
		var triggers []string
		for _, keyword := range cat.TriggerKeywords {
			if containsPhrase(clean, keyword) {
				triggered = true
				triggers = append(triggers, keyword)
			}
		}

		if len(matched) == 0 && !triggered {
			continue
		}

		// Tokens belonging to matched entities, triggers, or the
		// ignored-word list do not count against the category.
		covered := make(map[string]bool)
		for _, entity := range matched {
			for _, tok := range textnorm.Tokenize(entity) {
				covered[tok] = true
			}
		}
		for _, trigger := range triggers {
			for _, tok := range textnorm.Tokenize(trigger) {
				covered[tok] = true
			}
		}
		for _, word := range cat.IgnoredWords {
			covered[word] = true
		}

		nonCategory := 0
		for _, tok := range tokens {
			if !covered[tok] {
				nonCategory++
			}
		}
		if nonCategory > cat.MaxNonCategoryWords {
			continue
		}

		intent.Categories[cat.Type] = &models.CategoryMatch{
			Category:        cat,
			MatchedEntities: matched,
			Triggered:       triggered,
		}
	}
}

// containsPhrase reports whether the normalized phrase appears in the
// normalized text on whole-token boundaries.
func containsPhrase(text, phrase string) bool {
	return textnorm.ContainsPhrase(text, phrase)
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
