package search

import (
	"context"
	"fmt"

	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Base scores per chunk field for exact-phrase matches.
var phraseFieldScores = []struct {
	field models.ChunkField
	score float64
}{
	{models.ChunkFieldSearchable, 1.00},
	{models.ChunkFieldOCR, 0.98},
	{models.ChunkFieldText, 0.95},
	{models.ChunkFieldImageDescription, 0.93},
}

// Base scores per chunk field for partial-word matches, before the
// overlap ratio is applied.
var partialFieldScores = []struct {
	field models.ChunkField
	score float64
}{
	{models.ChunkFieldSearchable, 0.50},
	{models.ChunkFieldOCR, 0.45},
	{models.ChunkFieldText, 0.40},
}

// minOverlapRatio is the minimum matched-token share for a partial hit.
const minOverlapRatio = 0.5

// candidateLimit bounds per-strategy store scans; ranking trims later.
const candidateLimit = 200

func (s *Searcher) phraseStrategy(tenantID string, intent *models.QueryIntent) strategy {
	phrase := intent.CleanText
	return strategy{
		name: "exact_phrase",
		run: func(ctx context.Context) ([]*hit, error) {
			type agg struct {
				best *hit
			}
			perResource := make(map[string]*agg)

			for _, fs := range phraseFieldScores {
				chunkHits, err := s.store.KeywordSearch(ctx, tenantID, phrase, fs.field, candidateLimit)
				if err != nil {
					return nil, fmt.Errorf("keyword search %s: %w", fs.field, err)
				}
				for _, ch := range chunkHits {
					a := perResource[ch.Chunk.ResourceID]
					if a == nil {
						a = &agg{}
						perResource[ch.Chunk.ResourceID] = a
					}
					if a.best == nil || fs.score > a.best.score {
						a.best = &hit{
							resourceID:   ch.Chunk.ResourceID,
							score:        fs.score,
							matchType:    models.MatchExactPhrase,
							matchedValue: phrase,
							chunk:        ch.Chunk,
						}
					}
					a.best.occurrences += ch.Occurrences
					a.best.matchingChunks++
				}
			}

			hits := make([]*hit, 0, len(perResource))
			for _, a := range perResource {
				hits = append(hits, a.best)
			}
			return hits, nil
		},
	}
}

func (s *Searcher) idStrategy(tenantID string, intent *models.QueryIntent) strategy {
	identifiers := make([]string, 0, len(intent.IDs)+len(intent.Emails)+len(intent.IBANs))
	for _, groups := range [][]string{intent.IDs, intent.Emails, intent.IBANs} {
		for _, id := range groups {
			identifiers = append(identifiers, textnorm.Normalize(id))
		}
	}
	return strategy{
		name: "exact_id",
		run: func(ctx context.Context) ([]*hit, error) {
			resources, err := s.store.FilterSearch(ctx, tenantID,
				&store.ResourceFilter{Keywords: identifiers}, candidateLimit)
			if err != nil {
				return nil, fmt.Errorf("id filter: %w", err)
			}

			hits := make([]*hit, 0, len(resources))
			for _, res := range resources {
				hits = append(hits, &hit{
					resourceID:   res.ID,
					score:        1.0,
					matchType:    models.MatchExactID,
					matchedValue: firstIntersection(identifiers, res.Keywords),
				})
			}
			return hits, nil
		},
	}
}

func (s *Searcher) amountStrategy(tenantID string, intent *models.QueryIntent) strategy {
	amounts := make([]int64, 0, len(intent.Money))
	currency := ""
	for _, m := range intent.Money {
		amounts = append(amounts, m.AmountCents)
		if m.Currency != "" {
			currency = m.Currency
		}
	}
	return strategy{
		name: "exact_amount",
		run: func(ctx context.Context) ([]*hit, error) {
			resources, err := s.store.FilterSearch(ctx, tenantID,
				&store.ResourceFilter{AmountsCents: amounts, Currency: currency}, candidateLimit)
			if err != nil {
				return nil, fmt.Errorf("amount filter: %w", err)
			}

			hits := make([]*hit, 0, len(resources))
			for _, res := range resources {
				hits = append(hits, &hit{
					resourceID:   res.ID,
					score:        1.0,
					matchType:    models.MatchExactAmount,
					matchedValue: formatCents(firstAmountIntersection(amounts, res.AmountsCents), res.Currency),
				})
			}
			return hits, nil
		},
	}
}

func (s *Searcher) categoryStrategies(tenantID string, intent *models.QueryIntent) []strategy {
	var strategies []strategy
	for _, match := range intent.Categories {
		match := match
		cat := match.Category

		switch cat.Type {
		case models.CategoryVendor:
			strategies = append(strategies, strategy{
				name: "vendor_match",
				run: func(ctx context.Context) ([]*hit, error) {
					resources, err := s.store.FilterSearch(ctx, tenantID,
						&store.ResourceFilter{Vendors: match.MatchedEntities}, candidateLimit)
					if err != nil {
						return nil, fmt.Errorf("vendor filter: %w", err)
					}
					return categoryHits(resources, models.MatchVendor, cat.MatchScore, match.MatchedEntities), nil
				},
			})

		case models.CategoryPeople:
			strategies = append(strategies, strategy{
				name: "people_match",
				run: func(ctx context.Context) ([]*hit, error) {
					resources, err := s.store.FilterSearch(ctx, tenantID,
						&store.ResourceFilter{Entities: match.MatchedEntities}, candidateLimit)
					if err != nil {
						return nil, fmt.Errorf("people filter: %w", err)
					}
					return categoryHits(resources, models.MatchPeople, cat.MatchScore, match.MatchedEntities), nil
				},
			})

		case models.CategoryPrice:
			// Only when no specific amount narrows the query.
			if len(intent.Money) > 0 {
				continue
			}
			strategies = append(strategies, strategy{
				name: "price_match",
				run: func(ctx context.Context) ([]*hit, error) {
					resources, err := s.store.FilterSearch(ctx, tenantID,
						&store.ResourceFilter{HasAmounts: true}, candidateLimit)
					if err != nil {
						return nil, fmt.Errorf("price filter: %w", err)
					}
					return categoryHits(resources, models.MatchPrice, cat.MatchScore, nil), nil
				},
			})

		default:
			// Custom categories match their entities against extracted
			// keywords.
			strategies = append(strategies, strategy{
				name: "custom_category",
				run: func(ctx context.Context) ([]*hit, error) {
					resources, err := s.store.FilterSearch(ctx, tenantID,
						&store.ResourceFilter{Keywords: match.MatchedEntities}, candidateLimit)
					if err != nil {
						return nil, fmt.Errorf("custom category filter: %w", err)
					}
					return categoryHits(resources, models.MatchCustom, cat.MatchScore, match.MatchedEntities), nil
				},
			})
		}
	}
	return strategies
}

func (s *Searcher) partialStrategy(tenantID string, intent *models.QueryIntent, tokens []string) strategy {
	return strategy{
		name: "partial_words",
		run: func(ctx context.Context) ([]*hit, error) {
			perResource := make(map[string]*hit)

			for _, fs := range partialFieldScores {
				chunkHits, err := s.store.TokenSearch(ctx, tenantID, tokens, fs.field, candidateLimit)
				if err != nil {
					return nil, fmt.Errorf("token search %s: %w", fs.field, err)
				}
				for _, ch := range chunkHits {
					ratio := float64(ch.MatchedTokens) / float64(len(tokens))
					if ratio < minOverlapRatio {
						continue
					}
					score := fs.score * ratio
					existing := perResource[ch.Chunk.ResourceID]
					if existing == nil || score > existing.score {
						perResource[ch.Chunk.ResourceID] = &hit{
							resourceID:   ch.Chunk.ResourceID,
							score:        score,
							matchType:    models.MatchPartialWords,
							matchedValue: intent.CleanText,
							chunk:        ch.Chunk,
						}
					}
					perResource[ch.Chunk.ResourceID].matchingChunks++
				}
			}

			hits := make([]*hit, 0, len(perResource))
			for _, h := range perResource {
				hits = append(hits, h)
			}
			return hits, nil
		},
	}
}

func (s *Searcher) semanticStrategy(tenantID string, intent *models.QueryIntent, scope store.VectorScope) strategy {
	name := "semantic_doc"
	matchType := models.MatchSemanticDoc
	if scope == store.ScopeChunk {
		name = "semantic_chunk"
		matchType = models.MatchSemanticChunk
	}
	return strategy{
		name: name,
		run: func(ctx context.Context) ([]*hit, error) {
			vector, err := s.embedder.Embed(ctx, intent.CleanText)
			if err != nil {
				return nil, fmt.Errorf("embed query: %w", err)
			}

			vectorHits, err := s.store.VectorSearch(ctx, tenantID, vector, scope, candidateLimit)
			if err != nil {
				return nil, fmt.Errorf("vector search: %w", err)
			}

			hits := make([]*hit, 0, len(vectorHits))
			for _, vh := range vectorHits {
				if vh.Similarity <= 0 {
					continue
				}
				hits = append(hits, &hit{
					resourceID:   vh.ResourceID,
					score:        vh.Similarity,
					matchType:    matchType,
					matchedValue: intent.CleanText,
					chunk:        vh.Chunk,
				})
			}
			return hits, nil
		},
	}
}

func categoryHits(resources []*models.Resource, matchType models.MatchType, score float64, matched []string) []*hit {
	hits := make([]*hit, 0, len(resources))
	value := ""
	if len(matched) > 0 {
		value = matched[0]
	}
	for _, res := range resources {
		hits = append(hits, &hit{
			resourceID:   res.ID,
			score:        score,
			matchType:    matchType,
			matchedValue: value,
		})
	}
	return hits
}

func firstIntersection(wanted, have []string) string {
	for _, w := range wanted {
		for _, h := range have {
			if textnorm.Normalize(h) == w {
				return w
			}
		}
	}
	return ""
}

func firstAmountIntersection(wanted, have []int64) int64 {
	for _, w := range wanted {
		for _, h := range have {
			if w == h {
				return w
			}
		}
	}
	return 0
}

func formatCents(cents int64, currency string) string {
	value := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if currency != "" {
		return value + " " + currency
	}
	return value
}
