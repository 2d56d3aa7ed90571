package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/papertrove/papertrove/pkg/models"
)

// Hybrid combination weights when a resource has both semantic and
// keyword evidence.
const (
	semanticWeight = 0.6
	keywordWeight  = 0.4
)

// highlightWindow is the number of characters kept on each side of a
// matched value in a highlight.
const highlightWindow = 60

// rank merges per-strategy hits into one entry per resource and orders
// the entries by descending score. Semantic and keyword evidence for
// the same resource combine into a hybrid score; within a resource,
// content-level hits win close ties against category-level ones.
func rank(hits []*hit, intent *models.QueryIntent) []*hit {
	perResource := make(map[string][]*hit)
	for _, h := range hits {
		perResource[h.resourceID] = append(perResource[h.resourceID], h)
	}

	ranked := make([]*hit, 0, len(perResource))
	for _, group := range perResource {
		ranked = append(ranked, reduceGroup(group))
	}

	// Multi-word queries without a strong signal accumulate weak partial
	// and semantic hits; drop everything below the floor.
	if !intent.HasStrongSignal && len(strings.Fields(intent.CleanText)) > 1 {
		kept := ranked[:0]
		for _, h := range ranked {
			if h.score >= noiseFloor {
				kept = append(kept, h)
			}
		}
		ranked = kept
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].resourceID < ranked[j].resourceID
	})
	return ranked
}

// reduceGroup collapses all hits for one resource into a single entry.
func reduceGroup(group []*hit) *hit {
	var bestSemantic, bestKeyword *hit
	var best *hit
	occurrences, matchingChunks := 0, 0

	for _, h := range group {
		if h.occurrences > occurrences {
			occurrences = h.occurrences
		}
		if h.matchingChunks > matchingChunks {
			matchingChunks = h.matchingChunks
		}
		switch h.matchType {
		case models.MatchSemanticDoc, models.MatchSemanticChunk:
			if bestSemantic == nil || h.score > bestSemantic.score {
				bestSemantic = h
			}
		case models.MatchExactPhrase, models.MatchPartialWords:
			if bestKeyword == nil || h.score > bestKeyword.score {
				bestKeyword = h
			}
		}
		if best == nil || h.score > best.score {
			best = h
		}
	}

	final := *best
	// Corroborated weak evidence blends into a hybrid score. Exact and
	// category hits keep their fixed scores.
	if bestSemantic != nil && bestKeyword != nil &&
		(final.matchType == models.MatchPartialWords ||
			final.matchType == models.MatchSemanticDoc ||
			final.matchType == models.MatchSemanticChunk) {
		final = *bestKeyword
		final.score = semanticWeight*bestSemantic.score + keywordWeight*bestKeyword.score
		final.matchType = models.MatchHybrid
	}

	// A category hit must not mask a near-equal content hit: the content
	// hit carries the chunk position and highlight context.
	if categoryLevel(final.matchType) {
		for _, h := range group {
			if h.matchType.ContentLevel() && h.score >= final.score-tieBreakWindow && h.score > 0 {
				final = *h
				break
			}
		}
	}

	final.occurrences = occurrences
	final.matchingChunks = matchingChunks
	return &final
}

func categoryLevel(m models.MatchType) bool {
	switch m {
	case models.MatchVendor, models.MatchPeople, models.MatchPrice, models.MatchCustom:
		return true
	}
	return false
}

// hydrate loads the matched resources in rank order, applies file-type
// hints, and assembles the response entries.
func (s *Searcher) hydrate(ctx context.Context, tenantID string, intent *models.QueryIntent, ranked []*hit, limit int) ([]*models.SearchResult, error) {
	if len(ranked) == 0 {
		return []*models.SearchResult{}, nil
	}

	ids := make([]string, 0, len(ranked))
	for _, h := range ranked {
		ids = append(ids, h.resourceID)
	}
	resources, err := s.store.GetResources(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load resources: %w", err)
	}
	byID := make(map[string]*models.Resource, len(resources))
	for _, res := range resources {
		byID[res.ID] = res
	}

	wantTypes := make(map[string]bool, len(intent.FileTypes))
	for _, ft := range intent.FileTypes {
		wantTypes[ft] = true
	}

	results := make([]*models.SearchResult, 0, limit)
	for _, h := range ranked {
		res := byID[h.resourceID]
		if res == nil {
			continue
		}
		if len(wantTypes) > 0 && !wantTypes[string(res.FileType)] {
			continue
		}

		result := &models.SearchResult{
			ResourceID:     res.ID,
			TenantID:       res.TenantID,
			FileName:       res.FileName,
			FileID:         res.FileID,
			MimeType:       res.MimeType,
			Summary:        res.Summary,
			Vendor:         res.Vendor,
			Score:          h.score,
			MatchType:      h.matchType,
			MatchedValue:   h.matchedValue,
			Occurrences:    h.occurrences,
			MatchingChunks: h.matchingChunks,
		}
		if h.chunk != nil {
			result.PageNumber = h.chunk.PageNumber
			result.RowIndex = h.chunk.RowIndex
			result.Highlights = highlights(h.chunk, h.matchedValue)
		}
		results = append(results, result)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// highlights returns a short window around the first occurrence of the
// matched value in each of the chunk's text fields.
func highlights(chunk *models.Chunk, value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, text := range []string{chunk.TextNormalized, chunk.OCRTextNormalized, chunk.ImageDescription} {
		if snippet := snippetAround(text, value); snippet != "" {
			out = append(out, snippet)
		}
	}
	return out
}

func snippetAround(text, value string) string {
	idx := strings.Index(text, value)
	if idx < 0 {
		return ""
	}
	start := idx - highlightWindow
	if start < 0 {
		start = 0
	}
	end := idx + len(value) + highlightWindow
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet += "…"
	}
	return snippet
}
