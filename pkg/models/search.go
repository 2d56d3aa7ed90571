package models

import (
	"time"
)

// MatchType classifies why a result was returned. It determines the
// displayed badge and the base score.
type MatchType string

const (
	// MatchExactPhrase is a substring match of the whole clean query
	// against a chunk field.
	MatchExactPhrase MatchType = "exact_phrase"
	// MatchExactID is an identifier, email, or IBAN lookup hit.
	MatchExactID MatchType = "exact_id"
	// MatchExactAmount is a money amount intersection hit.
	MatchExactAmount MatchType = "exact_amount"
	// MatchVendor is a vendor category hit.
	MatchVendor MatchType = "vendor_match"
	// MatchPeople is a people category hit.
	MatchPeople MatchType = "people_match"
	// MatchPrice is a price category hit.
	MatchPrice MatchType = "price_match"
	// MatchCustom is a tenant-defined category hit.
	MatchCustom MatchType = "custom_match"
	// MatchPartialWords is a token-overlap hit on a chunk field.
	MatchPartialWords MatchType = "partial_words"
	// MatchSemanticDoc is a document-embedding similarity hit.
	MatchSemanticDoc MatchType = "semantic_doc"
	// MatchSemanticChunk is a chunk-embedding similarity hit.
	MatchSemanticChunk MatchType = "semantic_chunk"
	// MatchHybrid combines semantic and keyword evidence.
	MatchHybrid MatchType = "hybrid"
)

// ContentLevel reports whether the match type is a content-level match
// (phrase, partial, semantic) as opposed to a category-level match.
// Content-level matches win ties against category-level ones.
func (m MatchType) ContentLevel() bool {
	switch m {
	case MatchExactPhrase, MatchPartialWords, MatchSemanticDoc, MatchSemanticChunk, MatchHybrid:
		return true
	}
	return false
}

// SearchResult is a single ranked search hit.
type SearchResult struct {
	// ResourceID identifies the matched resource.
	ResourceID string `json:"resource_id"`

	// TenantID is the owning tenant.
	TenantID string `json:"tenant_id"`

	// FileName is the resource's original file name.
	FileName string `json:"file_name"`

	// FileID is the blob handle for view/download, empty for snippets.
	FileID string `json:"file_id,omitempty"`

	// MimeType is the resource's MIME type.
	MimeType string `json:"mime_type"`

	// Summary is the user-authored description.
	Summary string `json:"summary,omitempty"`

	// Vendor is the resource's matched vendor, if any.
	Vendor string `json:"vendor,omitempty"`

	// Score is the final ranking score in [0,1].
	Score float64 `json:"score"`

	// MatchType labels the winning strategy.
	MatchType MatchType `json:"match_type"`

	// MatchedValue is the specific entity or phrase that matched.
	MatchedValue string `json:"matched_value,omitempty"`

	// Occurrences counts matches across all chunks of the resource.
	Occurrences int `json:"occurrences,omitempty"`

	// MatchingChunks is how many chunks contributed hits.
	MatchingChunks int `json:"matching_chunks,omitempty"`

	// PageNumber is set when the best chunk is page-level (PDF).
	PageNumber *int `json:"page_number,omitempty"`

	// RowIndex is set when the best chunk is row-level (CSV).
	RowIndex *int `json:"row_index,omitempty"`

	// Highlights are short text windows around the match.
	Highlights []string `json:"highlights,omitempty"`
}

// SearchResponse is the full response to a search request.
type SearchResponse struct {
	// Results are ordered by descending score.
	Results []*SearchResult `json:"results"`

	// Intent is the parsed query intent, returned for UI display of
	// detected filters.
	Intent *QueryIntent `json:"intent"`

	// Elapsed is the total search time.
	Elapsed time.Duration `json:"elapsed"`
}

// SuggestionType labels the origin of an autocomplete suggestion.
type SuggestionType string

const (
	// SuggestionFile is a file name suggestion.
	SuggestionFile SuggestionType = "file"
	// SuggestionVendor is a vendor suggestion.
	SuggestionVendor SuggestionType = "vendor"
	// SuggestionEntity is a named-entity suggestion.
	SuggestionEntity SuggestionType = "entity"
	// SuggestionKeyword is a keyword suggestion.
	SuggestionKeyword SuggestionType = "keyword"
	// SuggestionTerm is a generic term suggestion.
	SuggestionTerm SuggestionType = "term"
)

// Suggestion is one autocomplete result.
type Suggestion struct {
	// Text is the suggested term.
	Text string `json:"text"`

	// Type labels where the term came from.
	Type SuggestionType `json:"type"`

	// Score is priority times observed frequency.
	Score float64 `json:"score"`
}
