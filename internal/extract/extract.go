// Package extract derives searchable metadata from document text:
// identifiers, emails, IBANs, money amounts, dates, vendors, entities,
// and keywords. Regex extractors are deterministic; model-backed
// extractors are opportunistic and never fail the enclosing ingestion.
package extract

import (
	"context"
	"time"

	"github.com/papertrove/papertrove/internal/llm"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Extraction is the aggregate output of metadata extraction over one
// text block.
type Extraction struct {
	IDs      []string
	Emails   []string
	IBANs    []string
	Money    []models.Money
	Dates    []string
	Vendor   string
	Entities []string
	Keywords []string
}

// Extractor runs the regex extractors plus the model-backed entity and
// keyword extraction.
type Extractor struct {
	llm     llm.Client
	logger  *observability.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// Config contains extractor configuration.
type Config struct {
	// LLMTimeout bounds the model call for entities and keywords.
	// Default: 20s.
	LLMTimeout time.Duration `yaml:"llm_timeout"`
}

// NewExtractor creates a metadata extractor. The llm client may be nil,
// in which case entity and keyword sets stay empty.
func NewExtractor(client llm.Client, logger *observability.Logger, metrics *observability.Metrics, cfg Config) *Extractor {
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 20 * time.Second
	}
	return &Extractor{
		llm:     client,
		logger:  logger.WithFields("component", "extract"),
		metrics: metrics,
		timeout: cfg.LLMTimeout,
	}
}

// Extract derives metadata from text. vendorEntities is the current
// tenant's vendor category entity list, matched case-insensitively as
// whole tokens. The model call is best effort: on failure, entities and
// keywords stay empty and ingestion continues.
func (e *Extractor) Extract(ctx context.Context, text string, vendorEntities []string) *Extraction {
	regexMoney := MoneyAmounts(text)
	money := make([]models.Money, 0, len(regexMoney))
	for _, m := range regexMoney {
		money = append(money, models.Money{Currency: m.Currency, AmountCents: m.AmountCents})
	}

	ext := &Extraction{
		IDs:    IDs(text),
		Emails: Emails(text),
		IBANs:  IBANs(text),
		Money:  money,
		Dates:  Dates(text),
		Vendor: MatchVendor(text, vendorEntities),
	}

	if e.llm != nil {
		entities, keywords, err := e.extractWithModel(ctx, text)
		if err != nil {
			e.logger.Warn(ctx, "model extraction failed, continuing without entities", "error", err)
			if e.metrics != nil {
				e.metrics.DependencyErrors.WithLabelValues("llm").Inc()
			}
		} else {
			ext.Entities = entities
			ext.Keywords = keywords
		}
	}

	return ext
}

// MatchVendor returns the first vendor entity that appears in the text
// on whole-token boundaries, or empty when none match. Multi-word
// vendor names match as phrases. Matching is accent- and
// case-insensitive.
func MatchVendor(text string, vendorEntities []string) string {
	if len(vendorEntities) == 0 {
		return ""
	}
	normalized := textnorm.Normalize(text)
	for _, vendor := range vendorEntities {
		if textnorm.ContainsPhrase(normalized, textnorm.Normalize(vendor)) {
			return vendor
		}
	}
	return ""
}
