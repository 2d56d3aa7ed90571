// Package search implements hybrid document search: concurrent strategy
// fan-out over exact, category, keyword, and semantic signals, followed
// by per-resource deduplication and ranking.
package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papertrove/papertrove/internal/embeddings"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/query"
	"github.com/papertrove/papertrove/internal/store"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// noiseFloor is the minimum score kept for multi-word queries without a
// strong signal.
const noiseFloor = 0.50

// tieBreakWindow is the score distance within which content-level
// matches win over category-level ones.
const tieBreakWindow = 0.05

// maxLimit caps the result count per search request.
const maxLimit = 100

// Config contains searcher configuration.
type Config struct {
	// DefaultLimit is the result limit when the caller passes none.
	DefaultLimit int `yaml:"default_limit"`

	// StrategyTimeout bounds each strategy independently so one slow
	// dependency cannot delay the others' results.
	StrategyTimeout time.Duration `yaml:"strategy_timeout"`
}

// DefaultConfig returns the default searcher configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:    30,
		StrategyTimeout: 3 * time.Second,
	}
}

// Searcher runs hybrid search for one tenant at a time.
type Searcher struct {
	store    store.DocumentStore
	embedder embeddings.Provider
	analyzer *query.Analyzer
	logger   *observability.Logger
	metrics  *observability.Metrics
	config   Config
}

// New creates a searcher. The embedder may be nil, in which case
// semantic strategies are skipped.
func New(st store.DocumentStore, embedder embeddings.Provider, analyzer *query.Analyzer,
	logger *observability.Logger, metrics *observability.Metrics, cfg Config) *Searcher {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = DefaultConfig().StrategyTimeout
	}
	return &Searcher{
		store:    st,
		embedder: embedder,
		analyzer: analyzer,
		logger:   logger.WithFields("component", "search"),
		metrics:  metrics,
		config:   cfg,
	}
}

// hit is one strategy contribution before ranking.
type hit struct {
	resourceID     string
	score          float64
	matchType      models.MatchType
	matchedValue   string
	occurrences    int
	matchingChunks int
	chunk          *models.Chunk
}

// strategy produces hits for one signal. Failures are isolated by the
// caller; a strategy that errors contributes nothing.
type strategy struct {
	name string
	run  func(ctx context.Context) ([]*hit, error)
}

// Search analyzes the raw query and runs the applicable strategies
// concurrently.
func (s *Searcher) Search(ctx context.Context, tenantID, rawQuery string, limit int) (*models.SearchResponse, error) {
	start := time.Now()
	limit = s.clampLimit(limit)

	intent := s.analyzer.Analyze(ctx, tenantID, rawQuery)
	strategies := s.selectStrategies(tenantID, intent)

	var mu sync.Mutex
	var hits []*hit

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range strategies {
		st := st
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, s.config.StrategyTimeout)
			defer cancel()

			strategyStart := time.Now()
			results, err := st.run(sctx)
			if s.metrics != nil {
				s.metrics.StrategyDuration.WithLabelValues(st.name).
					Observe(time.Since(strategyStart).Seconds())
			}
			if err != nil {
				s.logger.Warn(ctx, "strategy degraded", "strategy", st.name, "error", err)
				if s.metrics != nil {
					s.metrics.StrategyErrors.WithLabelValues(st.name).Inc()
				}
				return nil
			}

			mu.Lock()
			hits = append(hits, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := rank(hits, intent)
	results, err := s.hydrate(ctx, tenantID, intent, ranked, limit)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}
	return &models.SearchResponse{
		Results: results,
		Intent:  intent,
		Elapsed: time.Since(start),
	}, nil
}

// clampLimit resolves a caller-supplied limit to the allowed range.
func (s *Searcher) clampLimit(limit int) int {
	if limit <= 0 {
		return s.config.DefaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// selectStrategies picks the strategy set per the intent: strong
// signals prefer exact strategies, short vague queries skip semantic
// search, everything else fans out fully.
func (s *Searcher) selectStrategies(tenantID string, intent *models.QueryIntent) []strategy {
	tokens := textnorm.Tokenize(intent.CleanText)

	var strategies []strategy
	if intent.CleanText != "" {
		strategies = append(strategies, s.phraseStrategy(tenantID, intent))
	}
	if len(intent.IDs) > 0 || len(intent.Emails) > 0 || len(intent.IBANs) > 0 {
		strategies = append(strategies, s.idStrategy(tenantID, intent))
	}
	if len(intent.Money) > 0 {
		strategies = append(strategies, s.amountStrategy(tenantID, intent))
	}
	strategies = append(strategies, s.categoryStrategies(tenantID, intent)...)

	if intent.HasStrongSignal {
		return strategies
	}

	if len(tokens) >= 2 {
		strategies = append(strategies, s.partialStrategy(tenantID, intent, tokens))
	}
	if len(tokens) > 2 && s.embedder != nil && intent.CleanText != "" {
		strategies = append(strategies,
			s.semanticStrategy(tenantID, intent, store.ScopeResource),
			s.semanticStrategy(tenantID, intent, store.ScopeChunk))
	}
	return strategies
}
