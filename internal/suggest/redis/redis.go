// Package redis provides a Redis-backed suggestion index.
//
// Each (tenant, category) pair owns two sorted sets: a zero-score set
// queried with ZRANGEBYLEX for prefix scans, and a score set whose
// members accumulate priority-weighted frequency via ZINCRBY. The pair
// is needed because ZRANGEBYLEX is only defined over uniform scores.
package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/papertrove/papertrove/internal/suggest"
	"github.com/papertrove/papertrove/internal/textnorm"
	"github.com/papertrove/papertrove/pkg/models"
)

// Config configures the Redis suggestion index.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Index implements suggest.Index on Redis.
type Index struct {
	client *redis.Client
}

var _ suggest.Index = (*Index)(nil)

// New creates a Redis suggestion index and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Index, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Index{client: client}, nil
}

// NewWithClient wraps an existing client; used in tests.
func NewWithClient(client *redis.Client) *Index {
	return &Index{client: client}
}

func lexKey(tenantID string, cat suggest.Category) string {
	return fmt.Sprintf("suggest:%s:%s:lex", tenantID, cat)
}

func scoreKey(tenantID string, cat suggest.Category) string {
	return fmt.Sprintf("suggest:%s:%s:score", tenantID, cat)
}

// IndexResource increments term frequencies for the resource's terms.
func (i *Index) IndexResource(ctx context.Context, res *models.Resource) error {
	terms := suggest.TermsFor(res)
	if len(terms) == 0 {
		return nil
	}

	pipe := i.client.Pipeline()
	for cat, catTerms := range terms {
		priority := cat.Priority()
		for _, term := range catTerms {
			pipe.ZAdd(ctx, lexKey(res.TenantID, cat), redis.Z{Score: 0, Member: term})
			pipe.ZIncrBy(ctx, scoreKey(res.TenantID, cat), priority, term)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index suggestion terms: %w", err)
	}
	return nil
}

// RemoveResource removes the resource's file name term.
func (i *Index) RemoveResource(ctx context.Context, res *models.Resource) error {
	name := textnorm.Normalize(res.FileName)
	if name == "" {
		return nil
	}

	pipe := i.client.Pipeline()
	pipe.ZRem(ctx, lexKey(res.TenantID, suggest.CategoryFilenames), name)
	pipe.ZRem(ctx, scoreKey(res.TenantID, suggest.CategoryFilenames), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove suggestion terms: %w", err)
	}
	return nil
}

// QueryPrefix returns suggestions matching the normalized prefix.
func (i *Index) QueryPrefix(ctx context.Context, tenantID, prefix string, limit int) ([]*models.Suggestion, error) {
	prefix = textnorm.Normalize(prefix)
	if len([]rune(prefix)) < suggest.MinPrefixLength {
		return nil, nil
	}
	limit = suggest.ClampLimit(limit)

	seen := make(map[string]bool)
	var suggestions []*models.Suggestion

	for _, cat := range suggest.Categories {
		members, err := i.client.ZRangeByLex(ctx, lexKey(tenantID, cat), &redis.ZRangeBy{
			Min:   "[" + prefix,
			Max:   "[" + prefix + "\xff",
			Count: int64(limit),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("prefix scan %s: %w", cat, err)
		}
		if len(members) == 0 {
			continue
		}

		scores, err := i.client.ZMScore(ctx, scoreKey(tenantID, cat), members...).Result()
		if err != nil {
			return nil, fmt.Errorf("member scores %s: %w", cat, err)
		}

		for idx, member := range members {
			if seen[member] {
				continue
			}
			seen[member] = true
			score := cat.Priority()
			if idx < len(scores) && scores[idx] > 0 {
				score = scores[idx]
			}
			suggestions = append(suggestions, &models.Suggestion{
				Text:  member,
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

// Close releases the client.
func (i *Index) Close() error {
	return i.client.Close()
}
