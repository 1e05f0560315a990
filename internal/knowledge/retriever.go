// Package knowledge retrieves supporting passages from a vector
// similarity backend, with graceful degradation when filtered search
// fails and a short-TTL cache in front of the backend.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/cache"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
)

// Searcher is the vector backend contract. WeaviateSearcher is the
// production implementation; tests substitute fakes.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filter *Filter) ([]domain.KnowledgeSnippet, error)
}

// Filter scopes a search to a tenant and optionally a product category.
type Filter struct {
	TenantID string `json:"tenant_id,omitempty"`
	Category string `json:"category,omitempty"`
}

// Options tune the retriever.
type Options struct {
	TopK      int           // default 3
	Locale    string        // fixed region token appended to every query
	ResultTTL time.Duration // cache TTL; short, the corpus changes
}

// Retriever queries the similarity backend and caches capped results.
type Retriever struct {
	searcher Searcher
	cache    *cache.Coordinator
	opts     Options
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. cache may be nil to disable caching.
func NewRetriever(searcher Searcher, cacheCoord *cache.Coordinator, opts Options, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 5 * time.Minute
	}
	return &Retriever{searcher: searcher, cache: cacheCoord, opts: opts, logger: logger}
}

// Search returns up to topK supporting passages for queryText. A failed
// filtered search is retried once without the filter. The returned
// error is nil for a clean search and wraps domain.ErrRetrievalDegraded
// when the filter was dropped or both attempts failed; snippets may
// still be non-empty alongside it. Callers absorb the error, the
// request continues either way.
func (r *Retriever) Search(ctx context.Context, queryText string, topK int, filter *Filter) ([]domain.KnowledgeSnippet, error) {
	if topK <= 0 || topK > r.opts.TopK {
		topK = r.opts.TopK
	}
	query := r.buildQuery(queryText, filter)

	cacheKey := r.cacheKey(query, topK, filter)
	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, cacheKey); ok {
			var cached []domain.KnowledgeSnippet
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var degraded error
	snippets, err := r.searcher.Search(ctx, query, topK, filter)
	if err != nil {
		degraded = fmt.Errorf("%w: filtered search: %v", domain.ErrRetrievalDegraded, err)
		r.logger.Warn("filtered knowledge search failed, retrying unfiltered",
			slog.String("error", err.Error()),
			slog.String("tenant_id", tenantOf(filter)))

		snippets, err = r.searcher.Search(ctx, query, topK, nil)
		if err != nil {
			r.logger.Error("knowledge retrieval degraded to empty result",
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: unfiltered retry: %v", domain.ErrRetrievalDegraded, err)
		}
	}

	if len(snippets) > topK {
		snippets = snippets[:topK]
	}

	// Unfiltered results must not be cached under the filtered key.
	if r.cache != nil && degraded == nil && len(snippets) > 0 {
		if raw, err := json.Marshal(snippets); err == nil {
			if err := r.cache.Set(ctx, cacheKey, raw, r.opts.ResultTTL); err != nil {
				r.logger.Warn("knowledge cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return snippets, degraded
}

// buildQuery augments the raw text with category terms and the fixed
// locale token so retrieval stays anchored to the deployment's region.
func (r *Retriever) buildQuery(queryText string, filter *Filter) string {
	parts := []string{strings.TrimSpace(queryText)}
	if filter != nil && filter.Category != "" {
		parts = append(parts, filter.Category+" insurance")
	}
	if r.opts.Locale != "" {
		parts = append(parts, r.opts.Locale)
	}
	return strings.Join(parts, " ")
}

func (r *Retriever) cacheKey(query string, topK int, filter *Filter) string {
	serialized, _ := json.Marshal(filter)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", query, topK, serialized)))

	return cache.Key{
		Namespace: "knowledge",
		Kind:      "search",
		TenantID:  tenantOf(filter),
		ID:        hex.EncodeToString(sum[:16]),
		Version:   "v1",
	}.String()
}

func tenantOf(filter *Filter) string {
	if filter == nil {
		return ""
	}
	return filter.TenantID
}
