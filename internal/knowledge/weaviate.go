package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
)

// WeaviateSearcher runs similarity queries against a Weaviate class via
// its GraphQL API.
type WeaviateSearcher struct {
	client    *weaviate.Client
	className string
}

// NewWeaviateSearcher connects to the configured Weaviate instance.
func NewWeaviateSearcher(cfg config.KnowledgeConfig) (*WeaviateSearcher, error) {
	clientConfig := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		clientConfig.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	className := cfg.ClassName
	if className == "" {
		className = "InsuranceKnowledge"
	}
	return &WeaviateSearcher{client: client, className: className}, nil
}

// Search runs a nearText query, optionally scoped by filter.
func (w *WeaviateSearcher) Search(ctx context.Context, query string, topK int, filter *Filter) ([]domain.KnowledgeSnippet, error) {
	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	builder := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithNearText(nearText).
		WithLimit(topK).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "category"},
			graphql.Field{Name: "source"},
			graphql.Field{Name: "tenantId"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{
				{Name: "id"},
				{Name: "certainty"},
			}},
		)

	if where := buildWhere(filter); where != nil {
		builder = builder.WithWhere(where)
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search: %s", result.Errors[0].Message)
	}

	return w.parseResults(result.Data), nil
}

func buildWhere(filter *Filter) *filters.WhereBuilder {
	if filter == nil {
		return nil
	}

	var operands []*filters.WhereBuilder
	if filter.TenantID != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"tenantId"}).
			WithOperator(filters.Equal).
			WithValueText(filter.TenantID))
	}
	if filter.Category != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.Equal).
			WithValueText(filter.Category))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

func (w *WeaviateSearcher) parseResults(data map[string]models.JSONObject) []domain.KnowledgeSnippet {
	var snippets []domain.KnowledgeSnippet

	get, ok := data["Get"].(map[string]any)
	if !ok {
		return snippets
	}
	items, ok := get[w.className].([]any)
	if !ok {
		return snippets
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		snippet := domain.KnowledgeSnippet{Metadata: make(map[string]string)}
		if content, ok := obj["content"].(string); ok {
			snippet.Content = content
		}
		if category, ok := obj["category"].(string); ok {
			snippet.Metadata["category"] = category
		}
		if source, ok := obj["source"].(string); ok {
			snippet.Metadata["source"] = source
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := additional["id"].(string); ok {
				snippet.Metadata["id"] = id
			}
			snippet.Score = parseScore(additional["certainty"])
		}
		if snippet.Content != "" {
			snippets = append(snippets, snippet)
		}
	}
	return snippets
}

func parseScore(v any) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
