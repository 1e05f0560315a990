// Package anthropic adapts the Anthropic Messages API to the provider
// contract. There is no embeddings endpoint; Embed reports unsupported.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
)

const (
	defaultModel         = "claude-3-5-haiku-latest"
	defaultContextTokens = 200000
)

// Provider implements provider.Provider against the Anthropic API.
type Provider struct {
	name          string
	client        *Client
	model         string
	costPerInput  float64
	costPerOutput float64
	maxContext    int
}

// New creates an Anthropic-backed provider from configuration.
func New(cfg config.ProviderConfig, opts ...ClientOption) *Provider {
	if cfg.BaseURL != "" {
		opts = append([]ClientOption{WithBaseURL(cfg.BaseURL)}, opts...)
	}

	p := &Provider{
		name:          cfg.Name,
		client:        NewClient(cfg.APIKey, opts...),
		model:         cfg.Model,
		costPerInput:  cfg.CostPerInputToken,
		costPerOutput: cfg.CostPerOutputToken,
		maxContext:    cfg.MaxContextTokens,
	}
	if p.name == "" {
		p.name = string(provider.KindAnthropic)
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.maxContext == 0 {
		p.maxContext = defaultContextTokens
	}
	return p
}

func (p *Provider) Name() string        { return p.name }
func (p *Provider) Kind() provider.Kind { return provider.KindAnthropic }

func (p *Provider) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		SupportsEmbeddings: false,
		SupportsStreaming:  true,
		MaxContextTokens:   p.maxContext,
	}
}

func (p *Provider) EstimateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*p.costPerInput + float64(completionTokens)*p.costPerOutput
}

func (p *Provider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024 // the Messages API requires an explicit cap
	}

	apiReq := &messagesRequest{
		Model:       p.model,
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, message{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.createMessage(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic returned no text content")
	}

	return &provider.CompletionResponse{
		Text: text.String(),
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
		FinishReason: resp.StopReason,
	}, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, provider.ErrEmbeddingsUnsupported
}

// Probe issues a one-token message and times it.
func (p *Provider) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := p.client.createMessage(ctx, &messagesRequest{
		Model:     p.model,
		Messages:  []message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return time.Since(start), err
}
