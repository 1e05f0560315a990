// Package openai adapts the OpenAI chat and embeddings APIs to the
// provider contract.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultContextTokens  = 128000
)

// Provider implements provider.Provider against the OpenAI API.
type Provider struct {
	name           string
	client         *Client
	model          string
	embeddingModel string
	costPerInput   float64
	costPerOutput  float64
	maxContext     int
}

// New creates an OpenAI-backed provider from configuration.
func New(cfg config.ProviderConfig, opts ...ClientOption) *Provider {
	if cfg.BaseURL != "" {
		opts = append([]ClientOption{WithBaseURL(cfg.BaseURL)}, opts...)
	}

	p := &Provider{
		name:           cfg.Name,
		client:         NewClient(cfg.APIKey, opts...),
		model:          cfg.Model,
		embeddingModel: defaultEmbeddingModel,
		costPerInput:   cfg.CostPerInputToken,
		costPerOutput:  cfg.CostPerOutputToken,
		maxContext:     cfg.MaxContextTokens,
	}
	if p.name == "" {
		p.name = string(provider.KindOpenAI)
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
func (p *Provider) Kind() provider.Kind { return provider.KindOpenAI }

func (p *Provider) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		SupportsEmbeddings: true,
		SupportsStreaming:  true,
		MaxContextTokens:   p.maxContext,
	}
}

func (p *Provider) EstimateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*p.costPerInput + float64(completionTokens)*p.costPerOutput
}

func (p *Provider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	apiReq := &chatCompletionRequest{
		Model:       p.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.createChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &provider.CompletionResponse{
		Text: resp.Choices[0].Message.Content,
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.createEmbedding(ctx, &embeddingRequest{
		Model: p.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding")
	}
	return resp.Data[0].Embedding, nil
}

// Probe issues a one-token completion and times it.
func (p *Provider) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := p.client.createChatCompletion(ctx, &chatCompletionRequest{
		Model:     p.model,
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return time.Since(start), err
}
