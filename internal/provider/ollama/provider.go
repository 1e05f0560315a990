// Package ollama adapts a locally hosted Ollama instance to the
// provider contract. Completions cost nothing, but the backend is slow
// compared to the hosted APIs, so its health thresholds should be set
// accordingly in configuration.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
)

const (
	defaultBaseURL       = "http://localhost:11434"
	defaultModel         = "llama3.1"
	defaultContextTokens = 8192
)

// Provider implements provider.Provider against a local Ollama server.
type Provider struct {
	name       string
	baseURL    string
	model      string
	maxContext int
	httpClient *http.Client
}

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// New creates an Ollama-backed provider from configuration.
func New(cfg config.ProviderConfig, opts ...Option) *Provider {
	p := &Provider{
		name:       cfg.Name,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxContext: cfg.MaxContextTokens,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.name == "" {
		p.name = string(provider.KindOllama)
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
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
func (p *Provider) Kind() provider.Kind { return provider.KindOllama }

func (p *Provider) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		SupportsEmbeddings: true,
		SupportsStreaming:  true,
		MaxContextTokens:   p.maxContext,
	}
}

// EstimateCost is always zero: the model runs on local hardware.
func (p *Provider) EstimateCost(promptTokens, completionTokens int) float64 {
	return 0
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatResponse struct {
	Message         chatMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (p *Provider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	apiReq := &chatRequest{Model: p.model, Stream: false}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		apiReq.Options = &chatOptions{NumPredict: req.MaxTokens, Temperature: req.Temperature}
	}
	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	var resp chatResponse
	if err := p.post(ctx, "/api/chat", apiReq, &resp); err != nil {
		return nil, err
	}

	return &provider.CompletionResponse{
		Text: resp.Message.Content,
		Usage: provider.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		},
		FinishReason: resp.DoneReason,
	}, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp embedResponse
	if err := p.post(ctx, "/api/embeddings", &embedRequest{Model: p.model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding")
	}
	return resp.Embedding, nil
}

// Probe issues a one-token chat and times it.
func (p *Provider) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var resp chatResponse
	err := p.post(ctx, "/api/chat", &chatRequest{
		Model:    p.model,
		Messages: []chatMessage{{Role: "user", Content: "ping"}},
		Stream:   false,
		Options:  &chatOptions{NumPredict: 1},
	}, &resp)
	return time.Since(start), err
}

func (p *Provider) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
