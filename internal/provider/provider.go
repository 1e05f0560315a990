// Package provider defines the generation backend contract and the
// registry that tracks each backend's descriptor and live health.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
)

// Kind identifies a backend implementation. The set is closed: adding a
// backend means adding a constant here and a case to every switch, which
// the compiler then enforces.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindOllama    Kind = "ollama"
)

// ParseKind validates a configured kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindOpenAI, KindAnthropic, KindOllama:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
}

// ErrEmbeddingsUnsupported is returned by Embed on backends without an
// embeddings endpoint.
var ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

// CompletionRequest is the canonical generation request passed to any
// backend.
type CompletionRequest struct {
	System      string
	Messages    []domain.Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// CompletionResponse is the canonical generation result.
type CompletionResponse struct {
	Text         string `json:"text"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason"`
}

// Provider is one interchangeable generation backend.
type Provider interface {
	Name() string
	Kind() Kind

	// Complete generates a reply. The call must honor ctx cancellation.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Embed returns a vector for text, or ErrEmbeddingsUnsupported.
	Embed(ctx context.Context, text string) ([]float64, error)

	Capabilities() domain.Capabilities

	// EstimateCost returns the projected cost in USD for a call with the
	// given token counts. The tables behind it are static configuration.
	EstimateCost(promptTokens, completionTokens int) float64

	// Probe performs one minimal live request and reports how long it
	// took. Classification against thresholds happens in the registry.
	Probe(ctx context.Context) (time.Duration, error)
}
