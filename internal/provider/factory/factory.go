// Package factory constructs provider adapters from configuration and
// registers them with a registry. It lives apart from the provider
// package so the adapters can depend on the contract without a cycle.
package factory

import (
	"fmt"
	"log/slog"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider/anthropic"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider/ollama"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider/openai"
)

// New builds one adapter. The switch over Kind is exhaustive: a new
// backend kind fails to compile until it is handled here.
func New(cfg config.ProviderConfig) (provider.Provider, error) {
	kind, err := provider.ParseKind(cfg.Kind)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.Name, err)
	}

	switch kind {
	case provider.KindOpenAI:
		return openai.New(cfg), nil
	case provider.KindAnthropic:
		return anthropic.New(cfg), nil
	case provider.KindOllama:
		return ollama.New(cfg), nil
	}
	return nil, fmt.Errorf("provider %s: unhandled kind %q", cfg.Name, kind)
}

// BuildRegistry creates adapters for every configured provider and
// registers them with their health thresholds.
func BuildRegistry(configs []config.ProviderConfig, logger *slog.Logger) (*provider.Registry, error) {
	registry := provider.NewRegistry(logger)
	for _, cfg := range configs {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p, cfg.Health); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
