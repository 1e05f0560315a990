// Package config loads the daemon configuration from an optional YAML
// file overlaid with AIA_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Providers    []ProviderConfig   `koanf:"providers"`
	Selection    SelectionConfig    `koanf:"selection"`
	Cache        CacheConfig        `koanf:"cache"`
	Knowledge    KnowledgeConfig    `koanf:"knowledge"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Tenants      []TenantConfig     `koanf:"tenants"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// HealthThresholds are the per-provider probe latency cutoffs. A local
// backend tolerates far higher latency before being marked degraded
// than a fast remote API, so these are configuration, not constants.
type HealthThresholds struct {
	DegradedAfter  time.Duration `koanf:"degraded_after"`
	UnhealthyAfter time.Duration `koanf:"unhealthy_after"`
}

type ProviderConfig struct {
	Name               string           `koanf:"name"`
	Kind               string           `koanf:"kind"`
	APIKey             string           `koanf:"api_key"`
	BaseURL            string           `koanf:"base_url"`
	Model              string           `koanf:"model"`
	CostPerInputToken  float64          `koanf:"cost_per_input_token"`
	CostPerOutputToken float64          `koanf:"cost_per_output_token"`
	MaxContextTokens   int              `koanf:"max_context_tokens"`
	Health             HealthThresholds `koanf:"health"`
}

type SelectionConfig struct {
	Policy       string   `koanf:"policy"`
	QualityOrder []string `koanf:"quality_order"`
}

// TierConfig configures one cache tier.
type TierConfig struct {
	Backend    string        `koanf:"backend"` // memory | redis | sqlite
	Capacity   int           `koanf:"capacity"`
	DefaultTTL time.Duration `koanf:"default_ttl"`

	SweepInterval time.Duration `koanf:"sweep_interval"` // memory only
	Path          string        `koanf:"path"`           // sqlite only

	// redis only
	Address   string `koanf:"address"`
	Password  string `koanf:"password"`
	Database  int    `koanf:"database"`
	KeyPrefix string `koanf:"key_prefix"`
}

type CacheConfig struct {
	Primary  TierConfig `koanf:"primary"`
	Fallback TierConfig `koanf:"fallback"`
}

type KnowledgeConfig struct {
	Host       string        `koanf:"host"`
	Scheme     string        `koanf:"scheme"`
	APIKey     string        `koanf:"api_key"`
	ClassName  string        `koanf:"class_name"`
	TopK       int           `koanf:"top_k"`
	Locale     string        `koanf:"locale"`
	ResultTTL  time.Duration `koanf:"result_ttl"`
	Timeout    time.Duration `koanf:"timeout"`
}

type OrchestratorConfig struct {
	MaxConcurrent     int           `koanf:"max_concurrent"`
	AnalysisTimeout   time.Duration `koanf:"analysis_timeout"`
	GenerationTimeout time.Duration `koanf:"generation_timeout"`
	HistoryTurns      int           `koanf:"history_turns"`
	ResponseTTL       time.Duration `koanf:"response_ttl"`
	ProbeInterval     time.Duration `koanf:"probe_interval"`
}

type TenantConfig struct {
	ID                string `koanf:"id"`
	Name              string `koanf:"name"`
	PreferredProvider string `koanf:"preferred_provider"`
	SelectionPolicy   string `koanf:"selection_policy"`
	BrandingTone      string `koanf:"branding_tone"`
	ContactPhone      string `koanf:"contact_phone"`
	ContactEmail      string `koanf:"contact_email"`
}

// Load reads configuration from path (optional) and the environment.
// Environment variables use the AIA_ prefix with double underscores as
// hierarchy separators, so single underscores survive in snake_case
// keys: AIA_SERVER__PORT=9090, AIA_ORCHESTRATOR__MAX_CONCURRENT=50.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	applyDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("AIA_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "AIA_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	k.Set("server.port", 8080)
	k.Set("server.request_timeout", "30s")

	k.Set("selection.policy", "auto")

	k.Set("cache.primary.backend", "memory")
	k.Set("cache.primary.capacity", 1000)
	k.Set("cache.primary.default_ttl", "5m")
	k.Set("cache.primary.sweep_interval", "1m")

	k.Set("knowledge.scheme", "http")
	k.Set("knowledge.class_name", "InsuranceKnowledge")
	k.Set("knowledge.top_k", 3)
	k.Set("knowledge.locale", "Ghana")
	k.Set("knowledge.result_ttl", "5m")
	k.Set("knowledge.timeout", "5s")

	k.Set("orchestrator.max_concurrent", 25)
	k.Set("orchestrator.analysis_timeout", "2s")
	k.Set("orchestrator.generation_timeout", "8s")
	k.Set("orchestrator.history_turns", 10)
	k.Set("orchestrator.response_ttl", "10m")
	k.Set("orchestrator.probe_interval", "30s")
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Orchestrator.MaxConcurrent <= 0 {
		return fmt.Errorf("orchestrator.max_concurrent must be positive, got %d", c.Orchestrator.MaxConcurrent)
	}

	validKinds := map[string]bool{"openai": true, "anthropic": true, "ollama": true}
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with kind %q has no name", p.Kind)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if !validKinds[p.Kind] {
			return fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
	}

	switch c.Cache.Primary.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Primary.Backend)
	}
	if b := c.Cache.Fallback.Backend; b != "" && b != "memory" && b != "redis" && b != "sqlite" {
		return fmt.Errorf("unknown fallback cache backend %q", b)
	}
	return nil
}
