package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Selection.Policy != "auto" {
		t.Errorf("Selection.Policy = %q, want auto", cfg.Selection.Policy)
	}
	if cfg.Cache.Primary.Backend != "memory" || cfg.Cache.Primary.Capacity != 1000 {
		t.Errorf("Cache.Primary = %+v, want memory/1000", cfg.Cache.Primary)
	}
	if cfg.Cache.Primary.DefaultTTL != 5*time.Minute {
		t.Errorf("Cache.Primary.DefaultTTL = %s, want 5m", cfg.Cache.Primary.DefaultTTL)
	}
	if cfg.Knowledge.ClassName != "InsuranceKnowledge" || cfg.Knowledge.TopK != 3 {
		t.Errorf("Knowledge = %+v, want InsuranceKnowledge/3", cfg.Knowledge)
	}
	if cfg.Orchestrator.MaxConcurrent != 25 {
		t.Errorf("Orchestrator.MaxConcurrent = %d, want 25", cfg.Orchestrator.MaxConcurrent)
	}
	if cfg.Orchestrator.GenerationTimeout != 8*time.Second {
		t.Errorf("Orchestrator.GenerationTimeout = %s, want 8s", cfg.Orchestrator.GenerationTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
providers:
  - name: primary
    kind: openai
    model: gpt-4o-mini
    cost_per_input_token: 0.00000015
  - name: local
    kind: ollama
    health:
      degraded_after: 5s
      unhealthy_after: 30s
selection:
  policy: quality
  quality_order: [primary, local]
cache:
  primary:
    backend: sqlite
    path: /tmp/cache.db
    capacity: 500
tenants:
  - id: acme
    name: Acme Insurance
    contact_phone: "+233200000000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0].Name != "primary" || cfg.Providers[1].Kind != "ollama" {
		t.Fatalf("Providers = %+v, want primary/local", cfg.Providers)
	}
	if cfg.Providers[1].Health.DegradedAfter != 5*time.Second {
		t.Errorf("local DegradedAfter = %s, want 5s", cfg.Providers[1].Health.DegradedAfter)
	}
	if cfg.Selection.Policy != "quality" || len(cfg.Selection.QualityOrder) != 2 {
		t.Errorf("Selection = %+v, want quality with 2-entry order", cfg.Selection)
	}
	if cfg.Cache.Primary.Backend != "sqlite" || cfg.Cache.Primary.Capacity != 500 {
		t.Errorf("Cache.Primary = %+v, want sqlite/500", cfg.Cache.Primary)
	}
	if len(cfg.Tenants) != 1 || cfg.Tenants[0].ContactPhone != "+233200000000" {
		t.Errorf("Tenants = %+v", cfg.Tenants)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AIA_SERVER__PORT", "7070")
	t.Setenv("AIA_SELECTION__POLICY", "cost")
	t.Setenv("AIA_KNOWLEDGE__HOST", "weaviate.internal:8080")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Selection.Policy != "cost" {
		t.Errorf("Selection.Policy = %q, want cost", cfg.Selection.Policy)
	}
	if cfg.Knowledge.Host != "weaviate.internal:8080" {
		t.Errorf("Knowledge.Host = %q", cfg.Knowledge.Host)
	}
}

// Snake_case leaves keep their single underscores; only the double
// underscore separates hierarchy levels.
func TestLoadEnvOverrideSnakeCaseKeys(t *testing.T) {
	t.Setenv("AIA_ORCHESTRATOR__MAX_CONCURRENT", "3")
	t.Setenv("AIA_SERVER__REQUEST_TIMEOUT", "1s")
	t.Setenv("AIA_CACHE__PRIMARY__DEFAULT_TTL", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.MaxConcurrent != 3 {
		t.Errorf("Orchestrator.MaxConcurrent = %d, want env override 3", cfg.Orchestrator.MaxConcurrent)
	}
	if cfg.Server.RequestTimeout != time.Second {
		t.Errorf("Server.RequestTimeout = %s, want env override 1s", cfg.Server.RequestTimeout)
	}
	if cfg.Cache.Primary.DefaultTTL != 90*time.Second {
		t.Errorf("Cache.Primary.DefaultTTL = %s, want env override 90s", cfg.Cache.Primary.DefaultTTL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Orchestrator.MaxConcurrent = 0 }, true},
		{"unnamed provider", func(c *Config) {
			c.Providers = []ProviderConfig{{Kind: "openai"}}
		}, true},
		{"duplicate provider", func(c *Config) {
			c.Providers = []ProviderConfig{{Name: "a", Kind: "openai"}, {Name: "a", Kind: "ollama"}}
		}, true},
		{"unknown kind", func(c *Config) {
			c.Providers = []ProviderConfig{{Name: "a", Kind: "gemini"}}
		}, true},
		{"unknown cache backend", func(c *Config) { c.Cache.Primary.Backend = "memcached" }, true},
		{"fallback backend optional", func(c *Config) { c.Cache.Fallback.Backend = "" }, false},
		{"bad fallback backend", func(c *Config) { c.Cache.Fallback.Backend = "mongo" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
