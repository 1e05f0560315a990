package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
)

// fakeProvider is a configurable in-memory backend for registry and
// selector tests.
type fakeProvider struct {
	name         string
	costPerToken float64
	probeLatency time.Duration
	probeErr     error
	completeErr  error
	reply        string
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Kind() Kind   { return KindOpenAI }

func (f *fakeProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	reply := f.reply
	if reply == "" {
		reply = "ok"
	}
	return &CompletionResponse{Text: reply, Usage: Usage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, ErrEmbeddingsUnsupported
}

func (f *fakeProvider) Capabilities() domain.Capabilities {
	return domain.Capabilities{MaxContextTokens: 8192}
}

func (f *fakeProvider) EstimateCost(promptTokens, completionTokens int) float64 {
	return f.costPerToken * float64(promptTokens+completionTokens)
}

func (f *fakeProvider) Probe(ctx context.Context) (time.Duration, error) {
	return f.probeLatency, f.probeErr
}

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"openai", "anthropic", "ollama"} {
		kind, err := ParseKind(valid)
		if err != nil || string(kind) != valid {
			t.Errorf("ParseKind(%q) = %q, %v", valid, kind, err)
		}
	}
	for _, invalid := range []string{"", "OpenAI", "gemini"} {
		if _, err := ParseKind(invalid); err == nil {
			t.Errorf("ParseKind(%q): want error", invalid)
		}
	}
}

func TestRegistryRegisterAndActive(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Active(); err == nil {
		t.Fatal("Active on empty registry: want error")
	}

	if err := r.Register(&fakeProvider{name: "alpha"}, config.HealthThresholds{}); err != nil {
		t.Fatalf("Register(alpha): %v", err)
	}
	if err := r.Register(&fakeProvider{name: "beta"}, config.HealthThresholds{}); err != nil {
		t.Fatalf("Register(beta): %v", err)
	}
	if err := r.Register(&fakeProvider{name: "alpha"}, config.HealthThresholds{}); err == nil {
		t.Fatal("duplicate Register: want error")
	}

	active, err := r.Active()
	if err != nil || active.Name() != "alpha" {
		t.Errorf("Active = %v, %v; want first-registered alpha", active, err)
	}

	if err := r.SetActive("beta"); err != nil {
		t.Fatalf("SetActive(beta): %v", err)
	}
	active, _ = r.Active()
	if active.Name() != "beta" {
		t.Errorf("Active after switch = %s, want beta", active.Name())
	}
	if err := r.SetActive("missing"); err == nil {
		t.Fatal("SetActive(missing): want error")
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("Names = %v, want registration order [alpha beta]", names)
	}
}

func TestRegistryProbeClassification(t *testing.T) {
	thresholds := config.HealthThresholds{
		DegradedAfter:  100 * time.Millisecond,
		UnhealthyAfter: 500 * time.Millisecond,
	}
	tests := []struct {
		name     string
		provider *fakeProvider
		want     domain.HealthStatus
	}{
		{"fast", &fakeProvider{name: "fast", probeLatency: 20 * time.Millisecond}, domain.StatusHealthy},
		{"slow", &fakeProvider{name: "slow", probeLatency: 200 * time.Millisecond}, domain.StatusDegraded},
		{"very slow", &fakeProvider{name: "very-slow", probeLatency: time.Second}, domain.StatusUnhealthy},
		{"erroring", &fakeProvider{name: "down", probeErr: errors.New("connection refused")}, domain.StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil)
			if err := r.Register(tt.provider, thresholds); err != nil {
				t.Fatalf("Register: %v", err)
			}
			snapshot, err := r.Probe(context.Background(), tt.provider.name)
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if snapshot.Status != tt.want {
				t.Errorf("Status = %s, want %s", snapshot.Status, tt.want)
			}
		})
	}
}

// Probing only coarsely classifies per-provider: a local backend with a
// generous threshold stays healthy at a latency that marks a remote API
// degraded.
func TestRegistryPerProviderThresholds(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeProvider{name: "remote", probeLatency: 3 * time.Second},
		config.HealthThresholds{DegradedAfter: 2 * time.Second, UnhealthyAfter: 10 * time.Second})
	r.Register(&fakeProvider{name: "local", probeLatency: 3 * time.Second},
		config.HealthThresholds{DegradedAfter: 5 * time.Second, UnhealthyAfter: 30 * time.Second})

	snapshots := r.ProbeAll(context.Background())
	if got := snapshots["remote"].Status; got != domain.StatusDegraded {
		t.Errorf("remote = %s, want degraded", got)
	}
	if got := snapshots["local"].Status; got != domain.StatusHealthy {
		t.Errorf("local = %s, want healthy", got)
	}
}

func TestRegistryErrorRateDegrades(t *testing.T) {
	r := NewRegistry(nil)
	p := &fakeProvider{name: "flaky", probeLatency: 10 * time.Millisecond}
	r.Register(p, config.HealthThresholds{DegradedAfter: time.Second, UnhealthyAfter: 10 * time.Second})

	ctx := context.Background()
	// Fail enough recent probes to push the rolling error rate past the
	// degradation cutoff, then succeed once.
	p.probeErr = errors.New("boom")
	for i := 0; i < 10; i++ {
		r.Probe(ctx, "flaky")
	}
	p.probeErr = nil
	snapshot, err := r.Probe(ctx, "flaky")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if snapshot.Status != domain.StatusDegraded {
		t.Errorf("Status = %s, want degraded from error rate %.2f", snapshot.Status, snapshot.ErrorRate)
	}
}

func TestRegistrySnapshotProbesOnDemand(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&fakeProvider{name: "alpha", probeLatency: time.Millisecond},
		config.HealthThresholds{DegradedAfter: time.Second, UnhealthyAfter: 10 * time.Second})

	snapshot, err := r.Snapshot(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Status != domain.StatusHealthy {
		t.Errorf("Status = %s, want healthy", snapshot.Status)
	}
	if snapshot.CheckedAt.IsZero() {
		t.Error("CheckedAt not set by the on-demand probe")
	}

	if _, err := r.Snapshot(context.Background(), "missing"); err == nil {
		t.Fatal("Snapshot(missing): want error")
	}
}
