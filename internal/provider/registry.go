package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
)

// Descriptor is the registry's immutable view of one backend. Health
// counters live beside it and change with every probe.
type Descriptor struct {
	Name         string              `json:"name"`
	Kind         Kind                `json:"kind"`
	Capabilities domain.Capabilities `json:"capabilities"`
	CostPerToken float64             `json:"cost_per_token"`
}

// outcomeWindow is a fixed-size ring of recent probe outcomes used to
// derive a rolling error rate.
type outcomeWindow struct {
	outcomes [20]bool // true = failure
	next     int
	filled   int
}

func (w *outcomeWindow) record(failed bool) {
	w.outcomes[w.next] = failed
	w.next = (w.next + 1) % len(w.outcomes)
	if w.filled < len(w.outcomes) {
		w.filled++
	}
}

func (w *outcomeWindow) errorRate() float64 {
	if w.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < w.filled; i++ {
		if w.outcomes[i] {
			failures++
		}
	}
	return float64(failures) / float64(w.filled)
}

type entry struct {
	provider   Provider
	thresholds config.HealthThresholds
	window     outcomeWindow
	last       domain.HealthSnapshot
	hasProbe   bool
}

// Registry holds one adapter per configured backend along with its
// health state and the active-provider marker.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	active  string
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{entries: make(map[string]*entry), logger: logger}
}

// Register adds a provider. The first registered provider becomes
// active by default.
func (r *Registry) Register(p Provider, thresholds config.HealthThresholds) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	if thresholds.DegradedAfter <= 0 {
		thresholds.DegradedAfter = 2 * time.Second
	}
	if thresholds.UnhealthyAfter <= 0 {
		thresholds.UnhealthyAfter = 10 * time.Second
	}

	r.entries[name] = &entry{provider: p, thresholds: thresholds}
	r.order = append(r.order, name)
	if r.active == "" {
		r.active = name
	}
	return nil
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		descriptors = append(descriptors, Descriptor{
			Name:         name,
			Kind:         e.provider.Kind(),
			Capabilities: e.provider.Capabilities(),
			CostPerToken: e.provider.EstimateCost(1, 0),
		})
	}
	return descriptors
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return e.provider, nil
}

// Active returns the currently active provider.
func (r *Registry) Active() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == "" {
		return nil, fmt.Errorf("no providers registered")
	}
	return r.entries[r.active].provider, nil
}

// SetActive switches the active provider.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.active = name
	return nil
}

// Probe runs one live health check against the named provider and
// classifies the result against its configured thresholds.
func (r *Registry) Probe(ctx context.Context, name string) (domain.HealthSnapshot, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return domain.HealthSnapshot{}, fmt.Errorf("provider %q not registered", name)
	}

	latency, probeErr := e.provider.Probe(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	e.window.record(probeErr != nil)
	snapshot := domain.HealthSnapshot{
		Latency:   latency,
		ErrorRate: e.window.errorRate(),
		CheckedAt: time.Now(),
		Status:    classify(latency, probeErr, e.window.errorRate(), e.thresholds),
	}
	e.last = snapshot
	e.hasProbe = true

	if probeErr != nil {
		r.logger.Warn("provider probe failed",
			slog.String("provider", name),
			slog.String("error", probeErr.Error()))
	}
	return snapshot, nil
}

// ProbeAll probes every provider concurrently.
func (r *Registry) ProbeAll(ctx context.Context) map[string]domain.HealthSnapshot {
	names := r.Names()

	var wg sync.WaitGroup
	results := make([]domain.HealthSnapshot, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			snapshot, err := r.Probe(ctx, name)
			if err == nil {
				results[i] = snapshot
			}
		}(i, name)
	}
	wg.Wait()

	out := make(map[string]domain.HealthSnapshot, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// Snapshot returns the last recorded health snapshot for name, probing
// once when none exists yet.
func (r *Registry) Snapshot(ctx context.Context, name string) (domain.HealthSnapshot, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	if ok && e.hasProbe {
		snapshot := e.last
		r.mu.RUnlock()
		return snapshot, nil
	}
	r.mu.RUnlock()

	if !ok {
		return domain.HealthSnapshot{}, fmt.Errorf("provider %q not registered", name)
	}
	return r.Probe(ctx, name)
}

// Snapshots returns the latest snapshot per provider, probing those
// never checked.
func (r *Registry) Snapshots(ctx context.Context) map[string]domain.HealthSnapshot {
	out := make(map[string]domain.HealthSnapshot)
	for _, name := range r.Names() {
		snapshot, err := r.Snapshot(ctx, name)
		if err != nil {
			continue
		}
		out[name] = snapshot
	}
	return out
}

// StartProbing refreshes every provider's snapshot on a fixed interval
// until ctx is cancelled.
func (r *Registry) StartProbing(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.ProbeAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.ProbeAll(ctx)
			}
		}
	}()
}

// classify turns a probe outcome into a status using the provider's own
// thresholds.
func classify(latency time.Duration, err error, errorRate float64, t config.HealthThresholds) domain.HealthStatus {
	switch {
	case err != nil:
		return domain.StatusUnhealthy
	case latency > t.UnhealthyAfter:
		return domain.StatusUnhealthy
	case latency > t.DegradedAfter || errorRate > 0.25:
		return domain.StatusDegraded
	default:
		return domain.StatusHealthy
	}
}
