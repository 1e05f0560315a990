// Package policy chooses which generation provider services a request,
// based on cost, speed, quality ordering, or message heuristics.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
)

// Policy names a selection strategy.
type Policy string

const (
	PolicyCost    Policy = "cost"
	PolicySpeed   Policy = "speed"
	PolicyQuality Policy = "quality"
	PolicyAuto    Policy = "auto"
)

// ParsePolicy validates a configured policy string, defaulting to auto.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return PolicyAuto, nil
	}
	switch Policy(s) {
	case PolicyCost, PolicySpeed, PolicyQuality, PolicyAuto:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown selection policy %q", s)
	}
}

// Request carries what the selector needs to decide: the message (for
// auto heuristics) and the projected token volume (for cost).
type Request struct {
	Message          string
	Stage            domain.Stage
	PromptTokens     int
	CompletionTokens int
}

// Selector picks providers from the registry's live health snapshots.
type Selector struct {
	registry     *provider.Registry
	qualityOrder []string
	logger       *slog.Logger
}

// NewSelector creates a Selector. qualityOrder lists provider names
// best-first for the quality policy; when empty, registration order is
// used.
func NewSelector(registry *provider.Registry, qualityOrder []string, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{registry: registry, qualityOrder: qualityOrder, logger: logger}
}

// Select returns the provider the policy chooses, or
// domain.ErrProviderUnavailable when no candidate is usable. Degraded
// providers are considered only when nothing healthy remains.
func (s *Selector) Select(ctx context.Context, policy Policy, req Request) (provider.Provider, error) {
	if policy == PolicyAuto {
		resolved := ResolveAuto(req.Message, req.Stage)
		s.logger.Debug("auto policy resolved",
			slog.String("policy", string(resolved)),
			slog.String("stage", string(req.Stage)))
		policy = resolved
	}

	snapshots := s.registry.Snapshots(ctx)
	candidates := usable(snapshots)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: policy %s", domain.ErrProviderUnavailable, policy)
	}

	switch policy {
	case PolicyCost:
		return s.cheapest(candidates, req)
	case PolicySpeed:
		return s.fastest(candidates, snapshots)
	case PolicyQuality:
		return s.bestQuality(candidates)
	default:
		return nil, fmt.Errorf("unknown selection policy %q", policy)
	}
}

// usable returns the healthy candidate set, falling back to degraded
// providers when nothing is fully healthy.
func usable(snapshots map[string]domain.HealthSnapshot) map[string]bool {
	healthy := make(map[string]bool)
	degraded := make(map[string]bool)
	for name, snap := range snapshots {
		switch snap.Status {
		case domain.StatusHealthy:
			healthy[name] = true
		case domain.StatusDegraded:
			degraded[name] = true
		}
	}
	if len(healthy) > 0 {
		return healthy
	}
	return degraded
}

func (s *Selector) cheapest(candidates map[string]bool, req Request) (provider.Provider, error) {
	var best provider.Provider
	bestCost := 0.0
	for _, name := range s.registry.Names() {
		if !candidates[name] {
			continue
		}
		p, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		cost := p.EstimateCost(req.PromptTokens, req.CompletionTokens)
		if best == nil || cost < bestCost {
			best, bestCost = p, cost
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: policy cost", domain.ErrProviderUnavailable)
	}
	return best, nil
}

func (s *Selector) fastest(candidates map[string]bool, snapshots map[string]domain.HealthSnapshot) (provider.Provider, error) {
	var bestName string
	for name := range candidates {
		if bestName == "" || snapshots[name].Latency < snapshots[bestName].Latency {
			bestName = name
		}
	}
	if bestName == "" {
		return nil, fmt.Errorf("%w: policy speed", domain.ErrProviderUnavailable)
	}
	return s.registry.Get(bestName)
}

func (s *Selector) bestQuality(candidates map[string]bool) (provider.Provider, error) {
	order := s.qualityOrder
	if len(order) == 0 {
		order = s.registry.Names()
	}
	for _, name := range order {
		if candidates[name] {
			return s.registry.Get(name)
		}
	}
	return nil, fmt.Errorf("%w: policy quality", domain.ErrProviderUnavailable)
}

var complexityKeywords = []string{
	"calculate", "premium", "compare", "comprehensive", "coverage",
	"deductible", "underwriting", "exclusion", "claim", "policy terms",
}

var greetingKeywords = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
}

// ResolveAuto derives a concrete policy from message heuristics: short
// greeting-like messages favor speed, calculation-heavy or
// decision-stage messages favor quality, everything else favors cost.
func ResolveAuto(message string, stage domain.Stage) Policy {
	lower := strings.ToLower(strings.TrimSpace(message))

	if stage == domain.StageDecision {
		return PolicyQuality
	}
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			return PolicyQuality
		}
	}
	if len(lower) < 20 {
		for _, kw := range greetingKeywords {
			if strings.Contains(lower, kw) {
				return PolicySpeed
			}
		}
	}
	if len(lower) < 12 {
		return PolicySpeed
	}
	return PolicyCost
}
