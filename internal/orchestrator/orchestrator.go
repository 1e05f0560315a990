// Package orchestrator runs the per-request pipeline: admit under a
// concurrency limit, enrich context, check the cache, select a
// provider, retrieve knowledge, generate, and cache the result. Every
// exit path returns a structured response; failures degrade to a fixed
// fallback instead of propagating.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/cache"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/knowledge"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/policy"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/tenant"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/tokens"
)

// Config bounds the pipeline.
type Config struct {
	MaxConcurrent     int
	AnalysisTimeout   time.Duration
	GenerationTimeout time.Duration
	ResponseTTL       time.Duration
	MaxResponseTokens int
	DefaultPolicy     policy.Policy
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 25
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = 2 * time.Second
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 8 * time.Second
	}
	if c.ResponseTTL <= 0 {
		c.ResponseTTL = 10 * time.Minute
	}
	if c.MaxResponseTokens <= 0 {
		c.MaxResponseTokens = 500
	}
	if c.DefaultPolicy == "" {
		c.DefaultPolicy = policy.PolicyAuto
	}
}

// Deps are the collaborators, injected explicitly so tests can swap in
// fakes. Retriever may be nil when no vector backend is deployed.
type Deps struct {
	Registry  *provider.Registry
	Selector  *policy.Selector
	Retriever *knowledge.Retriever
	Cache     *cache.Coordinator
	Tenants   *tenant.Registry
	History   *History
	Tokens    *tokens.Estimator
	Logger    *slog.Logger
}

// Request is one inbound chat message.
type Request struct {
	TenantID string
	UserID   string
	Platform string
	Message  string
	Context  *domain.RequestContext
}

// Orchestrator is the top-level pipeline.
type Orchestrator struct {
	deps Deps
	cfg  Config
	sem  chan struct{}
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tokens == nil {
		deps.Tokens = tokens.NewEstimator()
	}
	if deps.History == nil {
		deps.History = NewHistory(10)
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		sem:  make(chan struct{}, cfg.MaxConcurrent),
	}
}

// HandleMessage runs the full pipeline for one message. It never
// returns an error: degradation shows up as lower confidence and
// generic wording, not as a fault.
func (o *Orchestrator) HandleMessage(ctx context.Context, req *Request) *domain.AIResponse {
	start := time.Now()
	t := o.deps.Tenants.Get(req.TenantID)

	// Admission: block until a slot frees or the caller gives up.
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return o.fallback(t, start, 0)
	}
	defer func() { <-o.sem }()

	rc := req.Context
	if rc == nil {
		rc = &domain.RequestContext{}
	}
	rc.TenantID = req.TenantID
	rc.UserID = req.UserID
	if rc.Platform == "" {
		rc.Platform = req.Platform
	}

	analysis := Analyze(req.Message)
	enrich(rc, analysis)

	// Cache check before anything expensive.
	responseKey := o.responseKey(rc, req.Message)
	if cached, ok := o.cacheGet(ctx, responseKey); ok {
		cached.FromCache = true
		cached.Elapsed = time.Since(start)
		return cached
	}

	// Canned responses short-circuit generation for the most common
	// message shapes.
	if text, ok := templateResponse(analysis.Intent, t); ok {
		return &domain.AIResponse{
			Message:     text,
			Confidence:  0.9,
			CaptureLead: analysis.LeadScore >= leadCaptureThreshold,
			LeadScore:   analysis.LeadScore,
			Elapsed:     time.Since(start),
		}
	}

	chosen, err := o.selectProvider(ctx, t, rc, req.Message)
	if err != nil {
		o.deps.Logger.Warn("provider selection failed",
			slog.String("tenant_id", req.TenantID),
			slog.String("error", err.Error()))
		return o.fallback(t, start, analysis.LeadScore)
	}

	// A second, provider-backed classification pass runs only when the
	// pattern pass was inconclusive, under its own short timeout.
	if analysis.Confidence < 0.6 {
		if c, cerr := classifyWithProvider(ctx, chosen, req.Message, o.cfg.AnalysisTimeout); cerr != nil {
			o.deps.Logger.Debug("provider classification failed, keeping pattern analysis",
				slog.String("error", cerr.Error()))
		} else {
			applyClassification(rc, c)
		}
	}

	var snippets []domain.KnowledgeSnippet
	if o.deps.Retriever != nil {
		var rerr error
		snippets, rerr = o.deps.Retriever.Search(ctx, req.Message, 0, &knowledge.Filter{
			TenantID: req.TenantID,
			Category: string(rc.Category),
		})
		if errors.Is(rerr, domain.ErrRetrievalDegraded) {
			o.deps.Logger.Warn("continuing with degraded knowledge retrieval",
				slog.String("tenant_id", req.TenantID),
				slog.Bool("recovered", len(snippets) > 0),
				slog.String("error", rerr.Error()))
		}
	}

	response, err := o.generate(ctx, chosen, t, rc, req, snippets)
	if err != nil {
		o.deps.Logger.Warn("generation failed",
			slog.String("tenant_id", req.TenantID),
			slog.String("provider", chosen.Name()),
			slog.String("error", err.Error()))
		return o.fallback(t, start, analysis.LeadScore)
	}
	response.LeadScore = rc.LeadScore
	response.CaptureLead = rc.LeadScore >= leadCaptureThreshold
	response.Elapsed = time.Since(start)

	o.cacheSet(ctx, responseKey, response)
	o.deps.History.Append(req.TenantID, req.UserID,
		domain.Message{Role: "user", Content: req.Message},
		domain.Message{Role: "assistant", Content: response.Message},
	)
	return response
}

// leadCaptureThreshold is the lead score at which a conversation is
// flagged for human follow-up.
const leadCaptureThreshold = 60

// selectProvider applies the tenant's preference first, then the
// configured selection policy.
func (o *Orchestrator) selectProvider(ctx context.Context, t *tenant.Tenant, rc *domain.RequestContext, message string) (provider.Provider, error) {
	if t.PreferredProvider != "" {
		if snap, err := o.deps.Registry.Snapshot(ctx, t.PreferredProvider); err == nil && snap.Status != domain.StatusUnhealthy {
			return o.deps.Registry.Get(t.PreferredProvider)
		}
		o.deps.Logger.Debug("preferred provider unavailable, falling back to policy",
			slog.String("provider", t.PreferredProvider))
	}

	pol := o.cfg.DefaultPolicy
	if t.SelectionPolicy != "" {
		if parsed, err := policy.ParsePolicy(t.SelectionPolicy); err == nil {
			pol = parsed
		}
	}

	// Cost ranking weighs the whole prompt, history included.
	contents := []string{message}
	for _, m := range o.deps.History.Recent(rc.TenantID, rc.UserID) {
		contents = append(contents, m.Content)
	}
	promptTokens := o.deps.Tokens.EstimateMessages("", contents)
	return o.deps.Selector.Select(ctx, pol, policy.Request{
		Message:          message,
		Stage:            rc.Stage,
		PromptTokens:     promptTokens,
		CompletionTokens: o.cfg.MaxResponseTokens,
	})
}

func (o *Orchestrator) generate(ctx context.Context, p provider.Provider, t *tenant.Tenant, rc *domain.RequestContext, req *Request, snippets []domain.KnowledgeSnippet) (*domain.AIResponse, error) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	messages := o.deps.History.Recent(req.TenantID, req.UserID)
	messages = append(messages, domain.Message{Role: "user", Content: req.Message})

	resp, err := p.Complete(genCtx, &provider.CompletionRequest{
		System:      systemPrompt(t, rc, snippets),
		Messages:    messages,
		MaxTokens:   o.cfg.MaxResponseTokens,
		Temperature: 0.7,
	})
	if err != nil {
		// A caller that went away is not a slow provider.
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("generation cancelled by caller: %v", err)
		}
		if errors.Is(err, context.DeadlineExceeded) || genCtx.Err() != nil {
			// The in-flight call is abandoned; its result, if any, is
			// discarded with the cancelled context.
			return nil, fmt.Errorf("%w: %s after %s", domain.ErrProviderTimeout, p.Name(), o.cfg.GenerationTimeout)
		}
		return nil, err
	}

	return &domain.AIResponse{
		Message:       resp.Text,
		Confidence:    0.85,
		Provider:      p.Name(),
		EstimatedCost: p.EstimateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}

// systemPrompt assembles the persona, tenant branding, and retrieved
// knowledge into the generation preamble.
func systemPrompt(t *tenant.Tenant, rc *domain.RequestContext, snippets []domain.KnowledgeSnippet) string {
	var b strings.Builder

	brand := t.Name
	if brand == "" {
		brand = "an insurance agency"
	}
	fmt.Fprintf(&b, "You are a helpful insurance assistant for %s.", brand)
	if t.BrandingTone != "" {
		fmt.Fprintf(&b, " Keep your tone %s.", t.BrandingTone)
	}
	fmt.Fprintf(&b, "\nConversation stage: %s. Product interest: %s. Urgency: %s.",
		rc.Stage, rc.Category, rc.Urgency)
	if t.ContactPhone != "" || t.ContactEmail != "" {
		fmt.Fprintf(&b, "\nWhen a customer needs a human agent, share: %s %s.", t.ContactPhone, t.ContactEmail)
	}

	if len(snippets) > 0 {
		b.WriteString("\n\nUse the following knowledge when relevant:")
		for i, s := range snippets {
			fmt.Fprintf(&b, "\n[%d] %s", i+1, s.Content)
		}
	}
	b.WriteString("\nAnswer concisely and never invent policy terms.")
	return b.String()
}

func applyClassification(rc *domain.RequestContext, c classification) {
	if c.Stage != "" {
		rc.Stage = domain.Stage(c.Stage)
	}
	if c.Category != "" {
		rc.Category = domain.Category(c.Category)
	}
	if c.Urgency != "" {
		rc.Urgency = domain.Urgency(c.Urgency)
	}
}

// responseKey builds the cache key for a reply: tenant + user +
// normalized message + stage.
func (o *Orchestrator) responseKey(rc *domain.RequestContext, message string) string {
	sum := sha256.Sum256([]byte(normalizeMessage(message)))
	return cache.Key{
		Namespace: "responses",
		Kind:      "chat",
		TenantID:  rc.TenantID,
		UserID:    rc.UserID,
		ID:        hex.EncodeToString(sum[:16]) + "-" + string(rc.Stage),
		Version:   "v1",
	}.String()
}

func normalizeMessage(message string) string {
	return strings.Join(strings.Fields(strings.ToLower(message)), " ")
}

func (o *Orchestrator) cacheGet(ctx context.Context, key string) (*domain.AIResponse, bool) {
	if o.deps.Cache == nil {
		return nil, false
	}
	raw, ok := o.deps.Cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var resp domain.AIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (o *Orchestrator) cacheSet(ctx context.Context, key string, resp *domain.AIResponse) {
	if o.deps.Cache == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := o.deps.Cache.Set(ctx, key, raw, o.cfg.ResponseTTL); err != nil {
		o.deps.Logger.Warn("response cache write failed", slog.String("error", err.Error()))
	}
}

// fallback is the fixed low-confidence response used whenever a stage
// fails.
func (o *Orchestrator) fallback(t *tenant.Tenant, start time.Time, leadScore int) *domain.AIResponse {
	return &domain.AIResponse{
		Message:    fallbackMessage(t),
		Confidence: 0.2,
		LeadScore:  leadScore,
		Elapsed:    time.Since(start),
	}
}
