// Package domain holds the core types shared across the orchestration
// layer: request context, responses, knowledge snippets, and provider
// health classification.
package domain

import "time"

// Stage represents where a conversation currently sits in the sales funnel.
type Stage string

const (
	StageGreeting  Stage = "greeting"
	StageDiscovery Stage = "discovery"
	StageQuote     Stage = "quote"
	StageDecision  Stage = "decision"
	StageFollowUp  Stage = "follow_up"
)

// Category is the insurance product line a message relates to.
type Category string

const (
	CategoryAuto     Category = "auto"
	CategoryHealth   Category = "health"
	CategoryLife     Category = "life"
	CategoryProperty Category = "property"
	CategoryTravel   Category = "travel"
	CategoryGeneral  Category = "general"
)

// Urgency classifies how time-sensitive a message is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestContext carries everything derived about one inbound message.
// It is built once per request and enriched sequentially by the pipeline
// stages; it is never shared between concurrent requests.
type RequestContext struct {
	TenantID  string            `json:"tenant_id"`
	UserID    string            `json:"user_id"`
	Platform  string            `json:"platform,omitempty"`
	Stage     Stage             `json:"stage,omitempty"`
	Category  Category          `json:"category,omitempty"`
	Urgency   Urgency           `json:"urgency,omitempty"`
	LeadScore int               `json:"lead_score,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// KnowledgeSnippet is one retrieved passage with its relevance score.
type KnowledgeSnippet struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AIResponse is the structured result of one pipeline run. It is
// immutable once constructed and cached by value.
type AIResponse struct {
	Message       string        `json:"message"`
	Confidence    float64       `json:"confidence"`
	CaptureLead   bool          `json:"capture_lead"`
	LeadScore     int           `json:"lead_score"`
	Provider      string        `json:"provider,omitempty"`
	EstimatedCost float64       `json:"estimated_cost"`
	Elapsed       time.Duration `json:"elapsed"`
	FromCache     bool          `json:"from_cache,omitempty"`
}

// HealthStatus classifies a backend's availability.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthSnapshot is a point-in-time view of a provider's health. It is
// derived by probing and never persisted beyond the current check.
type HealthSnapshot struct {
	Status    HealthStatus  `json:"status"`
	Latency   time.Duration `json:"latency"`
	ErrorRate float64       `json:"error_rate"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Capabilities describes what a provider backend can do.
type Capabilities struct {
	SupportsEmbeddings bool `json:"supports_embeddings"`
	SupportsStreaming  bool `json:"supports_streaming"`
	MaxContextTokens   int  `json:"max_context_tokens"`
}
