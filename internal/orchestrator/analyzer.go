package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
)

// Intent is the coarse classification of what a message wants.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentThanks   Intent = "thanks"
	IntentGoodbye  Intent = "goodbye"
	IntentContact  Intent = "contact"
	IntentQuote    Intent = "quote"
	IntentPurchase Intent = "purchase"
	IntentQuestion Intent = "question"
)

// Analysis is the deterministic classification of one message.
type Analysis struct {
	Intent     Intent
	Stage      domain.Stage
	Category   domain.Category
	Urgency    domain.Urgency
	LeadScore  int
	Confidence float64
}

var (
	greetingPhrases = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "greetings"}
	thanksPhrases   = []string{"thank", "thanks", "appreciate"}
	goodbyePhrases  = []string{"bye", "goodbye", "see you", "later"}
	contactPhrases  = []string{"contact", "phone number", "call you", "reach you", "office", "speak to someone", "talk to an agent"}
	quotePhrases    = []string{"quote", "premium", "how much", "price", "cost", "calculate", "estimate"}
	purchasePhrases = []string{"buy", "purchase", "sign up", "proceed", "i want the", "i'll take", "ready to"}
	urgentPhrases   = []string{"urgent", "asap", "immediately", "emergency", "accident", "right now"}

	categoryKeywords = map[domain.Category][]string{
		domain.CategoryAuto:     {"car", "vehicle", "motor", "auto", "drive", "driving"},
		domain.CategoryHealth:   {"health", "medical", "hospital", "doctor", "surgery"},
		domain.CategoryLife:     {"life insurance", "life cover", "beneficiary", "funeral"},
		domain.CategoryProperty: {"home", "house", "property", "fire", "building", "flood"},
		domain.CategoryTravel:   {"travel", "trip", "flight", "abroad", "visa"},
	}
)

// Analyze classifies a message with keyword and pattern rules only. It
// never calls a provider, so enrichment stays cheap and synchronous.
func Analyze(message string) Analysis {
	lower := strings.ToLower(strings.TrimSpace(message))

	a := Analysis{
		Intent:     IntentQuestion,
		Stage:      domain.StageDiscovery,
		Category:   domain.CategoryGeneral,
		Urgency:    domain.UrgencyLow,
		Confidence: 0.3,
	}

	for category, keywords := range categoryKeywords {
		if containsAny(lower, keywords) {
			a.Category = category
			a.Confidence = 0.5
			break
		}
	}

	switch {
	case len(lower) < 40 && containsAny(lower, greetingPhrases):
		a.Intent = IntentGreeting
		a.Stage = domain.StageGreeting
		a.Confidence = 0.9
	case containsAny(lower, thanksPhrases):
		a.Intent = IntentThanks
		a.Stage = domain.StageFollowUp
		a.Confidence = 0.85
	case len(lower) < 40 && containsAny(lower, goodbyePhrases):
		a.Intent = IntentGoodbye
		a.Stage = domain.StageFollowUp
		a.Confidence = 0.85
	case containsAny(lower, contactPhrases):
		a.Intent = IntentContact
		a.Confidence = 0.8
	case containsAny(lower, purchasePhrases):
		a.Intent = IntentPurchase
		a.Stage = domain.StageDecision
		a.Confidence = 0.8
	case containsAny(lower, quotePhrases):
		a.Intent = IntentQuote
		a.Stage = domain.StageQuote
		a.Confidence = 0.75
	}

	if containsAny(lower, urgentPhrases) {
		a.Urgency = domain.UrgencyHigh
	} else if a.Intent == IntentQuote || a.Intent == IntentPurchase {
		a.Urgency = domain.UrgencyMedium
	}

	a.LeadScore = scoreLead(a, lower)
	return a
}

// scoreLead is a deterministic 0-100 heuristic: intent carries most of
// the weight, a named product line and urgency add the rest.
func scoreLead(a Analysis, lower string) int {
	score := 10
	switch a.Intent {
	case IntentPurchase:
		score = 85
	case IntentQuote:
		score = 65
	case IntentContact:
		score = 50
	case IntentQuestion:
		score = 30
	}
	if a.Category != domain.CategoryGeneral {
		score += 10
	}
	if a.Urgency == domain.UrgencyHigh {
		score += 5
	}
	if strings.Contains(lower, "family") || strings.Contains(lower, "business") {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// enrich fills in any context fields the caller left empty.
func enrich(rc *domain.RequestContext, a Analysis) {
	if rc.Stage == "" {
		rc.Stage = a.Stage
	}
	if rc.Category == "" {
		rc.Category = a.Category
	}
	if rc.Urgency == "" {
		rc.Urgency = a.Urgency
	}
	if rc.LeadScore == 0 {
		rc.LeadScore = a.LeadScore
	}
}

const classifyPrompt = `Classify the insurance customer message. Reply with only JSON:
{"stage":"greeting|discovery|quote|decision|follow_up","category":"auto|health|life|property|travel|general","urgency":"low|medium|high"}
Message: `

type classification struct {
	Stage    string `json:"stage"`
	Category string `json:"category"`
	Urgency  string `json:"urgency"`
}

// classifyWithProvider asks a provider to classify when the pattern pass
// was inconclusive. Bounded by its own short timeout; any failure leaves
// the pattern-based analysis in place.
func classifyWithProvider(ctx context.Context, p provider.Provider, message string, timeout time.Duration) (classification, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.Complete(ctx, &provider.CompletionRequest{
		Messages:  []domain.Message{{Role: "user", Content: classifyPrompt + message}},
		MaxTokens: 60,
	})
	if err != nil {
		return classification{}, fmt.Errorf("%w: %v", domain.ErrAnalysisInconclusive, err)
	}

	text := resp.Text
	// Models wrap JSON in prose often enough that we cut to the braces.
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var c classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return classification{}, fmt.Errorf("%w: unparseable reply: %v", domain.ErrAnalysisInconclusive, err)
	}
	return c, nil
}
