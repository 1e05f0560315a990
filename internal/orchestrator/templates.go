package orchestrator

import (
	"fmt"
	"strings"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/tenant"
)

// templateResponse returns a canned reply for the highest-frequency
// message shapes so they never reach a generation provider. The bool
// reports whether a template applied.
func templateResponse(intent Intent, t *tenant.Tenant) (string, bool) {
	brand := t.Name
	if brand == "" {
		brand = "our insurance team"
	}

	switch intent {
	case IntentGreeting:
		return fmt.Sprintf("Hello! Welcome to %s. I can help you with quotes, coverage questions, and claims for auto, health, life, property, and travel insurance. What brings you here today?", brand), true

	case IntentThanks:
		return "You're very welcome! Is there anything else I can help you with today?", true

	case IntentGoodbye:
		return fmt.Sprintf("Thank you for chatting with %s. Have a great day, and reach out any time you have questions about your coverage!", brand), true

	case IntentContact:
		var parts []string
		if t.ContactPhone != "" {
			parts = append(parts, "call us on "+t.ContactPhone)
		}
		if t.ContactEmail != "" {
			parts = append(parts, "email "+t.ContactEmail)
		}
		if len(parts) == 0 {
			return "Our team is happy to speak with you directly. Share your preferred contact details and an agent will reach out shortly.", true
		}
		return fmt.Sprintf("You can %s and one of our agents will assist you right away.", strings.Join(parts, " or ")), true
	}

	return "", false
}

// fallbackMessage is the generically worded reply used on full
// degradation, keeping conversational continuity instead of surfacing
// an error code.
func fallbackMessage(t *tenant.Tenant) string {
	msg := "I'm having a little trouble pulling up the details right now, but I don't want to keep you waiting. Could you rephrase your question, or try again in a moment?"
	if t.ContactPhone != "" {
		msg += " If it's urgent, you can also reach an agent on " + t.ContactPhone + "."
	}
	return msg
}
