package tokens

import "testing"

func TestEstimate(t *testing.T) {
	e := NewEstimator()

	if got := e.Estimate("gpt-4o-mini", ""); got != 0 {
		t.Errorf("Estimate(empty) = %d, want 0", got)
	}

	text := "How much does comprehensive auto insurance cost per year in Accra?"
	got := e.Estimate("gpt-4o-mini", text)
	if got < 5 || got > 30 {
		t.Errorf("Estimate = %d tokens for a 12-word sentence, want a plausible count", got)
	}

	// Unknown models still produce a usable estimate.
	fallback := e.Estimate("totally-made-up-model", text)
	if fallback <= 0 {
		t.Errorf("Estimate with unknown model = %d, want > 0", fallback)
	}

	// Longer text costs more tokens.
	double := e.Estimate("gpt-4o-mini", text+" "+text)
	if double <= got {
		t.Errorf("doubled text = %d tokens, want more than %d", double, got)
	}
}

func TestEstimateMessages(t *testing.T) {
	e := NewEstimator()

	contents := []string{"hello", "how can I help?"}
	got := e.EstimateMessages("gpt-4o-mini", contents)
	individual := e.Estimate("gpt-4o-mini", contents[0]) + e.Estimate("gpt-4o-mini", contents[1])
	if got != individual+8 {
		t.Errorf("EstimateMessages = %d, want per-message overhead over %d", got, individual)
	}

	if got := e.EstimateMessages("gpt-4o-mini", nil); got != 0 {
		t.Errorf("EstimateMessages(nil) = %d, want 0", got)
	}
}
