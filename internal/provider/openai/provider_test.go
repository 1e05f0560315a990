package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/config"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/provider"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.ProviderConfig{
		Name:               "openai-test",
		APIKey:             "sk-test",
		BaseURL:            srv.URL,
		Model:              "gpt-4o-mini",
		CostPerInputToken:  0.00000015,
		CostPerOutputToken: 0.0000006,
	})
}

func TestComplete(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v, want system prompt first", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "Third-party cover is the legal minimum."},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 9},
		})
	})

	resp, err := p.Complete(context.Background(), &provider.CompletionRequest{
		System:   "You are an insurance assistant.",
		Messages: []domain.Message{{Role: "user", Content: "what cover do I need?"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Third-party cover is the legal minimum." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.PromptTokens != 42 || resp.Usage.CompletionTokens != 9 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
}

func TestCompleteAPIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	})

	_, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete: want error on 429")
	}
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1, 0.2, 0.3}}},
		})
	})

	vec, err := p.Embed(context.Background(), "life insurance basics")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("Embed = %v", vec)
	}
}

func TestEstimateCost(t *testing.T) {
	p := New(config.ProviderConfig{
		Name:               "priced",
		CostPerInputToken:  0.001,
		CostPerOutputToken: 0.002,
	})
	if got, want := p.EstimateCost(100, 50), 0.001*100+0.002*50; got != want {
		t.Errorf("EstimateCost = %f, want %f", got, want)
	}
}

func TestProbe(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 1 {
			t.Errorf("probe MaxTokens = %d, want 1", req.MaxTokens)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "pong"}}},
		})
	})

	latency, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if latency <= 0 {
		t.Errorf("latency = %s, want > 0", latency)
	}
}
