package anthropic

import (
	"context"
	"encoding/json"
	"errors"
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
		Name:    "anthropic-test",
		APIKey:  "ak-test",
		BaseURL: srv.URL,
		Model:   "claude-3-5-haiku-latest",
	})
}

func TestComplete(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "ak-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}

		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System == "" {
			t.Error("system prompt dropped")
		}
		// The Messages API rejects requests without an explicit cap.
		if req.MaxTokens <= 0 {
			t.Errorf("max_tokens = %d, want a default applied", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": "Life cover pays "},
				{"type": "text", "text": "your beneficiaries."},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 30, "output_tokens": 8},
		})
	})

	resp, err := p.Complete(context.Background(), &provider.CompletionRequest{
		System:   "You are an insurance assistant.",
		Messages: []domain.Message{{Role: "user", Content: "what is life insurance?"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Life cover pays your beneficiaries." {
		t.Errorf("Text = %q, want concatenated text blocks", resp.Text)
	}
	if resp.Usage.PromptTokens != 30 || resp.Usage.CompletionTokens != 8 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestCompleteAPIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	})

	_, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Messages: []domain.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete: want error on 401")
	}
}

func TestEmbedUnsupported(t *testing.T) {
	p := New(config.ProviderConfig{Name: "anthropic-test"})
	_, err := p.Embed(context.Background(), "anything")
	if !errors.Is(err, provider.ErrEmbeddingsUnsupported) {
		t.Errorf("Embed error = %v, want ErrEmbeddingsUnsupported", err)
	}
	if p.Capabilities().SupportsEmbeddings {
		t.Error("Capabilities claims embeddings support")
	}
}
