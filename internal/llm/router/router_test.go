package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"manifold/internal/config"
	"manifold/internal/llm"
)

func TestRouter_DispatchesByTier(t *testing.T) {
	anthropicSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","type":"message","role":"assistant","content":[{"type":"text","text":"anthropic-says-hi"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer anthropicSrv.Close()

	openaiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"openai-says-hi"}}]}`))
	}))
	defer openaiSrv.Close()

	cfg := config.LLMConfig{
		Anthropic: config.AnthropicConfig{APIKey: "k", BaseURL: anthropicSrv.URL, Model: "claude"},
		OpenAI:    config.OpenAIConfig{APIKey: "k", BaseURL: openaiSrv.URL, Model: "gpt"},
		Tiers: map[string]config.TierConfig{
			TierSmall: {Provider: "openai", Model: "gpt-small"},
			TierMid:   {Provider: "anthropic", Model: "claude-mid"},
		},
	}
	r := New(cfg, nil)

	got, err := r.Generate(context.Background(), TierSmall, "", []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil || got != "openai-says-hi" {
		t.Fatalf("small tier: got %q, err %v", got, err)
	}

	got, err = r.Generate(context.Background(), TierMid, "", []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil || got != "anthropic-says-hi" {
		t.Fatalf("mid tier: got %q, err %v", got, err)
	}
}

func TestRouter_UnknownTierErrors(t *testing.T) {
	r := New(config.LLMConfig{}, nil)
	_, err := r.Generate(context.Background(), TierLarge, "", nil)
	if err == nil {
		t.Fatal("expected error for unconfigured tier")
	}
}
