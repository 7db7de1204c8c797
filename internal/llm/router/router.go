// Package router builds the tier-keyed generative endpoint spec §6
// describes: input {system, messages[], tier ∈ {small, mid, large}},
// output text. It resolves each tier to a concrete provider + model pair
// from config.LLMConfig and dispatches accordingly.
package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"manifold/internal/config"
	"manifold/internal/llm"
	"manifold/internal/llm/anthropic"
	"manifold/internal/llm/openai"
)

const (
	TierSmall = "small"
	TierMid   = "mid"
	TierLarge = "large"
)

type binding struct {
	provider llm.Provider
	model    string
}

// Router dispatches Generate calls to the provider configured for a tier.
type Router struct {
	bindings map[string]binding
}

// New builds a Router from cfg. httpClient is shared by both provider
// clients; pass nil to use http.DefaultClient.
func New(cfg config.LLMConfig, httpClient *http.Client) *Router {
	anthropicClient := anthropic.New(cfg.Anthropic, httpClient)
	openaiClient := openai.New(cfg.OpenAI, httpClient)

	r := &Router{bindings: make(map[string]binding, len(cfg.Tiers))}
	for tier, tc := range cfg.Tiers {
		model := strings.TrimSpace(tc.Model)
		switch strings.ToLower(strings.TrimSpace(tc.Provider)) {
		case "anthropic":
			r.bindings[tier] = binding{provider: anthropicClient, model: model}
		case "openai":
			r.bindings[tier] = binding{provider: openaiClient, model: model}
		default:
			// Unrecognized provider name for this tier: fall back to OpenAI so
			// a typo'd tier config degrades rather than panics at call time.
			r.bindings[tier] = binding{provider: openaiClient, model: model}
		}
	}
	return r
}

// Generate dispatches to the provider bound to tier. Returns an error if no
// binding is configured for the tier.
func (r *Router) Generate(ctx context.Context, tier, system string, messages []llm.Message) (string, error) {
	b, ok := r.bindings[tier]
	if !ok {
		return "", fmt.Errorf("router: no provider configured for tier %q", tier)
	}
	return b.provider.Chat(ctx, system, messages, b.model)
}

// ForTier exposes the provider+model bound to tier directly, for callers
// (e.g. the entity extractor) that hold an llm.Provider reference rather
// than going through Generate.
func (r *Router) ForTier(tier string) (llm.Provider, string, bool) {
	b, ok := r.bindings[tier]
	if !ok {
		return nil, "", false
	}
	return b.provider, b.model, true
}
