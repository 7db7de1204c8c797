// Package extract implements C7, the entity extractor: an LLM-prompted
// pass that turns a chunk of text into a list of candidate concepts.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"manifold/internal/llm"
	"manifold/internal/observability"
)

const systemPrompt = `You extract named technical entities (concepts, tools, APIs, products) from documentation text. Respond with ONLY a JSON array of objects, each with the fields "name" (string, required), "type" (string), "description" (string, optional), and "aliases" (array of strings, optional). If there are no entities, respond with an empty array []. Do not include any prose before or after the JSON.`

// Entity is one extracted candidate concept.
type Entity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Logger is the minimal logging interface this package depends on.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}
func (noopLogger) Debug(string, map[string]any) {}
func (noopLogger) Warn(string, map[string]any)  {}

// Extractor is the C7 contract.
type Extractor struct {
	provider llm.Provider
	model    string
	log      Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// New builds an Extractor that prompts provider using model for every call.
func New(provider llm.Provider, model string, opts ...Option) *Extractor {
	e := &Extractor{provider: provider, model: model, log: noopLogger{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract prompts the LLM to list entities mentioned in chunkText. Per
// spec §4.7 this never returns an error for malformed model output: an
// invalid-JSON or literal-null response yields an empty list.
func (e *Extractor) Extract(ctx context.Context, chunkText string) ([]Entity, error) {
	if strings.TrimSpace(chunkText) == "" {
		return nil, nil
	}

	raw, err := e.provider.Chat(ctx, systemPrompt, []llm.Message{{Role: "user", Content: chunkText}}, e.model)
	if err != nil {
		return nil, fmt.Errorf("extract.Extract: %w", err)
	}

	entities, ok := parseEntities(raw)
	if !ok {
		// The response is logged for debugging, so it is redacted first in
		// case the model echoed something resembling a credential back from
		// the chunk text it was given.
		redacted := observability.RedactJSON(json.RawMessage(raw))
		e.log.Warn("entity_extraction_malformed_json", map[string]any{
			"response_len":  len(raw),
			"response_head": headFingerprint(string(redacted)),
		})
		return nil, nil
	}
	return entities, nil
}

func parseEntities(raw string) ([]Entity, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}
	// Models occasionally wrap the array in a code fence despite instructions.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var entities []Entity
	if err := json.Unmarshal([]byte(trimmed), &entities); err != nil {
		return nil, false
	}
	return entities, true
}

func headFingerprint(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max]
}
