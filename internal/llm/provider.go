// Package llm defines the minimal single-shot chat contract used by the
// entity extractor (C7) and the query pipeline's answer synthesis step
// (C10). Tool calling, streaming, and multi-modal content are out of scope
// for this service; callers that need structured output ask for it in the
// prompt and parse the returned text themselves.
package llm

import "context"

// Message is one turn in a chat-style prompt.
type Message struct {
	Role    string // "user" | "assistant"
	Content string
}

// Provider performs a single request/response chat completion against an
// LLM backend. System carries the system prompt; messages carries the rest
// of the conversation (almost always a single user message for this
// service's use cases). Model selects the backend model name.
type Provider interface {
	Chat(ctx context.Context, system string, messages []Message, model string) (string, error)
}
