package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines the interface for language model chat completions.
// Implementations wrap cloud providers (Anthropic, Gemini) behind a
// provider factory; transport failures surface as the typed errors in
// internal/models so callers can choose a retry policy without
// inspecting provider-specific responses.
type LLMService interface {
	// Chat sends a conversation to the model and returns the raw text
	// response. The context bounds the call; implementations apply the
	// configured per-call timeout when the context carries no deadline.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Provider returns the active provider name ("claude", "gemini")
	Provider() string

	// Model returns the configured model identifier
	Model() string
}
