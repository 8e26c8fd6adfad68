package llm

import "context"

// Client is a minimal chat-completion interface to allow pluggable providers.
// Implementations send a single-turn request with an optional system prompt
// and return the response text. Each call is a single best-effort attempt;
// retry policy belongs to the caller.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
