package port

import "context"

// Completer sends one system and one user message to a chat model.
type Completer interface {
	// Complete blocks until the full response or an error is available.
	// maxOutputTokens bounds the generated response length.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error)

	// ModelName returns the deployment or model the completer targets.
	ModelName() string
}
