package content

import "context"

// Prompt is one chat-style request to a text-generation model.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Model completes a prompt. Implementations return an error wrapping
// ErrUnauthorized for credential failures so callers can fail fast.
type Model interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, p Prompt) (string, error)

// Complete implements Model.
func (f ModelFunc) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }
