package ai

import "context"

// Options tune a single generation call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// TextGenerator generates text from a system prompt and user prompt against a
// fixed model. Provider errors are opaque to callers; retry logic only
// distinguishes success from failure.
type TextGenerator interface {
	Model() string
	GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)
}
