package adapter

import "context"

// PromptEnhancer rewrites a raw user prompt into a richer generation prompt.
// Strictly best-effort: callers keep the original prompt on error.
type PromptEnhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}
