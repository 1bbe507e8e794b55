package adapter

import "context"

// GenerateRequest is the provider-agnostic generation input.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Params      map[string]any
	CallbackURL string // providers with out-of-band delivery post the result here
}

// GenerateResult is the synchronous outcome of a provider call.
type GenerateResult struct {
	TaskID    string // external task identifier, set once acknowledged
	VideoURL  string // artifact location on success
	Completed bool   // false when the provider only acknowledged the task
}

// ProgressUpdate is pushed through the notifier while a call is in flight.
// It is purely informative: orchestration must stay correct if the notifier
// is never invoked.
type ProgressUpdate struct {
	TaskID string
	State  string
}

type ProgressFunc func(ProgressUpdate)

// VideoGenAdapter is the port for one external video generation provider.
// Generate blocks until the provider resolves or ctx expires; notify may be
// nil.
type VideoGenAdapter interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest, notify ProgressFunc) (*GenerateResult, error)
}
