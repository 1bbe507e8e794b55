package video

import (
	"context"
	"fmt"
	"time"

	"telegram-video-gen/internal/domain/ports/adapter"
)

var _ adapter.VideoGenAdapter = (*NoopVideoAdapter)(nil)

// NoopVideoAdapter resolves instantly with a placeholder artifact.
// Used in dev mode so the pipeline can be exercised without provider keys.
type NoopVideoAdapter struct {
	Delay time.Duration
}

func (n *NoopVideoAdapter) Name() string { return "noop" }

func (n *NoopVideoAdapter) Generate(ctx context.Context, req adapter.GenerateRequest, notify adapter.ProgressFunc) (*adapter.GenerateResult, error) {
	taskID := fmt.Sprintf("noop-%d", time.Now().UnixNano())
	if notify != nil {
		notify(adapter.ProgressUpdate{TaskID: taskID, State: "queued"})
	}
	if n.Delay > 0 {
		select {
		case <-ctx.Done():
			return &adapter.GenerateResult{TaskID: taskID}, ctx.Err()
		case <-time.After(n.Delay):
		}
	}
	return &adapter.GenerateResult{
		TaskID:    taskID,
		VideoURL:  "https://example.invalid/videos/" + taskID + ".mp4",
		Completed: true,
	}, nil
}
