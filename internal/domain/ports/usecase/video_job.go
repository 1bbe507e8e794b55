package usecase

import (
	"context"

	"telegram-video-gen/internal/domain/model"
)

// NewVideoJobInput is the enqueue payload. Cost must already be reserved in
// the ledger by the caller.
type NewVideoJobInput struct {
	UserID   string
	Provider string
	Model    string
	Prompt   string
	Params   map[string]any
	Delivery model.DeliveryContext
	Cost     int64
}

// CallbackNotice is a provider-originated completion notice resolved by the
// HTTP ingestor.
type CallbackNotice struct {
	TaskID     string
	Success    bool
	ResultURLs []string
	FailMsg    string
}

// VideoJobManager owns the job lifecycle: creation, orchestration, retries,
// out-of-band finalization and maintenance sweeps.
type VideoJobManager interface {
	Create(ctx context.Context, in NewVideoJobInput) (*model.VideoJob, error)
	Get(ctx context.Context, id string) (*model.VideoJob, error)
	GetByTaskID(ctx context.Context, taskID string) (*model.VideoJob, error)
	ListUserJobs(ctx context.Context, userID string, status *model.VideoJobStatus) ([]*model.VideoJob, error)

	// Process claims a pending job and drives one provider attempt.
	Process(ctx context.Context, jobID string) error
	// Retry re-claims a timeout_waiting job; jobs past the attempt cap are
	// force-failed instead.
	Retry(ctx context.Context, jobID string) error

	// FinalizeByTask applies an out-of-band notice. Already-terminal jobs and
	// unknown task ids surface as domain.ErrJobFinished / domain.ErrNotFound
	// so the ingestor can acknowledge them as no-ops.
	FinalizeByTask(ctx context.Context, notice CallbackNotice) error

	// ForceExpireDue fails every non-terminal job past its deadline.
	ForceExpireDue(ctx context.Context, limit int) (int, error)
}
