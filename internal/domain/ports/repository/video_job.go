package repository

import (
	"context"
	"time"

	"telegram-video-gen/internal/domain/model"
)

// VideoJobUpdate carries the partial fields applied alongside a status change.
// Nil pointers leave the column untouched.
type VideoJobUpdate struct {
	TaskID     *string
	LastError  *string
	ResultURL  *string
	Attempts   *int
	RecordID   *string
	AddAttempt bool // atomically bump the attempt counter
}

// VideoJobRepository is the job store. All operations are atomic at row
// granularity; UpdateStatus and TransitionFrom stamp started_at when the job
// enters 'processing' and completed_at when it turns terminal.
type VideoJobRepository interface {
	// Create assigns the identifier if empty and persists the row.
	Create(ctx context.Context, tx Tx, job *model.VideoJob) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.VideoJob, error)
	FindByTaskID(ctx context.Context, tx Tx, taskID string) (*model.VideoJob, error)

	// UpdateStatus applies the new status plus the supplied partial fields.
	// Returns domain.ErrNotFound when no such job exists.
	UpdateStatus(ctx context.Context, id string, status model.VideoJobStatus, upd *VideoJobUpdate) (*model.VideoJob, error)

	// TransitionFrom is the compare-and-set variant used for claims and
	// finalization: the update applies only while the current status is one
	// of `from`. Returns domain.ErrJobFinished when the job exists but its
	// status is not in `from`, domain.ErrNotFound when it does not exist.
	TransitionFrom(ctx context.Context, id string, from []model.VideoJobStatus, to model.VideoJobStatus, upd *VideoJobUpdate) (*model.VideoJob, error)

	// SetTaskID records the external task identifier once the provider
	// acknowledges the request, without touching the status.
	SetTaskID(ctx context.Context, id, taskID string) error

	// ListByStatus returns up to limit jobs in the given status, oldest first.
	ListByStatus(ctx context.Context, status model.VideoJobStatus, limit int) ([]*model.VideoJob, error)

	// ListExpired returns non-terminal jobs whose expires_at has passed.
	ListExpired(ctx context.Context, limit int) ([]*model.VideoJob, error)

	ListByUser(ctx context.Context, userID string, status *model.VideoJobStatus) ([]*model.VideoJob, error)

	// DeleteTerminalBefore removes terminal jobs completed before cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
