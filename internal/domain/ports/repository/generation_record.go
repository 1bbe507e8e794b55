package repository

import (
	"context"

	"telegram-video-gen/internal/domain/model"
)

type GenerationRecordRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.GenerationRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GenerationRecord, error)
	FindByJobID(ctx context.Context, tx Tx, jobID string) (*model.GenerationRecord, error)

	// MarkCompleted / MarkFailed settle the record; both are no-ops when the
	// record already left 'pending'.
	MarkCompleted(ctx context.Context, id string, durationMs int64) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}
