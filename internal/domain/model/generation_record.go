package model

import (
	"time"

	"telegram-video-gen/internal/domain"
)

type GenerationRecordStatus string

const (
	GenerationRecordPending   GenerationRecordStatus = "pending"
	GenerationRecordCompleted GenerationRecordStatus = "completed"
	GenerationRecordFailed    GenerationRecordStatus = "failed"
)

// GenerationRecord is the accounting row linked to a job at enqueue time.
// It is settled exactly once, when the job turns terminal.
type GenerationRecord struct {
	ID         string
	JobID      string
	UserID     string
	Provider   string
	Model      string
	Cost       int64
	Status     GenerationRecordStatus
	Error      string
	DurationMs int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewGenerationRecord(id, jobID, userID, provider, modelName string, cost int64) (*GenerationRecord, error) {
	if jobID == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &GenerationRecord{
		ID:        id,
		JobID:     jobID,
		UserID:    userID,
		Provider:  provider,
		Model:     modelName,
		Cost:      cost,
		Status:    GenerationRecordPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
