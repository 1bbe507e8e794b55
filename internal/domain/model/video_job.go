package model

import (
	"strings"
	"time"

	"telegram-video-gen/internal/domain"
)

type VideoJobStatus string

const (
	VideoJobStatusPending        VideoJobStatus = "pending"
	VideoJobStatusProcessing     VideoJobStatus = "processing"
	VideoJobStatusCompleted      VideoJobStatus = "completed"
	VideoJobStatusFailed         VideoJobStatus = "failed"
	VideoJobStatusTimeoutWaiting VideoJobStatus = "timeout_waiting"
)

// Terminal reports whether no further transitions may occur.
func (s VideoJobStatus) Terminal() bool {
	return s == VideoJobStatusCompleted || s == VideoJobStatusFailed
}

// Valid reports whether s is one of the known lifecycle statuses.
func (s VideoJobStatus) Valid() bool {
	switch s {
	case VideoJobStatusPending, VideoJobStatusProcessing, VideoJobStatusCompleted,
		VideoJobStatusFailed, VideoJobStatusTimeoutWaiting:
		return true
	}
	return false
}

// DeliveryContext tells the messaging adapter where the result goes.
// ProgressMessageID (0 = none) points at the in-flight "rendering..." message
// that gets replaced on completion.
type DeliveryContext struct {
	ChatID            int64 `json:"chat_id"`
	ProgressMessageID int   `json:"progress_message_id,omitempty"`
}

// MaxErrorLen bounds the stored (and user-visible) error text.
const MaxErrorLen = 500

// VideoJob is a durable record of one externally-executed generation request.
type VideoJob struct {
	ID       string
	UserID   string
	Provider string
	Model    string
	Prompt   string
	Params   map[string]any
	Delivery DeliveryContext
	Cost     int64

	TaskID    string // external provider task id, "" until acknowledged
	Status    VideoJobStatus
	LastError string
	ResultURL string
	Attempts  int
	RecordID  string // generation_records back-reference, "" if none

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time
}

func NewVideoJob(userID, provider, modelName, prompt string, params map[string]any, delivery DeliveryContext, cost int64, ttl time.Duration) (*VideoJob, error) {
	if userID == "" || provider == "" || strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if cost < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &VideoJob{
		UserID:    userID,
		Provider:  strings.ToLower(provider),
		Model:     modelName,
		Prompt:    prompt,
		Params:    params,
		Delivery:  delivery,
		Cost:      cost,
		Status:    VideoJobStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// CanRetry reports whether the job has attempts left within maxAttempts.
func (j *VideoJob) CanRetry(maxAttempts int) bool {
	return j.Attempts < maxAttempts
}

func (j *VideoJob) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}

// TruncateError bounds free-text provider errors before they are stored.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLen {
		return msg[:MaxErrorLen]
	}
	return msg
}
