package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/repository"
)

var _ repository.VideoJobRepository = (*videoJobRepo)(nil)

type videoJobRepo struct {
	pool *pgxpool.Pool
}

func NewVideoJobRepo(pool *pgxpool.Pool) *videoJobRepo {
	return &videoJobRepo{pool: pool}
}

const jobColumns = `id, user_id, provider, model, prompt, params, chat_id, progress_message_id,
cost, task_id, status, last_error, result_url, attempts, record_id,
created_at, started_at, completed_at, expires_at`

func scanJob(row pgx.Row) (*model.VideoJob, error) {
	var j model.VideoJob
	var statusStr string
	var params []byte
	err := row.Scan(
		&j.ID, &j.UserID, &j.Provider, &j.Model, &j.Prompt, &params,
		&j.Delivery.ChatID, &j.Delivery.ProgressMessageID,
		&j.Cost, &j.TaskID, &statusStr, &j.LastError, &j.ResultURL, &j.Attempts, &j.RecordID,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.VideoJobStatus(statusStr)
	if len(params) > 0 {
		_ = json.Unmarshal(params, &j.Params)
	}
	return &j, nil
}

func (r *videoJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.VideoJob) error {
	if job.ID == "" {
		// ULIDs sort by creation time, which keeps oldest-first fetches cheap.
		job.ID = ulid.Make().String()
	}
	if job.Status == "" {
		job.Status = model.VideoJobStatusPending
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO video_jobs (id, user_id, provider, model, prompt, params, chat_id, progress_message_id,
  cost, task_id, status, last_error, result_url, attempts, record_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.UserID, job.Provider, job.Model, job.Prompt, params,
		job.Delivery.ChatID, job.Delivery.ProgressMessageID,
		job.Cost, job.TaskID, string(job.Status), job.LastError, job.ResultURL,
		job.Attempts, job.RecordID, job.CreatedAt, job.ExpiresAt)
	return err
}

func (r *videoJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.VideoJob, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM video_jobs WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *videoJobRepo) FindByTaskID(ctx context.Context, tx repository.Tx, taskID string) (*model.VideoJob, error) {
	if taskID == "" {
		return nil, domain.ErrInvalidArgument
	}
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM video_jobs WHERE task_id = $1;`, taskID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// updateSet is shared by UpdateStatus and TransitionFrom. started_at and
// completed_at are stamped on the relevant transitions and never overwritten.
const updateSet = `
  status = $2,
  task_id = COALESCE($3, task_id),
  last_error = COALESCE($4, last_error),
  result_url = COALESCE($5, result_url),
  attempts = CASE WHEN $6 THEN attempts + 1 ELSE COALESCE($7, attempts) END,
  record_id = COALESCE($8, record_id),
  started_at = CASE WHEN $2 = 'processing' AND started_at IS NULL THEN now() ELSE started_at END,
  completed_at = CASE WHEN $2 IN ('completed', 'failed') AND completed_at IS NULL THEN now() ELSE completed_at END`

func updArgs(id string, status model.VideoJobStatus, upd *repository.VideoJobUpdate) []interface{} {
	if upd == nil {
		upd = &repository.VideoJobUpdate{}
	}
	return []interface{}{
		id, string(status),
		upd.TaskID, upd.LastError, upd.ResultURL,
		upd.AddAttempt, upd.Attempts, upd.RecordID,
	}
}

func (r *videoJobRepo) UpdateStatus(ctx context.Context, id string, status model.VideoJobStatus, upd *repository.VideoJobUpdate) (*model.VideoJob, error) {
	q := `UPDATE video_jobs SET` + updateSet + ` WHERE id = $1 RETURNING ` + jobColumns + `;`
	row, err := pickRow(ctx, r.pool, nil, q, updArgs(id, status, upd)...)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *videoJobRepo) TransitionFrom(ctx context.Context, id string, from []model.VideoJobStatus, to model.VideoJobStatus, upd *repository.VideoJobUpdate) (*model.VideoJob, error) {
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}
	q := `UPDATE video_jobs SET` + updateSet + ` WHERE id = $1 AND status = ANY($9::text[]) RETURNING ` + jobColumns + `;`
	args := append(updArgs(id, to, upd), fromStr)
	row, err := pickRow(ctx, r.pool, nil, q, args...)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	// Distinguish a missing job from one that already moved on.
	if _, ferr := r.FindByID(ctx, nil, id); ferr != nil {
		return nil, ferr
	}
	return nil, domain.ErrJobFinished
}

func (r *videoJobRepo) SetTaskID(ctx context.Context, id, taskID string) error {
	tag, err := execSQL(ctx, r.pool, nil,
		`UPDATE video_jobs SET task_id = $2 WHERE id = $1;`, id, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *videoJobRepo) ListByStatus(ctx context.Context, status model.VideoJobStatus, limit int) ([]*model.VideoJob, error) {
	q := `SELECT ` + jobColumns + ` FROM video_jobs WHERE status = $1 ORDER BY created_at LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, nil, q, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *videoJobRepo) ListExpired(ctx context.Context, limit int) ([]*model.VideoJob, error) {
	q := `SELECT ` + jobColumns + ` FROM video_jobs
WHERE status NOT IN ('completed', 'failed') AND expires_at < now()
ORDER BY created_at LIMIT $1;`
	rows, err := pickRows(ctx, r.pool, nil, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *videoJobRepo) ListByUser(ctx context.Context, userID string, status *model.VideoJobStatus) ([]*model.VideoJob, error) {
	q := `SELECT ` + jobColumns + ` FROM video_jobs
WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC LIMIT 100;`
	var st *string
	if status != nil {
		s := string(*status)
		st = &s
	}
	rows, err := pickRows(ctx, r.pool, nil, q, userID, st)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *videoJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := execSQL(ctx, r.pool, nil,
		`DELETE FROM video_jobs WHERE status IN ('completed', 'failed') AND completed_at < $1;`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectJobs(rows pgx.Rows) ([]*model.VideoJob, error) {
	var out []*model.VideoJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
