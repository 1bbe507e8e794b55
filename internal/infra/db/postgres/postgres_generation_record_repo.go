package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/repository"
)

var _ repository.GenerationRecordRepository = (*generationRecordRepo)(nil)

type generationRecordRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRecordRepo(pool *pgxpool.Pool) *generationRecordRepo {
	return &generationRecordRepo{pool: pool}
}

func (r *generationRecordRepo) Save(ctx context.Context, tx repository.Tx, rec *model.GenerationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = time.Now()

	const q = `
INSERT INTO generation_records (id, job_id, user_id, provider, model, cost, status, error, duration_ms, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  error = EXCLUDED.error,
  duration_ms = EXCLUDED.duration_ms,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.JobID, rec.UserID, rec.Provider, rec.Model, rec.Cost,
		string(rec.Status), rec.Error, rec.DurationMs, rec.CreatedAt, rec.UpdatedAt)
	return err
}

const recordColumns = `id, job_id, user_id, provider, model, cost, status, error, duration_ms, created_at, updated_at`

func scanRecord(row pgx.Row) (*model.GenerationRecord, error) {
	var rec model.GenerationRecord
	var statusStr string
	err := row.Scan(
		&rec.ID, &rec.JobID, &rec.UserID, &rec.Provider, &rec.Model, &rec.Cost,
		&statusStr, &rec.Error, &rec.DurationMs, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	rec.Status = model.GenerationRecordStatus(statusStr)
	return &rec, nil
}

func (r *generationRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+recordColumns+` FROM generation_records WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanRecord(row)
}

func (r *generationRecordRepo) FindByJobID(ctx context.Context, tx repository.Tx, jobID string) (*model.GenerationRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+recordColumns+` FROM generation_records WHERE job_id = $1;`, jobID)
	if err != nil {
		return nil, err
	}
	return scanRecord(row)
}

func (r *generationRecordRepo) MarkCompleted(ctx context.Context, id string, durationMs int64) error {
	_, err := execSQL(ctx, r.pool, nil, `
UPDATE generation_records SET status = 'completed', duration_ms = $2, updated_at = now()
WHERE id = $1 AND status = 'pending';`, id, durationMs)
	return err
}

func (r *generationRecordRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := execSQL(ctx, r.pool, nil, `
UPDATE generation_records SET status = 'failed', error = $2, updated_at = now()
WHERE id = $1 AND status = 'pending';`, id, errMsg)
	return err
}
