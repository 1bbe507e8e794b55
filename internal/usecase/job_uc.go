// File: internal/usecase/job_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-video-gen/internal/config"
	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/adapter"
	"telegram-video-gen/internal/domain/ports/repository"
	ports "telegram-video-gen/internal/domain/ports/usecase"
	"telegram-video-gen/internal/infra/metrics"
)

// ProviderRegistry resolves a provider name to its adapter.
type ProviderRegistry interface {
	Lookup(name string) (adapter.VideoGenAdapter, error)
}

var _ ports.VideoJobManager = (*videoJobUC)(nil)

var nonTerminal = []model.VideoJobStatus{
	model.VideoJobStatusPending,
	model.VideoJobStatusProcessing,
	model.VideoJobStatusTimeoutWaiting,
}

type videoJobUC struct {
	jobs      repository.VideoJobRepository
	records   repository.GenerationRecordRepository
	tm        repository.TransactionManager
	ledger    ports.CreditLedger
	providers ProviderRegistry
	enhancer  adapter.PromptEnhancer
	bot       adapter.TelegramBotAdapter
	artifacts adapter.ArtifactStore
	cfg       config.WorkerConfig
	log       *zerolog.Logger
}

func NewVideoJobUseCase(
	jobs repository.VideoJobRepository,
	records repository.GenerationRecordRepository,
	tm repository.TransactionManager,
	ledger ports.CreditLedger,
	providers ProviderRegistry,
	enhancer adapter.PromptEnhancer,
	bot adapter.TelegramBotAdapter,
	artifacts adapter.ArtifactStore,
	cfg config.WorkerConfig,
	logger *zerolog.Logger,
) ports.VideoJobManager {
	l := logger.With().Str("component", "VideoJobUC").Logger()
	return &videoJobUC{
		jobs:      jobs,
		records:   records,
		tm:        tm,
		ledger:    ledger,
		providers: providers,
		enhancer:  enhancer,
		bot:       bot,
		artifacts: artifacts,
		cfg:       cfg,
		log:       &l,
	}
}

// Create enqueues a job plus its accounting record in one transaction.
// The caller must have reserved in.Cost in the ledger beforehand.
func (uc *videoJobUC) Create(ctx context.Context, in ports.NewVideoJobInput) (*model.VideoJob, error) {
	if _, err := uc.providers.Lookup(in.Provider); err != nil {
		return nil, err
	}
	job, err := model.NewVideoJob(in.UserID, in.Provider, in.Model, in.Prompt, in.Params, in.Delivery, in.Cost, uc.cfg.JobTTL)
	if err != nil {
		return nil, err
	}
	job.RecordID = uuid.NewString()

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.jobs.Create(ctx, tx, job); err != nil {
			return err
		}
		rec, err := model.NewGenerationRecord(job.RecordID, job.ID, job.UserID, job.Provider, job.Model, job.Cost)
		if err != nil {
			return err
		}
		return uc.records.Save(ctx, tx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	uc.log.Info().Str("job_id", job.ID).Str("provider", job.Provider).Int64("cost", job.Cost).Msg("job enqueued")
	return job, nil
}

func (uc *videoJobUC) Get(ctx context.Context, id string) (*model.VideoJob, error) {
	return uc.jobs.FindByID(ctx, nil, id)
}

func (uc *videoJobUC) GetByTaskID(ctx context.Context, taskID string) (*model.VideoJob, error) {
	return uc.jobs.FindByTaskID(ctx, nil, taskID)
}

func (uc *videoJobUC) ListUserJobs(ctx context.Context, userID string, status *model.VideoJobStatus) ([]*model.VideoJob, error) {
	return uc.jobs.ListByUser(ctx, userID, status)
}

// Process claims a pending job and runs one provider attempt. A job that was
// claimed or finalized elsewhere is not an error: the status check makes the
// first claimer win and everyone else a no-op.
func (uc *videoJobUC) Process(ctx context.Context, jobID string) error {
	job, err := uc.jobs.TransitionFrom(ctx, jobID,
		[]model.VideoJobStatus{model.VideoJobStatusPending},
		model.VideoJobStatusProcessing, nil)
	if err != nil {
		if errors.Is(err, domain.ErrJobFinished) || errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if job.Expired(time.Now()) {
		return uc.finalizeFailure(ctx, job.ID, domain.ErrJobExpired.Error())
	}
	return uc.attempt(ctx, job)
}

// Retry re-claims a timeout_waiting job for another attempt, force-failing it
// once the attempt budget is spent.
func (uc *videoJobUC) Retry(ctx context.Context, jobID string) error {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	if !job.CanRetry(uc.cfg.MaxAttempts) {
		return uc.finalizeFailure(ctx, job.ID, domain.ErrRetriesExhausted.Error())
	}

	job, err = uc.jobs.TransitionFrom(ctx, jobID,
		[]model.VideoJobStatus{model.VideoJobStatusTimeoutWaiting},
		model.VideoJobStatusProcessing, nil)
	if err != nil {
		if errors.Is(err, domain.ErrJobFinished) || errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	metrics.IncJobRetried()
	return uc.attempt(ctx, job)
}

// attempt runs a single provider call under the wall-clock budget. The job is
// already in 'processing' when this is entered.
func (uc *videoJobUC) attempt(ctx context.Context, job *model.VideoJob) error {
	prov, err := uc.providers.Lookup(job.Provider)
	if err != nil {
		return uc.finalizeFailure(ctx, job.ID, domain.ErrUnknownProvider.Error())
	}

	prompt := job.Prompt
	if uc.enhancer != nil && job.Attempts == 0 {
		if out, eerr := uc.enhancer.Enhance(ctx, job.Prompt); eerr == nil && out != "" {
			prompt = out
		} else if eerr != nil {
			uc.log.Debug().Err(eerr).Str("job_id", job.ID).Msg("prompt enhancement skipped")
		}
	}

	// Persist the external task id the moment the provider acknowledges it,
	// so an out-of-band callback can resolve the job even if this call ends
	// in a timeout.
	notify := func(up adapter.ProgressUpdate) {
		if up.TaskID != "" && job.TaskID == "" {
			job.TaskID = up.TaskID
			if err := uc.jobs.SetTaskID(context.Background(), job.ID, up.TaskID); err != nil {
				uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("task id save failed")
			}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenerationTimeout)
	start := time.Now()
	res, err := prov.Generate(callCtx, adapter.GenerateRequest{
		Model:  job.Model,
		Prompt: prompt,
		Params: job.Params,
	}, notify)
	cancel()
	latencyMs := time.Since(start).Milliseconds()

	if res != nil && res.TaskID != "" && job.TaskID == "" {
		job.TaskID = res.TaskID
		if serr := uc.jobs.SetTaskID(context.Background(), job.ID, res.TaskID); serr != nil {
			uc.log.Warn().Err(serr).Str("job_id", job.ID).Msg("task id save failed")
		}
	}

	switch {
	case err == nil && res != nil && res.Completed && res.VideoURL != "":
		metrics.ObserveProviderCall(job.Provider, job.Model, latencyMs, true)
		return uc.finalizeSuccess(ctx, job.ID, res.VideoURL)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// Budget elapsed (or shutdown). The provider may still finish and
		// deliver via callback, so the reservation stays put.
		metrics.IncProviderTimeout(job.Provider)
		metrics.ObserveProviderCall(job.Provider, job.Model, latencyMs, false)
		uc.moveToTimeoutWaiting(job)
		return nil

	case err != nil:
		metrics.ObserveProviderCall(job.Provider, job.Model, latencyMs, false)
		return uc.finalizeFailure(ctx, job.ID, model.TruncateError(err.Error()))

	default:
		metrics.ObserveProviderCall(job.Provider, job.Model, latencyMs, false)
		return uc.finalizeFailure(ctx, job.ID, domain.ErrEmptyResult.Error())
	}
}

// moveToTimeoutWaiting parks the job for the retry sweep and consumes one
// attempt. Runs on a background context: the per-job budget may already be
// spent but the bookkeeping must still land.
func (uc *videoJobUC) moveToTimeoutWaiting(job *model.VideoJob) {
	ctx := context.Background()
	updated, err := uc.jobs.TransitionFrom(ctx, job.ID,
		[]model.VideoJobStatus{model.VideoJobStatusProcessing},
		model.VideoJobStatusTimeoutWaiting,
		&repository.VideoJobUpdate{AddAttempt: true})
	if err != nil {
		// A callback finalized the job between the deadline and now.
		if !errors.Is(err, domain.ErrJobFinished) && !errors.Is(err, domain.ErrNotFound) {
			uc.log.Error().Err(err).Str("job_id", job.ID).Msg("timeout transition failed")
		}
		return
	}
	metrics.IncJobFinished(string(model.VideoJobStatusTimeoutWaiting))
	uc.log.Info().Str("job_id", job.ID).Int("attempts", updated.Attempts).Msg("provider call timed out, job parked for retry")
	uc.notifyStillRunning(ctx, updated)
}

// FinalizeByTask applies a provider callback notice. The terminal-status check
// here is the sole idempotency guard against duplicate or racing notices.
func (uc *videoJobUC) FinalizeByTask(ctx context.Context, notice ports.CallbackNotice) error {
	job, err := uc.jobs.FindByTaskID(ctx, nil, notice.TaskID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.ErrJobFinished
	}
	if notice.Success {
		if len(notice.ResultURLs) == 0 {
			return uc.finalizeFailure(ctx, job.ID, "success notice carried no result reference")
		}
		return uc.finalizeSuccess(ctx, job.ID, notice.ResultURLs[0])
	}
	msg := notice.FailMsg
	if msg == "" {
		msg = "provider reported failure"
	}
	return uc.finalizeFailure(ctx, job.ID, model.TruncateError(msg))
}

// ForceExpireDue fails every non-terminal job past its absolute deadline.
func (uc *videoJobUC) ForceExpireDue(ctx context.Context, limit int) (int, error) {
	jobs, err := uc.jobs.ListExpired(ctx, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range jobs {
		if err := uc.finalizeFailure(ctx, job.ID, domain.ErrJobExpired.Error()); err != nil {
			uc.log.Error().Err(err).Str("job_id", job.ID).Msg("expiration force-fail failed")
			continue
		}
		n++
	}
	if n > 0 {
		metrics.IncJobsExpired(n)
	}
	return n, nil
}

// finalizeSuccess downloads the artifact, then wins (or loses) the terminal
// CAS. Settlement is a no-op commit: cost was pre-deducted at reservation.
func (uc *videoJobUC) finalizeSuccess(ctx context.Context, jobID, remoteURL string) error {
	location, err := uc.artifacts.Store(ctx, jobID, remoteURL)
	if err != nil {
		// A success we cannot materialize is a failure; do not leave the job
		// half-finalized with a dangling reference.
		uc.log.Warn().Err(err).Str("job_id", jobID).Msg("artifact download failed, failing job")
		return uc.finalizeFailure(ctx, jobID, model.TruncateError("result download failed: "+err.Error()))
	}

	job, err := uc.jobs.TransitionFrom(ctx, jobID, nonTerminal,
		model.VideoJobStatusCompleted,
		&repository.VideoJobUpdate{ResultURL: &location})
	if err != nil {
		if errors.Is(err, domain.ErrJobFinished) || errors.Is(err, domain.ErrNotFound) {
			return nil // another finalizer won
		}
		return err
	}

	if job.RecordID != "" {
		if rerr := uc.records.MarkCompleted(ctx, job.RecordID, processingMs(job)); rerr != nil {
			uc.log.Error().Err(rerr).Str("job_id", job.ID).Msg("generation record settle failed")
		}
	}
	metrics.IncJobFinished(string(model.VideoJobStatusCompleted))
	uc.log.Info().Str("job_id", job.ID).Int64("duration_ms", processingMs(job)).Msg("job completed")
	uc.notifyCompleted(ctx, job)
	return nil
}

// finalizeFailure wins (or loses) the terminal CAS, then rolls the reserved
// cost back. The CAS makes the rollback fire at most once per job.
func (uc *videoJobUC) finalizeFailure(ctx context.Context, jobID, errMsg string) error {
	errMsg = model.TruncateError(errMsg)
	job, err := uc.jobs.TransitionFrom(ctx, jobID, nonTerminal,
		model.VideoJobStatusFailed,
		&repository.VideoJobUpdate{LastError: &errMsg})
	if err != nil {
		if errors.Is(err, domain.ErrJobFinished) || errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	refunded := false
	if job.Cost > 0 {
		if rerr := uc.ledger.Rollback(ctx, job.UserID, job.Cost); rerr != nil {
			uc.log.Error().Err(rerr).Str("job_id", job.ID).Int64("cost", job.Cost).Msg("ledger rollback failed")
		} else {
			refunded = true
			metrics.IncLedgerRollback()
		}
	}
	if job.RecordID != "" {
		if rerr := uc.records.MarkFailed(ctx, job.RecordID, errMsg); rerr != nil {
			uc.log.Error().Err(rerr).Str("job_id", job.ID).Msg("generation record settle failed")
		}
	}
	metrics.IncJobFinished(string(model.VideoJobStatusFailed))
	uc.log.Info().Str("job_id", job.ID).Str("error", errMsg).Msg("job failed")
	uc.notifyFailed(ctx, job, errMsg, refunded)
	return nil
}

func processingMs(job *model.VideoJob) int64 {
	if job.StartedAt == nil || job.CompletedAt == nil {
		return 0
	}
	return job.CompletedAt.Sub(*job.StartedAt).Milliseconds()
}

// ---- outbound notifications (best effort, never job failures) ----

func (uc *videoJobUC) notifyCompleted(ctx context.Context, job *model.VideoJob) {
	if job.Delivery.ChatID == 0 {
		return
	}
	if job.Delivery.ProgressMessageID != 0 {
		if err := uc.bot.DeleteMessage(ctx, job.Delivery.ChatID, job.Delivery.ProgressMessageID); err != nil {
			uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("progress message delete failed")
		}
	}
	_, err := uc.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:   job.Delivery.ChatID,
		Text:     "Your video is ready.",
		VideoURL: job.ResultURL,
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("result delivery failed")
	}
}

func (uc *videoJobUC) notifyFailed(ctx context.Context, job *model.VideoJob, errMsg string, refunded bool) {
	if job.Delivery.ChatID == 0 {
		return
	}
	text := "Video generation failed: " + errMsg
	if refunded {
		text += fmt.Sprintf("\n%d credits were returned to your balance.", job.Cost)
	}
	if job.Delivery.ProgressMessageID != 0 {
		if err := uc.bot.EditMessage(ctx, job.Delivery.ChatID, job.Delivery.ProgressMessageID, text); err == nil {
			return
		}
	}
	if _, err := uc.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: job.Delivery.ChatID, Text: text}); err != nil {
		uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("failure notification failed")
	}
}

func (uc *videoJobUC) notifyStillRunning(ctx context.Context, job *model.VideoJob) {
	if job.Delivery.ChatID == 0 {
		return
	}
	text := "Still rendering... this can take a while, you will get the video as soon as it is ready."
	if job.Delivery.ProgressMessageID != 0 {
		if err := uc.bot.EditMessage(ctx, job.Delivery.ChatID, job.Delivery.ProgressMessageID, text); err == nil {
			return
		}
	}
	if _, err := uc.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: job.Delivery.ChatID, Text: text}); err != nil {
		uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("progress notification failed")
	}
}
