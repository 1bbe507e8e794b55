package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-video-gen/internal/config"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/repository"
	ports "telegram-video-gen/internal/domain/ports/usecase"
)

// Dispatcher is the single scheduling loop. Each cycle claims a bounded
// batch of pending jobs; slower sweeps handle retries and expiration.
// One instance per deployment: the state machine's status checks, not a
// distributed lock, protect against double-processing.
type Dispatcher struct {
	jobs    ports.VideoJobManager
	store   repository.VideoJobRepository
	toggles repository.ToggleStore
	cfg     config.WorkerConfig
	log     *zerolog.Logger

	cycle uint64
}

func NewDispatcher(jobs ports.VideoJobManager, store repository.VideoJobRepository, toggles repository.ToggleStore, cfg config.WorkerConfig, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "Dispatcher").Logger()
	return &Dispatcher{
		jobs:    jobs,
		store:   store,
		toggles: toggles,
		cfg:     cfg,
		log:     &l,
	}
}

// Run blocks until ctx is done. In-flight batches drain before it returns,
// so shutdown never abandons a claimed job mid-bookkeeping.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().Dur("interval", d.cfg.Interval).Msg("dispatcher started")
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

func (d *Dispatcher) runCycle(ctx context.Context) {
	if !d.toggles.Enabled(ctx, d.cfg.ToggleKey, true) {
		d.log.Debug().Str("toggle", d.cfg.ToggleKey).Msg("worker disabled, skipping cycle")
		return
	}
	d.cycle++

	d.dispatchPending(ctx)

	if d.cycle%uint64(d.cfg.RetryEvery) == 0 {
		d.dispatchRetries(ctx)
	}
	if d.cycle%uint64(d.cfg.ExpiryEvery) == 0 {
		if n, err := d.jobs.ForceExpireDue(ctx, d.cfg.PendingBatch); err != nil {
			d.log.Error().Err(err).Msg("expiration sweep failed")
		} else if n > 0 {
			d.log.Info().Int("count", n).Msg("expired jobs force-failed")
		}
	}
}

// dispatchPending claims up to the concurrency cap of the oldest pending
// jobs. Fetched jobs beyond the cap stay pending for the next cycle.
func (d *Dispatcher) dispatchPending(ctx context.Context) {
	batch, err := d.store.ListByStatus(ctx, model.VideoJobStatusPending, d.cfg.PendingBatch)
	if err != nil {
		d.log.Error().Err(err).Msg("pending fetch failed")
		return
	}
	if len(batch) == 0 {
		return
	}
	if len(batch) > d.cfg.PendingConcurrency {
		batch = batch[:d.cfg.PendingConcurrency]
	}

	tasks := make([]Task, 0, len(batch))
	for _, job := range batch {
		id := job.ID
		tasks = append(tasks, func(ctx context.Context) error {
			return d.jobs.Process(ctx, id)
		})
	}
	d.log.Debug().Int("count", len(tasks)).Msg("dispatching pending jobs")
	RunBatch(ctx, tasks, d.cfg.PendingConcurrency, d.log)
}

// dispatchRetries re-dispatches timeout_waiting jobs on the slower cadence.
// Jobs past the attempt budget are routed through Retry as well, which
// force-fails them instead of calling the provider.
func (d *Dispatcher) dispatchRetries(ctx context.Context) {
	batch, err := d.store.ListByStatus(ctx, model.VideoJobStatusTimeoutWaiting, d.cfg.RetryBatch)
	if err != nil {
		d.log.Error().Err(err).Msg("retry fetch failed")
		return
	}
	if len(batch) == 0 {
		return
	}

	// Exhausted jobs always get a task: Retry force-fails them without
	// touching the provider.
	tasks := make([]Task, 0, len(batch))
	kept := 0
	for _, job := range batch {
		id := job.ID
		if !job.CanRetry(d.cfg.MaxAttempts) {
			tasks = append(tasks, func(ctx context.Context) error {
				return d.jobs.Retry(ctx, id)
			})
			continue
		}
		if kept >= d.cfg.RetryConcurrency {
			continue // stays timeout_waiting for the next retry sweep
		}
		kept++
		tasks = append(tasks, func(ctx context.Context) error {
			return d.jobs.Retry(ctx, id)
		})
	}
	d.log.Debug().Int("count", len(tasks)).Msg("dispatching retries")
	RunBatch(ctx, tasks, d.cfg.RetryConcurrency, d.log)
}
