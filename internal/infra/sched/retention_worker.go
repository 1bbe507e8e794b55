package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-video-gen/internal/domain/ports/repository"
)

// RetentionWorker periodically purges terminal jobs older than the retention
// age. Jobs are never deleted synchronously; this sweep is the only remover.
type RetentionWorker struct {
	interval time.Duration
	age      time.Duration
	jobs     repository.VideoJobRepository
	log      *zerolog.Logger
}

func NewRetentionWorker(interval, age time.Duration, jobs repository.VideoJobRepository, logger *zerolog.Logger) *RetentionWorker {
	l := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval: interval,
		age:      age,
		jobs:     jobs,
		log:      &l,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("age", w.age).Msg("starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-w.age)
			n, err := w.jobs.DeleteTerminalBefore(ctx, cutoff)
			if err != nil {
				w.log.Error().Err(err).Msg("retention sweep error")
				continue
			}
			if n > 0 {
				w.log.Info().Int64("count", n).Msg("old jobs purged")
			}
		}
	}
}
