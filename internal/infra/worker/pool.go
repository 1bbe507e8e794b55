// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

// RunBatch executes tasks with at most `concurrency` running at once and
// returns when every started task has finished. A task's error or panic is
// logged and isolated: it never aborts the batch or its siblings.
func RunBatch(ctx context.Context, tasks []Task, concurrency int, log *zerolog.Logger) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, task := range tasks {
		if task == nil {
			continue
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("panic", fmt.Sprint(r)).Msg("task panicked")
				}
			}()
			if err := t(ctx); err != nil {
				log.Error().Err(err).Msg("task error")
			}
		}(task)
	}
	wg.Wait()
}
