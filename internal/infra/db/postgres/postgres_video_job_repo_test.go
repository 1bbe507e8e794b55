//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/repository"
)

func newTestJob(t *testing.T, ttl time.Duration) *model.VideoJob {
	t.Helper()
	job, err := model.NewVideoJob("tg:111", "kling", "std", "a fox in the snow", map[string]any{"duration": 5},
		model.DeliveryContext{ChatID: 111, ProgressMessageID: 3}, 1000, ttl)
	if err != nil {
		t.Fatalf("NewVideoJob: %v", err)
	}
	return job
}

func TestVideoJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewVideoJobRepo(testPool)

	t.Run("create assigns id and round-trips the row", func(t *testing.T) {
		cleanup(t)
		job := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if job.ID == "" {
			t.Fatal("id not assigned")
		}

		got, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Prompt != job.Prompt || got.Status != model.VideoJobStatusPending {
			t.Fatalf("unexpected job: %+v", got)
		}
		if got.Delivery.ChatID != 111 || got.Delivery.ProgressMessageID != 3 {
			t.Fatalf("delivery context lost: %+v", got.Delivery)
		}
		if got.Params["duration"] != float64(5) {
			t.Fatalf("params lost: %v", got.Params)
		}
	})

	t.Run("find by unknown id", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("transition from pending claims once", func(t *testing.T) {
		cleanup(t)
		job := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, job); err != nil {
			t.Fatal(err)
		}

		claimed, err := repo.TransitionFrom(ctx, job.ID,
			[]model.VideoJobStatus{model.VideoJobStatusPending},
			model.VideoJobStatusProcessing, nil)
		if err != nil {
			t.Fatalf("TransitionFrom: %v", err)
		}
		if claimed.Status != model.VideoJobStatusProcessing {
			t.Fatalf("status = %s", claimed.Status)
		}
		if claimed.StartedAt == nil {
			t.Fatal("started_at not stamped")
		}

		// Second claim of the same job must lose.
		_, err = repo.TransitionFrom(ctx, job.ID,
			[]model.VideoJobStatus{model.VideoJobStatusPending},
			model.VideoJobStatusProcessing, nil)
		if !errors.Is(err, domain.ErrJobFinished) {
			t.Fatalf("want ErrJobFinished, got %v", err)
		}
	})

	t.Run("transition of a missing job", func(t *testing.T) {
		cleanup(t)
		_, err := repo.TransitionFrom(ctx, "missing",
			[]model.VideoJobStatus{model.VideoJobStatusPending},
			model.VideoJobStatusProcessing, nil)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("add attempt and partial fields", func(t *testing.T) {
		cleanup(t)
		job := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, job); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.UpdateStatus(ctx, job.ID, model.VideoJobStatusProcessing, nil); err != nil {
			t.Fatal(err)
		}

		parked, err := repo.TransitionFrom(ctx, job.ID,
			[]model.VideoJobStatus{model.VideoJobStatusProcessing},
			model.VideoJobStatusTimeoutWaiting,
			&repository.VideoJobUpdate{AddAttempt: true})
		if err != nil {
			t.Fatalf("TransitionFrom: %v", err)
		}
		if parked.Attempts != 1 {
			t.Fatalf("attempts = %d, want 1", parked.Attempts)
		}

		errMsg := "provider said no"
		failed, err := repo.TransitionFrom(ctx, job.ID,
			[]model.VideoJobStatus{model.VideoJobStatusTimeoutWaiting},
			model.VideoJobStatusFailed,
			&repository.VideoJobUpdate{LastError: &errMsg})
		if err != nil {
			t.Fatal(err)
		}
		if failed.LastError != errMsg || failed.CompletedAt == nil {
			t.Fatalf("unexpected job: %+v", failed)
		}
		if failed.Attempts != 1 {
			t.Fatalf("attempts changed: %d", failed.Attempts)
		}
	})

	t.Run("set and find by task id", func(t *testing.T) {
		cleanup(t)
		job := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, job); err != nil {
			t.Fatal(err)
		}
		if err := repo.SetTaskID(ctx, job.ID, "ext-42"); err != nil {
			t.Fatalf("SetTaskID: %v", err)
		}
		got, err := repo.FindByTaskID(ctx, nil, "ext-42")
		if err != nil {
			t.Fatalf("FindByTaskID: %v", err)
		}
		if got.ID != job.ID {
			t.Fatalf("wrong job: %s", got.ID)
		}
		if _, err := repo.FindByTaskID(ctx, nil, "ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("list by status oldest first", func(t *testing.T) {
		cleanup(t)
		var ids []string
		for i := 0; i < 3; i++ {
			job := newTestJob(t, time.Hour)
			job.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
			if err := repo.Create(ctx, nil, job); err != nil {
				t.Fatal(err)
			}
			ids = append(ids, job.ID)
		}
		got, err := repo.ListByStatus(ctx, model.VideoJobStatusPending, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].ID != ids[0] || got[1].ID != ids[1] {
			t.Fatalf("order wrong: %s %s", got[0].ID, got[1].ID)
		}
	})

	t.Run("list expired skips terminal jobs", func(t *testing.T) {
		cleanup(t)
		overdue := newTestJob(t, -time.Minute)
		if err := repo.Create(ctx, nil, overdue); err != nil {
			t.Fatal(err)
		}
		done := newTestJob(t, -time.Minute)
		if err := repo.Create(ctx, nil, done); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.UpdateStatus(ctx, done.ID, model.VideoJobStatusCompleted, nil); err != nil {
			t.Fatal(err)
		}

		got, err := repo.ListExpired(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != overdue.ID {
			t.Fatalf("unexpected expired set: %+v", got)
		}
	})

	t.Run("list by user with status filter", func(t *testing.T) {
		cleanup(t)
		a := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, a); err != nil {
			t.Fatal(err)
		}
		b := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, b); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.UpdateStatus(ctx, b.ID, model.VideoJobStatusCompleted, nil); err != nil {
			t.Fatal(err)
		}

		all, err := repo.ListByUser(ctx, "tg:111", nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Fatalf("len = %d, want 2", len(all))
		}
		st := model.VideoJobStatusCompleted
		completed, err := repo.ListByUser(ctx, "tg:111", &st)
		if err != nil {
			t.Fatal(err)
		}
		if len(completed) != 1 || completed[0].ID != b.ID {
			t.Fatalf("unexpected filtered set: %+v", completed)
		}
	})

	t.Run("retention delete keeps recent and non-terminal jobs", func(t *testing.T) {
		cleanup(t)
		old := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, old); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.UpdateStatus(ctx, old.ID, model.VideoJobStatusFailed, nil); err != nil {
			t.Fatal(err)
		}
		pending := newTestJob(t, time.Hour)
		if err := repo.Create(ctx, nil, pending); err != nil {
			t.Fatal(err)
		}

		n, err := repo.DeleteTerminalBefore(ctx, time.Now().Add(time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("deleted = %d, want 1", n)
		}
		if _, err := repo.FindByID(ctx, nil, pending.ID); err != nil {
			t.Fatalf("pending job removed: %v", err)
		}
	})
}
