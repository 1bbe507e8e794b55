// File: internal/application/video_facade_test.go
package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/adapter"
	ports "telegram-video-gen/internal/domain/ports/usecase"
)

type scriptLedger struct {
	mu         sync.Mutex
	balance    int64
	reserveErr error
	rollbacks  int
}

func (l *scriptLedger) Reserve(_ context.Context, _ string, units int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reserveErr != nil {
		return l.reserveErr
	}
	l.balance -= units
	return nil
}

func (l *scriptLedger) Rollback(_ context.Context, _ string, units int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += units
	l.rollbacks++
	return nil
}

func (l *scriptLedger) Balance(context.Context, string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

type scriptJobs struct {
	createErr error
	created   []ports.NewVideoJobInput
	listed    []*model.VideoJob
}

func (s *scriptJobs) Create(_ context.Context, in ports.NewVideoJobInput) (*model.VideoJob, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, in)
	return &model.VideoJob{ID: "job-1", UserID: in.UserID, Status: model.VideoJobStatusPending}, nil
}

func (s *scriptJobs) Get(context.Context, string) (*model.VideoJob, error)         { panic("not used") }
func (s *scriptJobs) GetByTaskID(context.Context, string) (*model.VideoJob, error) { panic("not used") }
func (s *scriptJobs) ListUserJobs(context.Context, string, *model.VideoJobStatus) ([]*model.VideoJob, error) {
	return s.listed, nil
}
func (s *scriptJobs) Process(context.Context, string) error                       { return nil }
func (s *scriptJobs) Retry(context.Context, string) error                         { return nil }
func (s *scriptJobs) FinalizeByTask(context.Context, ports.CallbackNotice) error  { return nil }
func (s *scriptJobs) ForceExpireDue(context.Context, int) (int, error)            { return 0, nil }

type recordBot struct {
	sent   []adapter.SendMessageParams
	edited []string
}

func (b *recordBot) SendMessage(_ context.Context, p adapter.SendMessageParams) (int, error) {
	b.sent = append(b.sent, p)
	return len(b.sent), nil
}
func (b *recordBot) EditMessage(_ context.Context, _ int64, _ int, text string) error {
	b.edited = append(b.edited, text)
	return nil
}
func (b *recordBot) DeleteMessage(context.Context, int64, int) error { return nil }

func newFacade(jobs *scriptJobs, ledger *scriptLedger, bot *recordBot) *VideoFacade {
	log := zerolog.Nop()
	return NewVideoFacade(jobs, ledger, bot, "kling", 1000, &log)
}

func TestSubmitVideo(t *testing.T) {
	t.Run("reserves then enqueues with delivery context", func(t *testing.T) {
		jobs := &scriptJobs{}
		ledger := &scriptLedger{balance: 5000}
		bot := &recordBot{}
		f := newFacade(jobs, ledger, bot)

		reply, err := f.SubmitVideo(context.Background(), 42, 99, "a red balloon")
		if err != nil {
			t.Fatalf("SubmitVideo: %v", err)
		}
		if reply != "" {
			t.Fatalf("reply = %q, want empty (progress message answers)", reply)
		}
		if ledger.balance != 4000 {
			t.Fatalf("balance = %d, want 4000", ledger.balance)
		}
		if len(jobs.created) != 1 {
			t.Fatalf("created = %d, want 1", len(jobs.created))
		}
		in := jobs.created[0]
		if in.UserID != "tg:42" || in.Provider != "kling" || in.Cost != 1000 {
			t.Fatalf("unexpected input: %+v", in)
		}
		if in.Delivery.ChatID != 99 || in.Delivery.ProgressMessageID != 1 {
			t.Fatalf("unexpected delivery: %+v", in.Delivery)
		}
	})

	t.Run("empty prompt is a usage reply without reservation", func(t *testing.T) {
		ledger := &scriptLedger{balance: 5000}
		f := newFacade(&scriptJobs{}, ledger, &recordBot{})
		reply, err := f.SubmitVideo(context.Background(), 42, 99, "   ")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(reply, "Usage:") {
			t.Fatalf("reply = %q", reply)
		}
		if ledger.balance != 5000 {
			t.Fatal("credits reserved for an empty prompt")
		}
	})

	t.Run("insufficient credits", func(t *testing.T) {
		ledger := &scriptLedger{reserveErr: domain.ErrInsufficientCredits}
		f := newFacade(&scriptJobs{}, ledger, &recordBot{})
		reply, err := f.SubmitVideo(context.Background(), 42, 99, "prompt")
		if err != nil {
			t.Fatalf("insufficient credits must not surface an error, got %v", err)
		}
		if !strings.Contains(reply, "Not enough credits") {
			t.Fatalf("reply = %q", reply)
		}
	})

	t.Run("enqueue failure refunds the reservation", func(t *testing.T) {
		jobs := &scriptJobs{createErr: errors.New("db down")}
		ledger := &scriptLedger{balance: 5000}
		bot := &recordBot{}
		f := newFacade(jobs, ledger, bot)

		_, err := f.SubmitVideo(context.Background(), 42, 99, "prompt")
		if err == nil {
			t.Fatal("expected the create error")
		}
		if ledger.rollbacks != 1 || ledger.balance != 5000 {
			t.Fatalf("rollbacks = %d balance = %d, want refund", ledger.rollbacks, ledger.balance)
		}
		if len(bot.edited) != 1 {
			t.Fatal("progress message not rewritten on failure")
		}
	})
}

func TestBalance(t *testing.T) {
	f := newFacade(&scriptJobs{}, &scriptLedger{balance: 2500}, &recordBot{})
	reply, err := f.Balance(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "You have 2500 credits." {
		t.Fatalf("reply = %q", reply)
	}
}

func TestRecentJobs(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		f := newFacade(&scriptJobs{}, &scriptLedger{}, &recordBot{})
		reply, err := f.RecentJobs(context.Background(), 42)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(reply, "No video requests yet") {
			t.Fatalf("reply = %q", reply)
		}
	})

	t.Run("caps the listing at five", func(t *testing.T) {
		jobs := &scriptJobs{}
		for i := 0; i < 8; i++ {
			jobs.listed = append(jobs.listed, &model.VideoJob{
				ID: "j", Status: model.VideoJobStatusCompleted, Prompt: "p",
			})
		}
		f := newFacade(jobs, &scriptLedger{}, &recordBot{})
		reply, err := f.RecentJobs(context.Background(), 42)
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.Count(reply, "\n"); got != 5 {
			t.Fatalf("lines = %d, want 5", got)
		}
	})
}
