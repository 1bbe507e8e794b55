package telegram

import (
	"context"
	"sync"

	"telegram-video-gen/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter records outbound messages instead of sending them.
// Used in dev mode and by demos.
type NoopBotAdapter struct {
	mu     sync.Mutex
	Sent   []adapter.SendMessageParams
	nextID int
}

func (n *NoopBotAdapter) SendMessage(_ context.Context, params adapter.SendMessageParams) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, params)
	n.nextID++
	return n.nextID, nil
}

func (n *NoopBotAdapter) EditMessage(context.Context, int64, int, string) error { return nil }

func (n *NoopBotAdapter) DeleteMessage(context.Context, int64, int) error { return nil }
