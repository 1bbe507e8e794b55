package adapter

import "context"

type SendMessageParams struct {
	ChatID   int64
	Text     string
	VideoURL string // when set, the message is sent as a video with Text as caption
}

// TelegramBotAdapter is the outbound messaging port. All three calls are
// fire-and-forget from the core's perspective: failures are logged by the
// caller, never propagated as job failures.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
