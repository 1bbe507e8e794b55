package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-video-gen/internal/application"
	"telegram-video-gen/internal/config"
	"telegram-video-gen/internal/domain/ports/adapter"
	red "telegram-video-gen/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter implements the outbound messaging port with tgbotapi
// and polls updates for the /video intake commands.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      *application.VideoFacade
	rateLimiter *red.RateLimiter
	log         *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter *red.RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		rateLimiter:   rateLimiter,
		log:           &l,
		updateWorkers: workers,
	}, nil
}

// SetFacade wires the command handler after construction; the facade itself
// needs this adapter for delivery, so the cycle is closed here.
func (r *RealTelegramBotAdapter) SetFacade(f *application.VideoFacade) { r.facade = f }

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) (int, error) {
	var c tgbotapi.Chattable
	if params.VideoURL != "" {
		v := tgbotapi.NewVideo(params.ChatID, tgbotapi.FileURL(params.VideoURL))
		v.Caption = params.Text
		c = v
	} else {
		c = tgbotapi.NewMessage(params.ChatID, params.Text)
	}
	sent, err := r.bot.Send(c)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (r *RealTelegramBotAdapter) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := r.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (r *RealTelegramBotAdapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := r.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// StartPolling consumes updates with a small worker fan-out and routes
// commands to the facade. Blocks until ctx is done.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					r.handleUpdate(ctx, up)
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			wg.Wait()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				wg.Wait()
				return nil
			}
			select {
			case updateChan <- up:
			case <-ctx.Done():
			}
		}
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, up tgbotapi.Update) {
	if up.Message == nil || r.facade == nil {
		return
	}
	msg := up.Message
	if !msg.IsCommand() {
		return
	}

	if r.rateLimiter != nil {
		ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(msg.From.ID, msg.Command()), 5, time.Minute)
		if err == nil && !ok {
			_, _ = r.SendMessage(ctx, adapter.SendMessageParams{ChatID: msg.Chat.ID, Text: "Too many requests, slow down a little."})
			return
		}
	}

	var reply string
	var err error
	switch msg.Command() {
	case "video":
		reply, err = r.facade.SubmitVideo(ctx, msg.From.ID, msg.Chat.ID, strings.TrimSpace(msg.CommandArguments()))
	case "balance":
		reply, err = r.facade.Balance(ctx, msg.From.ID)
	case "jobs":
		reply, err = r.facade.RecentJobs(ctx, msg.From.ID)
	case "start", "help":
		reply = "Send /video <prompt> to render a clip, /jobs for recent requests, /balance for remaining credits."
	default:
		return
	}
	if err != nil {
		r.log.Warn().Err(err).Str("command", msg.Command()).Int64("tg_id", msg.From.ID).Msg("command failed")
	}
	if reply != "" {
		if _, err := r.SendMessage(ctx, adapter.SendMessageParams{ChatID: msg.Chat.ID, Text: reply}); err != nil {
			r.log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("reply send failed")
		}
	}
}
