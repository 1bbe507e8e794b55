package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	"telegram-video-gen/internal/domain/ports/adapter"
	ports "telegram-video-gen/internal/domain/ports/usecase"
)

// VideoFacade is the thin surface between the Telegram command layer and the
// job core. It owns the enqueue precondition: reserve first, then create.
type VideoFacade struct {
	jobs     ports.VideoJobManager
	ledger   ports.CreditLedger
	bot      adapter.TelegramBotAdapter
	provider string // default provider name
	cost     int64  // spend units reserved per request
	log      *zerolog.Logger
}

func NewVideoFacade(jobs ports.VideoJobManager, ledger ports.CreditLedger, bot adapter.TelegramBotAdapter, defaultProvider string, defaultCost int64, logger *zerolog.Logger) *VideoFacade {
	l := logger.With().Str("component", "VideoFacade").Logger()
	return &VideoFacade{
		jobs:     jobs,
		ledger:   ledger,
		bot:      bot,
		provider: defaultProvider,
		cost:     defaultCost,
		log:      &l,
	}
}

// SubmitVideo reserves the cost, posts the progress message and enqueues the
// job. The returned string is the user-facing reply ("" when the progress
// message already answers).
func (f *VideoFacade) SubmitVideo(ctx context.Context, tgID int64, chatID int64, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Usage: /video <describe the clip you want>", nil
	}
	userID := userIDFor(tgID)

	if err := f.ledger.Reserve(ctx, userID, f.cost); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return fmt.Sprintf("Not enough credits: this render costs %d. Check /balance.", f.cost), nil
		}
		return "Something went wrong, please try again.", err
	}

	progressID, err := f.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID: chatID,
		Text:   "Rendering your video... you will get it here when it is done.",
	})
	if err != nil {
		f.log.Warn().Err(err).Int64("chat_id", chatID).Msg("progress message send failed")
		progressID = 0 // degrade: deliver without replacing anything
	}

	job, err := f.jobs.Create(ctx, ports.NewVideoJobInput{
		UserID:   userID,
		Provider: f.provider,
		Prompt:   prompt,
		Delivery: model.DeliveryContext{ChatID: chatID, ProgressMessageID: progressID},
		Cost:     f.cost,
	})
	if err != nil {
		// Enqueue failed after the reservation: give the credits back.
		if rerr := f.ledger.Rollback(ctx, userID, f.cost); rerr != nil {
			f.log.Error().Err(rerr).Str("user_id", userID).Msg("reservation rollback failed")
		}
		if progressID != 0 {
			_ = f.bot.EditMessage(ctx, chatID, progressID, "Could not queue your video, credits were returned.")
			return "", err
		}
		return "Could not queue your video, credits were returned.", err
	}

	f.log.Info().Str("job_id", job.ID).Int64("tg_id", tgID).Msg("video request queued")
	return "", nil
}

func (f *VideoFacade) Balance(ctx context.Context, tgID int64) (string, error) {
	balance, err := f.ledger.Balance(ctx, userIDFor(tgID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "You have 0 credits.", nil
		}
		return "Could not fetch your balance right now.", err
	}
	return fmt.Sprintf("You have %d credits.", balance), nil
}

func (f *VideoFacade) RecentJobs(ctx context.Context, tgID int64) (string, error) {
	jobs, err := f.jobs.ListUserJobs(ctx, userIDFor(tgID), nil)
	if err != nil {
		return "Could not fetch your jobs right now.", err
	}
	if len(jobs) == 0 {
		return "No video requests yet. Try /video <prompt>.", nil
	}
	var b strings.Builder
	limit := len(jobs)
	if limit > 5 {
		limit = 5
	}
	for _, j := range jobs[:limit] {
		fmt.Fprintf(&b, "%s - %s (%s)\n", j.CreatedAt.Format("Jan 2 15:04"), j.Status, shorten(j.Prompt, 40))
	}
	return b.String(), nil
}

// userIDFor maps a Telegram account to the ledger/user key. There is no user
// registration flow in this service; the Telegram id is the identity.
func userIDFor(tgID int64) string {
	return "tg:" + strconv.FormatInt(tgID, 10)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
