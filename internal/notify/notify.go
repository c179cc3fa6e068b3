package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Notifier delivers a message to a user's chat. Failures are reported to
// the caller, who decides whether they are fatal (they never are for
// booking side effects).
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Sender abstracts the Telegram bot API client so tests can stub it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends messages through the bot API with a global rate limit
// (the Bot API allows ~30 messages per second across all chats).
type Telegram struct {
	bot     Sender
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewTelegram wraps a bot client with a 20 rps / burst 30 limiter.
func NewTelegram(bot Sender, logger *zerolog.Logger) *Telegram {
	return &Telegram{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		logger:  logger,
	}
}

// Send delivers text to chatID, waiting for the rate limiter first.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}

	t.logger.Debug().Int64("chat_id", chatID).Msg("message sent")
	return nil
}
