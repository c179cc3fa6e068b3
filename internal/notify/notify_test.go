package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func TestTelegramSend(t *testing.T) {
	sender := &fakeSender{}
	logger := zerolog.Nop()
	tg := NewTelegram(sender, &logger)

	require.NoError(t, tg.Send(context.Background(), 42, "hello"))
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "hello", msg.Text)
}

func TestTelegramSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("forbidden: bot was blocked")}
	logger := zerolog.Nop()
	tg := NewTelegram(sender, &logger)

	err := tg.Send(context.Background(), 42, "hello")
	assert.Error(t, err)
}

func TestTelegramSendCancelledContext(t *testing.T) {
	sender := &fakeSender{}
	logger := zerolog.Nop()
	tg := NewTelegram(sender, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tg.Send(ctx, 42, "hello")
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}
