package bot

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massagebot/internal/booking"
	"massagebot/internal/calendar"
	"massagebot/internal/clock"
	"massagebot/internal/database"
	"massagebot/internal/events"
	"massagebot/internal/models"
)

type stubAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (s *stubAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *stubAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *stubAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

// lastText extracts the text of the most recent outgoing message or edit.
func (s *stubAPI) lastText(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)

	switch m := s.sent[len(s.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	default:
		t.Fatalf("unexpected chattable %T", m)
		return ""
	}
}

type silentNotifier struct{}

func (silentNotifier) Send(ctx context.Context, chatID int64, text string) error { return nil }

type botFixture struct {
	api    *stubAPI
	worker *Worker
	db     *database.DB
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	_, err = db.GenerateSlots(context.Background(), now, 7, 9, 17, 60)
	require.NoError(t, err)

	allocator := booking.NewService(db, calendar.Noop{}, silentNotifier{}, events.NewBus(), clock.NewSystem(), &logger)
	api := &stubAPI{}
	worker := NewWorker(api, db, allocator, nil, clock.NewSystem(), &logger)
	return &botFixture{api: api, worker: worker, db: db}
}

const (
	testUserID = int64(500100)
	testChatID = int64(500100)
)

func commandUpdate(command string) tgbotapi.Update {
	text := "/" + command
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len(text)},
			},
			From: &tgbotapi.User{ID: testUserID, FirstName: "Anna", UserName: "akeller"},
			Chat: &tgbotapi.Chat{ID: testChatID},
		},
	}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			From: &tgbotapi.User{ID: testUserID, FirstName: "Anna"},
			Message: &tgbotapi.Message{
				MessageID: 7,
				Chat:      &tgbotapi.Chat{ID: testChatID},
			},
		},
	}
}

func TestStartRegistersUser(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.worker.HandleUpdate(ctx, commandUpdate("start"))

	user, err := f.db.GetUserByTelegramID(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.FirstName)
	assert.Contains(t, f.api.lastText(t), "Welcome")
}

func TestServicesCommand(t *testing.T) {
	f := newBotFixture(t)

	f.worker.HandleUpdate(context.Background(), commandUpdate("services"))

	text := f.api.lastText(t)
	assert.Contains(t, text, "Swedish Massage")
	assert.Contains(t, text, "$80")
}

func TestFullBookingDialog(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.worker.HandleUpdate(ctx, commandUpdate("start"))
	f.worker.HandleUpdate(ctx, commandUpdate("book"))
	assert.Contains(t, f.api.lastText(t), "Choose a service")

	f.worker.HandleUpdate(ctx, callbackUpdate("svc:1"))
	assert.Contains(t, f.api.lastText(t), "Choose a date")

	free, err := f.db.ListFreeSlots(ctx, time.Now().UTC(), time.Now().UTC().AddDate(0, 0, 8))
	require.NoError(t, err)
	require.NotEmpty(t, free)
	slot := free[0].StartTime

	f.worker.HandleUpdate(ctx, callbackUpdate("date:"+slot.Format(callbackDateLayout)))
	assert.Contains(t, f.api.lastText(t), "Choose a time")

	f.worker.HandleUpdate(ctx, callbackUpdate("slot:"+slot.Format(time.RFC3339)))
	assert.Contains(t, f.api.lastText(t), "Please confirm")

	f.worker.HandleUpdate(ctx, callbackUpdate("confirm"))
	assert.Contains(t, f.api.lastText(t), "confirmed")

	user, err := f.db.GetUserByTelegramID(ctx, testUserID)
	require.NoError(t, err)
	bookings, err := f.db.ListUserBookings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.True(t, bookings[0].BookingDateTime.Equal(slot))
	assert.Equal(t, "Swedish Massage", bookings[0].ServiceName)

	// The slot is no longer offered.
	remaining, err := f.db.ListFreeSlots(ctx, slot, slot.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestConfirmOnTakenSlot(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.worker.HandleUpdate(ctx, commandUpdate("start"))

	free, err := f.db.ListFreeSlots(ctx, time.Now().UTC(), time.Now().UTC().AddDate(0, 0, 8))
	require.NoError(t, err)
	slot := free[0].StartTime

	// Another client takes the slot mid-dialog.
	rival, err := f.db.CreateOrUpdateUser(ctx, &models.User{TelegramUserID: 999, FirstName: "Ben"})
	require.NoError(t, err)
	require.NoError(t, f.db.ReserveSlot(ctx, &models.Booking{
		Reference:       "rival-ref",
		UserID:          rival.ID,
		ServiceID:       1,
		BookingDateTime: slot,
	}))

	f.worker.HandleUpdate(ctx, commandUpdate("book"))
	f.worker.HandleUpdate(ctx, callbackUpdate("svc:1"))
	f.worker.HandleUpdate(ctx, callbackUpdate("date:"+slot.Format(callbackDateLayout)))
	f.worker.HandleUpdate(ctx, callbackUpdate("slot:"+slot.Format(time.RFC3339)))
	f.worker.HandleUpdate(ctx, callbackUpdate("confirm"))

	assert.Contains(t, f.api.lastText(t), "just taken")

	user, err := f.db.GetUserByTelegramID(ctx, testUserID)
	require.NoError(t, err)
	bookings, err := f.db.ListUserBookings(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestMyBookingsAndCancel(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.worker.HandleUpdate(ctx, commandUpdate("mybookings"))
	assert.Contains(t, f.api.lastText(t), "no bookings yet")

	f.worker.HandleUpdate(ctx, commandUpdate("start"))
	user, err := f.db.GetUserByTelegramID(ctx, testUserID)
	require.NoError(t, err)

	free, err := f.db.ListFreeSlots(ctx, time.Now().UTC(), time.Now().UTC().AddDate(0, 0, 8))
	require.NoError(t, err)
	b := &models.Booking{
		Reference:       "test-ref",
		UserID:          user.ID,
		ServiceID:       1,
		BookingDateTime: free[0].StartTime,
	}
	require.NoError(t, f.db.ReserveSlot(ctx, b))

	f.worker.HandleUpdate(ctx, commandUpdate("mybookings"))
	assert.Contains(t, f.api.lastText(t), "Swedish Massage")

	f.worker.HandleUpdate(ctx, callbackUpdate("cancel:"+strconv.FormatInt(b.ID, 10)))
	assert.Contains(t, f.api.lastText(t), "cancelled")

	bookings, err := f.db.ListUserBookings(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestStaleCallbackWithoutMessage(t *testing.T) {
	f := newBotFixture(t)

	// Telegram sends no message for buttons older than 48h; the update
	// must be dropped, not crash the worker.
	update := tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-stale",
			Data: "confirm",
			From: &tgbotapi.User{ID: testUserID, FirstName: "Anna"},
		},
	}
	f.worker.HandleUpdate(context.Background(), update)

	f.api.mu.Lock()
	defer f.api.mu.Unlock()
	assert.Empty(t, f.api.sent)
}

func TestExpiredDialog(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	// No /book first, so there is no session.
	f.worker.HandleUpdate(ctx, callbackUpdate("svc:1"))
	assert.Contains(t, f.api.lastText(t), "expired")
}
