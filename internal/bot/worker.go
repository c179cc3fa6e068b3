// Package bot runs the Telegram dialog that lets clients browse the
// catalog, book a slot, list their bookings and cancel them.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"massagebot/internal/clock"
	"massagebot/internal/models"
)

// API is the slice of the Telegram client the worker uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Store is the persistence surface the dialog needs.
type Store interface {
	ListActiveServices(ctx context.Context) ([]models.Service, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	ListFreeSlots(ctx context.Context, from, to time.Time) ([]models.TimeSlot, error)
	CreateOrUpdateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	ListUserBookings(ctx context.Context, userID int64) ([]models.Booking, error)
}

// Allocator books and cancels appointments.
type Allocator interface {
	Allocate(ctx context.Context, userID, serviceID int64, requestedTime time.Time, notes string) (int64, error)
	Cancel(ctx context.Context, bookingID int64, requesterID *int64) (bool, error)
}

// Worker consumes Telegram updates and drives the booking dialog.
type Worker struct {
	api       API
	store     Store
	allocator Allocator
	sessions  *SessionStore
	limiter   RateLimiter
	clock     clock.Clock
	logger    *zerolog.Logger
}

func NewWorker(api API, store Store, allocator Allocator, limiter RateLimiter, clk clock.Clock, logger *zerolog.Logger) *Worker {
	if limiter == nil {
		limiter = noopLimiter{}
	}
	return &Worker{
		api:       api,
		store:     store,
		allocator: allocator,
		sessions:  NewSessionStore(30 * time.Minute),
		limiter:   limiter,
		clock:     clk,
		logger:    logger,
	}
}

// Run consumes updates until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := w.api.GetUpdatesChan(updateConfig)

	cleanup := time.NewTicker(10 * time.Minute)
	defer cleanup.Stop()

	w.logger.Info().Msg("bot worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("bot worker stopped")
			return
		case <-cleanup.C:
			if removed := w.sessions.Cleanup(); removed > 0 {
				w.logger.Debug().Int("removed", removed).Msg("expired dialog sessions cleaned up")
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			w.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one update.
func (w *Worker) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		w.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		w.handleCallback(ctx, update.CallbackQuery)
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	allowed, err := w.limiter.Allow(ctx, msg.From.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("user", msg.From.ID).Msg("rate limit check failed")
		allowed = true
	}
	if !allowed {
		w.reply(msg.Chat.ID, "⏳ Too many requests, please slow down.")
		return
	}

	switch msg.Command() {
	case "start":
		w.handleStart(ctx, msg)
	case "services":
		w.handleServices(ctx, msg.Chat.ID)
	case "book":
		w.handleBook(ctx, msg)
	case "mybookings":
		w.handleMyBookings(ctx, msg)
	case "cancel":
		w.sessions.Delete(msg.From.ID)
		w.reply(msg.Chat.ID, "Dialog cancelled. Use /book to start over.")
	case "help":
		w.reply(msg.Chat.ID, helpText)
	default:
		w.reply(msg.Chat.ID, "Unknown command. "+helpText)
	}
}

const helpText = `Available commands:
/book — book an appointment
/mybookings — view and cancel your bookings
/services — browse the service catalog
/cancel — abort the current dialog
/help — this message`

func (w *Worker) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := &models.User{
		TelegramUserID: msg.From.ID,
		Username:       msg.From.UserName,
		FirstName:      msg.From.FirstName,
		LastName:       msg.From.LastName,
	}
	if _, err := w.store.CreateOrUpdateUser(ctx, user); err != nil {
		w.logger.Error().Err(err).Int64("user", msg.From.ID).Msg("failed to register user")
		w.reply(msg.Chat.ID, "Something went wrong, please try again later.")
		return
	}
	w.reply(msg.Chat.ID, fmt.Sprintf("👋 Welcome, %s!\n\n%s", user.DisplayName(), helpText))
}

func (w *Worker) handleServices(ctx context.Context, chatID int64) {
	services, err := w.store.ListActiveServices(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list services")
		w.reply(chatID, "Something went wrong, please try again later.")
		return
	}

	var b strings.Builder
	b.WriteString("💆 Our services:\n\n")
	for _, s := range services {
		fmt.Fprintf(&b, "• %s — %s, %d min\n", s.Name, s.PriceLabel(), s.DurationMinutes)
		if s.Description != "" {
			fmt.Fprintf(&b, "  %s\n", s.Description)
		}
	}
	w.reply(chatID, b.String())
}

func (w *Worker) handleBook(ctx context.Context, msg *tgbotapi.Message) {
	services, err := w.store.ListActiveServices(ctx)
	if err != nil || len(services) == 0 {
		w.reply(msg.Chat.ID, "Booking is unavailable right now, please try again later.")
		return
	}

	w.sessions.Start(msg.From.ID)
	out := tgbotapi.NewMessage(msg.Chat.ID, "Choose a service:")
	out.ReplyMarkup = serviceKeyboard(services)
	w.send(out)
}

func (w *Worker) handleMyBookings(ctx context.Context, msg *tgbotapi.Message) {
	user, err := w.store.GetUserByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, models.ErrUserNotFound) {
		w.reply(msg.Chat.ID, "You have no bookings yet. Use /book to make one.")
		return
	}
	if err != nil {
		w.logger.Error().Err(err).Int64("user", msg.From.ID).Msg("failed to load user")
		w.reply(msg.Chat.ID, "Something went wrong, please try again later.")
		return
	}

	bookings, err := w.store.ListUserBookings(ctx, user.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("user", user.ID).Msg("failed to list bookings")
		w.reply(msg.Chat.ID, "Something went wrong, please try again later.")
		return
	}
	if len(bookings) == 0 {
		w.reply(msg.Chat.ID, "You have no upcoming bookings. Use /book to make one.")
		return
	}

	var b strings.Builder
	b.WriteString("📅 Your upcoming bookings:\n\n")
	for _, bk := range bookings {
		fmt.Fprintf(&b, "• %s — %s (%d min)\n", bk.BookingDateTime.Format("Mon Jan 2 15:04"), bk.ServiceName, bk.DurationMinutes)
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, b.String())
	out.ReplyMarkup = bookingsKeyboard(bookings)
	w.send(out)
}

func (w *Worker) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := w.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			w.logger.Debug().Err(err).Msg("callback ack failed")
		}
	}()

	// Telegram omits the message for stale buttons (older than 48h or
	// otherwise inaccessible); there is nothing to edit then.
	if cb.Message == nil {
		return
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	userID := cb.From.ID

	switch {
	case data == cbAbort:
		w.sessions.Delete(userID)
		w.edit(chatID, cb.Message.MessageID, "❌ Booking cancelled. Use /book to start over.")

	case strings.HasPrefix(data, cbService):
		w.stepService(ctx, cb, strings.TrimPrefix(data, cbService))

	case strings.HasPrefix(data, cbDate):
		w.stepDate(ctx, cb, strings.TrimPrefix(data, cbDate))

	case strings.HasPrefix(data, cbSlot):
		w.stepSlot(cb, strings.TrimPrefix(data, cbSlot))

	case data == cbConfirm:
		w.stepConfirm(ctx, cb)

	case strings.HasPrefix(data, cbCancel):
		w.cancelBooking(ctx, cb, strings.TrimPrefix(data, cbCancel))
	}
}

func (w *Worker) stepService(ctx context.Context, cb *tgbotapi.CallbackQuery, arg string) {
	session := w.sessions.Get(cb.From.ID)
	if session == nil {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "This dialog has expired. Use /book to start over.")
		return
	}

	serviceID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	svc, err := w.store.GetService(ctx, serviceID)
	if err != nil {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "That service is no longer offered. Use /book to start over.")
		return
	}

	session.mu.Lock()
	session.Data.ServiceID = svc.ID
	session.Data.ServiceName = svc.Name
	session.mu.Unlock()
	session.SetState(StateChooseDate)

	days, err := w.availableDays(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to load free days")
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "Something went wrong, please try again later.")
		return
	}
	if len(days) == 0 {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "😔 No free slots in the next days. Please check back later.")
		return
	}

	w.editWithKeyboard(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("Service: %s\n\nChoose a date:", svc.Name), dateKeyboard(days))
}

func (w *Worker) stepDate(ctx context.Context, cb *tgbotapi.CallbackQuery, arg string) {
	session := w.sessions.Get(cb.From.ID)
	if session == nil {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "This dialog has expired. Use /book to start over.")
		return
	}

	day, err := time.ParseInLocation(callbackDateLayout, arg, time.UTC)
	if err != nil {
		return
	}

	slots, err := w.store.ListFreeSlots(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list free slots")
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "Something went wrong, please try again later.")
		return
	}
	if len(slots) == 0 {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "😔 That day just filled up. Use /book to pick another.")
		return
	}

	session.mu.Lock()
	session.Data.Date = day
	name := session.Data.ServiceName
	session.mu.Unlock()
	session.SetState(StateChooseSlot)

	w.editWithKeyboard(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf("Service: %s\nDate: %s\n\nChoose a time:", name, day.Format("Mon Jan 2")),
		slotKeyboard(slots))
}

func (w *Worker) stepSlot(cb *tgbotapi.CallbackQuery, arg string) {
	session := w.sessions.Get(cb.From.ID)
	if session == nil {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "This dialog has expired. Use /book to start over.")
		return
	}

	slotTime, err := time.Parse(time.RFC3339, arg)
	if err != nil {
		return
	}

	session.mu.Lock()
	session.Data.SlotTime = slotTime
	name := session.Data.ServiceName
	session.mu.Unlock()
	session.SetState(StateConfirm)

	summary := fmt.Sprintf("📋 Please confirm your booking:\n\nService: %s\nDate: %s\nTime: %s",
		name, slotTime.Format("Mon Jan 2"), slotTime.Format("15:04"))
	w.editWithKeyboard(cb.Message.Chat.ID, cb.Message.MessageID, summary, confirmKeyboard())
}

func (w *Worker) stepConfirm(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	session := w.sessions.Get(cb.From.ID)
	if session == nil || session.GetState() != StateConfirm {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "This dialog has expired. Use /book to start over.")
		return
	}

	user, err := w.store.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "Please run /start first, then book again.")
		return
	}

	session.mu.Lock()
	data := session.Data
	session.mu.Unlock()

	_, err = w.allocator.Allocate(ctx, user.ID, data.ServiceID, data.SlotTime, "")
	w.sessions.Delete(cb.From.ID)

	switch {
	case errors.Is(err, models.ErrSlotUnavailable):
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID,
			"😔 Sorry, that slot was just taken. Use /book to pick another.")
	case errors.Is(err, models.ErrDuplicateBooking):
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID,
			"You already have this booking. See /mybookings.")
	case err != nil:
		w.logger.Error().Err(err).Int64("user", user.ID).Msg("allocation failed")
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "Something went wrong, please try again later.")
	default:
		// The allocator sends the detailed confirmation message itself.
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "🎉 Your booking is confirmed!")
	}
}

func (w *Worker) cancelBooking(ctx context.Context, cb *tgbotapi.CallbackQuery, arg string) {
	bookingID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}

	user, err := w.store.GetUserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		return
	}

	cancelled, err := w.allocator.Cancel(ctx, bookingID, &user.ID)
	switch {
	case errors.Is(err, models.ErrNotOwner):
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "That booking is not yours to cancel.")
	case err != nil:
		w.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("cancellation failed")
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "Something went wrong, please try again later.")
	case !cancelled:
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "That booking was already cancelled.")
	default:
		w.edit(cb.Message.Chat.ID, cb.Message.MessageID, "✅ Booking cancelled. The slot is free again.")
	}
}

// availableDays returns the upcoming days that still have free slots.
func (w *Worker) availableDays(ctx context.Context) ([]time.Time, error) {
	now := w.clock.Now()
	slots, err := w.store.ListFreeSlots(ctx, now, now.AddDate(0, 0, 8))
	if err != nil {
		return nil, err
	}

	var days []time.Time
	seen := make(map[string]bool)
	for _, s := range slots {
		day := s.StartTime.Truncate(24 * time.Hour)
		key := day.Format(callbackDateLayout)
		if !seen[key] {
			seen[key] = true
			days = append(days, day)
		}
	}
	return days, nil
}

func (w *Worker) reply(chatID int64, text string) {
	w.send(tgbotapi.NewMessage(chatID, text))
}

func (w *Worker) send(c tgbotapi.Chattable) {
	if _, err := w.api.Send(c); err != nil {
		w.logger.Error().Err(err).Msg("telegram send failed")
	}
}

func (w *Worker) edit(chatID int64, messageID int, text string) {
	if _, err := w.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		w.logger.Error().Err(err).Msg("telegram edit failed")
	}
}

func (w *Worker) editWithKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if _, err := w.api.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)); err != nil {
		w.logger.Error().Err(err).Msg("telegram edit failed")
	}
}
