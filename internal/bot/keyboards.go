package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"massagebot/internal/models"
)

// Callback data prefixes for the dialog steps.
const (
	cbService = "svc:"
	cbDate    = "date:"
	cbSlot    = "slot:"
	cbConfirm = "confirm"
	cbAbort   = "abort"
	cbCancel  = "cancel:"
)

const callbackDateLayout = "2006-01-02"

func serviceKeyboard(services []models.Service) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range services {
		label := fmt.Sprintf("%s — %s (%d min)", s.Name, s.PriceLabel(), s.DurationMinutes)
		btn := tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbService, s.ID))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{btn})
	}
	rows = append(rows, abortRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// dateKeyboard offers the days that still have free slots, three per row.
func dateKeyboard(days []time.Time) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range days {
		btn := tgbotapi.NewInlineKeyboardButtonData(
			d.Format("Mon Jan 2"),
			cbDate+d.Format(callbackDateLayout),
		)
		row = append(row, btn)
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, abortRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// slotKeyboard offers the free start times of one day, four per row.
func slotKeyboard(slots []models.TimeSlot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range slots {
		btn := tgbotapi.NewInlineKeyboardButtonData(
			s.StartTime.Format("15:04"),
			cbSlot+s.StartTime.Format(time.RFC3339),
		)
		row = append(row, btn)
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, abortRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", cbConfirm),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbAbort),
		),
	)
}

func bookingsKeyboard(bookings []models.Booking) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, b := range bookings {
		label := fmt.Sprintf("❌ Cancel %s on %s", b.ServiceName, b.BookingDateTime.Format("Jan 2 15:04"))
		btn := tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbCancel, b.ID))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{btn})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func abortRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbAbort),
	)
}
