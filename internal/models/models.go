package models

import (
	"fmt"
	"time"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// MaxNotesLen bounds the free-form notes field on a booking.
const MaxNotesLen = 500

// Booking represents a client's reservation of a time slot.
type Booking struct {
	ID               int64     `json:"id"`
	Reference        string    `json:"reference"`
	UserID           int64     `json:"user_id"`
	ServiceID        int64     `json:"service_id"`
	BookingDateTime  time.Time `json:"booking_datetime"`
	Status           string    `json:"status"`
	CalendarEventID  string    `json:"calendar_event_id,omitempty"`
	ConfirmationSent bool      `json:"confirmation_sent"`
	Reminder24hSent  bool      `json:"reminder_24h_sent"`
	Reminder2hSent   bool      `json:"reminder_2h_sent"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Denormalized for listings and messages; filled by JOIN queries.
	UserName        string `json:"user_name,omitempty"`
	UserChatID      int64  `json:"-"`
	UserPhone       string `json:"-"`
	ServiceName     string `json:"service_name,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	PriceCents      int64  `json:"price_cents,omitempty"`
}

// IsActive reports whether the booking still holds its slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// EndTime returns the end of the appointment interval [start, end).
func (b *Booking) EndTime() time.Time {
	return b.BookingDateTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// ClipNotes truncates notes to MaxNotesLen runes.
func ClipNotes(notes string) string {
	r := []rune(notes)
	if len(r) <= MaxNotesLen {
		return notes
	}
	return string(r[:MaxNotesLen])
}

// ReminderKind distinguishes the two reminder passes.
type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder2h  ReminderKind = "2h"
)

// TimeSlot is a bookable interval [StartTime, EndTime).
// IsAvailable means the business offers the interval at all;
// IsBooked means a booking currently holds it.
type TimeSlot struct {
	ID          int64     `json:"id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	IsBooked    bool      `json:"is_booked"`
	BookingID   *int64    `json:"booking_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service is a bookable offering from the catalog.
type Service struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}

// PriceLabel renders the price for user-facing messages.
func (s *Service) PriceLabel() string {
	if s.PriceCents%100 == 0 {
		return fmt.Sprintf("$%d", s.PriceCents/100)
	}
	return fmt.Sprintf("$%d.%02d", s.PriceCents/100, s.PriceCents%100)
}

// User is a client identified by their Telegram account.
type User struct {
	ID             int64     `json:"id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	Username       string    `json:"username,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DisplayName returns the best human-readable name for the user.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return fmt.Sprintf("user %d", u.TelegramUserID)
	}
}
