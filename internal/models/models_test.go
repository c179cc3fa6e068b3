package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingIsActive(t *testing.T) {
	cases := map[string]bool{
		StatusPending:   true,
		StatusConfirmed: true,
		StatusCancelled: false,
		StatusCompleted: false,
	}
	for status, want := range cases {
		b := Booking{Status: status}
		assert.Equal(t, want, b.IsActive(), status)
	}
}

func TestBookingEndTime(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	b := Booking{BookingDateTime: start, DurationMinutes: 90}
	assert.Equal(t, start.Add(90*time.Minute), b.EndTime())
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.True(t, ValidStatus(StatusCompleted))
	assert.False(t, ValidStatus("unknown"))
	assert.False(t, ValidStatus(""))
}

func TestClipNotes(t *testing.T) {
	assert.Equal(t, "short", ClipNotes("short"))
	assert.Empty(t, ClipNotes(""))

	long := strings.Repeat("я", MaxNotesLen+100)
	clipped := ClipNotes(long)
	assert.Equal(t, MaxNotesLen, len([]rune(clipped)))
}

func TestServicePriceLabel(t *testing.T) {
	assert.Equal(t, "$80", (&Service{PriceCents: 8000}).PriceLabel())
	assert.Equal(t, "$120", (&Service{PriceCents: 12000}).PriceLabel())
	assert.Equal(t, "$99.50", (&Service{PriceCents: 9950}).PriceLabel())
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Anna Keller", (&User{FirstName: "Anna", LastName: "Keller"}).DisplayName())
	assert.Equal(t, "Anna", (&User{FirstName: "Anna"}).DisplayName())
	assert.Equal(t, "@akeller", (&User{Username: "akeller"}).DisplayName())
	assert.Equal(t, "user 42", (&User{TelegramUserID: 42}).DisplayName())
}
