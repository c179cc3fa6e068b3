package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"massagebot/internal/models"
)

func TestBookingsReport(t *testing.T) {
	bookings := []models.Booking{
		{
			ID:              1,
			Reference:       "ref-1",
			UserName:        "Anna Keller",
			UserPhone:       "+15550100",
			ServiceName:     "Swedish Massage",
			BookingDateTime: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			DurationMinutes: 60,
			PriceCents:      8000,
			Status:          models.StatusConfirmed,
		},
		{
			ID:              2,
			Reference:       "ref-2",
			UserName:        "Ben Ortiz",
			ServiceName:     "Hot Stone Massage",
			BookingDateTime: time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
			DurationMinutes: 90,
			PriceCents:      12000,
			Status:          models.StatusCancelled,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, BookingsReport(&buf, bookings))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Reference", rows[0][1])
	assert.Equal(t, "Anna Keller", rows[1][2])
	assert.Equal(t, "Swedish Massage", rows[1][4])
	assert.Equal(t, "$80.00", rows[1][7])
	assert.Equal(t, "cancelled", rows[2][8])
}

func TestBookingsReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BookingsReport(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
