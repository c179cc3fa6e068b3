package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"massagebot/internal/clock"
	"massagebot/internal/events"
	"massagebot/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) ReserveSlot(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) ReleaseBooking(ctx context.Context, bookingID int64) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MoveBooking(ctx context.Context, bookingID int64, newStart *time.Time, newServiceID *int64, notes *string) error {
	return m.Called(ctx, bookingID, newStart, newServiceID, notes).Error(0)
}

func (m *mockStore) UpdateSideEffects(ctx context.Context, bookingID int64, calendarEventID string, confirmationSent bool) error {
	return m.Called(ctx, bookingID, calendarEventID, confirmationSent).Error(0)
}

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) CreateEvent(ctx context.Context, title, description string, start, end time.Time) (string, error) {
	args := m.Called(ctx, title, description, start, end)
	return args.String(0), args.Error(1)
}

func (m *mockCalendar) UpdateEvent(ctx context.Context, eventID, title, description string, start, end time.Time) error {
	return m.Called(ctx, eventID, title, description, start, end).Error(0)
}

func (m *mockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *mockStore, cal *mockCalendar, notifier *mockNotifier) *Service {
	logger := zerolog.New(io.Discard)
	return NewService(store, cal, notifier, events.NewBus(), clock.NewFixed(testNow), &logger)
}

func testCatalog() (*models.Service, *models.User) {
	svc := &models.Service{
		ID:              1,
		Name:            "Classic Massage",
		PriceCents:      8000,
		DurationMinutes: 60,
		IsActive:        true,
	}
	user := &models.User{
		ID:             10,
		TelegramUserID: 500100,
		FirstName:      "Anna",
		LastName:       "Keller",
		PhoneNumber:    "+15550100",
	}
	return svc, user
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()
	slotTime := testNow.Add(48 * time.Hour)

	t.Run("Success", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)
		notifier := new(mockNotifier)
		svc, user := testCatalog()

		store.On("GetService", ctx, int64(1)).Return(svc, nil)
		store.On("GetUserByID", ctx, int64(10)).Return(user, nil)
		store.On("ReserveSlot", ctx, mock.AnythingOfType("*models.Booking")).
			Run(func(args mock.Arguments) {
				b := args.Get(1).(*models.Booking)
				b.ID = 42
				b.Status = models.StatusConfirmed
			}).Return(nil)
		cal.On("CreateEvent", ctx, "Massage: Classic Massage", mock.Anything, slotTime, slotTime.Add(time.Hour)).
			Return("evt-1", nil)
		notifier.On("Send", ctx, int64(500100), mock.MatchedBy(func(text string) bool {
			return strings.Contains(text, "Classic Massage") && strings.Contains(text, "$80")
		})).Return(nil)
		store.On("UpdateSideEffects", ctx, int64(42), "evt-1", true).Return(nil)

		id, err := newTestService(store, cal, notifier).Allocate(ctx, 10, 1, slotTime, "prefers firm pressure")
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		store.AssertExpectations(t)
		cal.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("SlotUnavailable", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)
		notifier := new(mockNotifier)
		svc, user := testCatalog()

		store.On("GetService", ctx, int64(1)).Return(svc, nil)
		store.On("GetUserByID", ctx, int64(10)).Return(user, nil)
		store.On("ReserveSlot", ctx, mock.Anything).Return(models.ErrSlotUnavailable)

		_, err := newTestService(store, cal, notifier).Allocate(ctx, 10, 1, slotTime, "")
		assert.ErrorIs(t, err, models.ErrSlotUnavailable)

		// No side effects may fire on a failed reservation.
		cal.AssertNotCalled(t, "CreateEvent")
		notifier.AssertNotCalled(t, "Send")
	})

	t.Run("PastDate", func(t *testing.T) {
		store := new(mockStore)
		svc, user := testCatalog()

		store.On("GetService", ctx, int64(1)).Return(svc, nil)
		store.On("GetUserByID", ctx, int64(10)).Return(user, nil)

		_, err := newTestService(store, new(mockCalendar), new(mockNotifier)).
			Allocate(ctx, 10, 1, testNow.Add(-time.Hour), "")
		assert.ErrorIs(t, err, models.ErrPastDate)
		store.AssertNotCalled(t, "ReserveSlot")
	})

	t.Run("ServiceNotFound", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetService", ctx, int64(99)).Return(nil, models.ErrServiceNotFound)

		_, err := newTestService(store, new(mockCalendar), new(mockNotifier)).
			Allocate(ctx, 10, 99, slotTime, "")
		assert.ErrorIs(t, err, models.ErrServiceNotFound)
	})

	t.Run("CalendarFailureDoesNotFailBooking", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)
		notifier := new(mockNotifier)
		svc, user := testCatalog()

		store.On("GetService", ctx, int64(1)).Return(svc, nil)
		store.On("GetUserByID", ctx, int64(10)).Return(user, nil)
		store.On("ReserveSlot", ctx, mock.Anything).
			Run(func(args mock.Arguments) { args.Get(1).(*models.Booking).ID = 7 }).
			Return(nil)
		cal.On("CreateEvent", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("calendar api down"))
		notifier.On("Send", ctx, int64(500100), mock.Anything).Return(nil)
		// Confirmation delivered, no event reference stored.
		store.On("UpdateSideEffects", ctx, int64(7), "", true).Return(nil)

		id, err := newTestService(store, cal, notifier).Allocate(ctx, 10, 1, slotTime, "")
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		store.AssertExpectations(t)
	})

	t.Run("NotificationFailureDoesNotFailBooking", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)
		notifier := new(mockNotifier)
		svc, user := testCatalog()

		store.On("GetService", ctx, int64(1)).Return(svc, nil)
		store.On("GetUserByID", ctx, int64(10)).Return(user, nil)
		store.On("ReserveSlot", ctx, mock.Anything).
			Run(func(args mock.Arguments) { args.Get(1).(*models.Booking).ID = 8 }).
			Return(nil)
		cal.On("CreateEvent", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("evt-2", nil)
		notifier.On("Send", ctx, int64(500100), mock.Anything).Return(errors.New("blocked by user"))
		store.On("UpdateSideEffects", ctx, int64(8), "evt-2", false).Return(nil)

		id, err := newTestService(store, cal, notifier).Allocate(ctx, 10, 1, slotTime, "")
		require.NoError(t, err)
		assert.Equal(t, int64(8), id)
		store.AssertExpectations(t)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	existing := &models.Booking{
		ID:              42,
		UserID:          10,
		Status:          models.StatusConfirmed,
		CalendarEventID: "evt-1",
	}

	t.Run("Success", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)

		store.On("GetBooking", ctx, int64(42)).Return(existing, nil)
		store.On("ReleaseBooking", ctx, int64(42)).Return(true, nil)
		cal.On("DeleteEvent", ctx, "evt-1").Return(nil)

		ok, err := newTestService(store, cal, new(mockNotifier)).Cancel(ctx, 42, nil)
		require.NoError(t, err)
		assert.True(t, ok)
		cal.AssertExpectations(t)
	})

	t.Run("IdempotentSecondCall", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)
		cancelled := &models.Booking{ID: 42, UserID: 10, Status: models.StatusCancelled, CalendarEventID: "evt-1"}

		store.On("GetBooking", ctx, int64(42)).Return(cancelled, nil)
		store.On("ReleaseBooking", ctx, int64(42)).Return(false, nil)

		ok, err := newTestService(store, cal, new(mockNotifier)).Cancel(ctx, 42, nil)
		require.NoError(t, err)
		assert.False(t, ok)
		cal.AssertNotCalled(t, "DeleteEvent")
	})

	t.Run("NotFound", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", ctx, int64(404)).Return(nil, models.ErrBookingNotFound)

		ok, err := newTestService(store, new(mockCalendar), new(mockNotifier)).Cancel(ctx, 404, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NotFoundWrapped", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", ctx, int64(404)).
			Return(nil, fmt.Errorf("get booking: %w", models.ErrBookingNotFound))

		ok, err := newTestService(store, new(mockCalendar), new(mockNotifier)).Cancel(ctx, 404, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NotOwner", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", ctx, int64(42)).Return(existing, nil)

		other := int64(999)
		_, err := newTestService(store, new(mockCalendar), new(mockNotifier)).Cancel(ctx, 42, &other)
		assert.ErrorIs(t, err, models.ErrNotOwner)
		store.AssertNotCalled(t, "ReleaseBooking")
	})

	t.Run("OwnerMayCancel", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)

		store.On("GetBooking", ctx, int64(42)).Return(existing, nil)
		store.On("ReleaseBooking", ctx, int64(42)).Return(true, nil)
		cal.On("DeleteEvent", ctx, "evt-1").Return(nil)

		owner := int64(10)
		ok, err := newTestService(store, cal, new(mockNotifier)).Cancel(ctx, 42, &owner)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	newTime := testNow.Add(72 * time.Hour)

	current := &models.Booking{
		ID:              42,
		UserID:          10,
		ServiceID:       1,
		Status:          models.StatusConfirmed,
		BookingDateTime: testNow.Add(24 * time.Hour),
		CalendarEventID: "evt-1",
	}

	t.Run("Reschedule", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)
		notifier := new(mockNotifier)

		moved := *current
		moved.BookingDateTime = newTime
		moved.ServiceName = "Classic Massage"
		moved.DurationMinutes = 60
		moved.UserChatID = 500100

		store.On("GetBooking", ctx, int64(42)).Return(current, nil).Once()
		store.On("MoveBooking", ctx, int64(42), &newTime, (*int64)(nil), (*string)(nil)).Return(nil)
		store.On("GetBooking", ctx, int64(42)).Return(&moved, nil).Once()
		cal.On("UpdateEvent", ctx, "evt-1", "Massage: Classic Massage", mock.Anything, newTime, newTime.Add(time.Hour)).
			Return(nil)
		notifier.On("Send", ctx, int64(500100), mock.Anything).Return(nil)

		ok, err := newTestService(store, cal, notifier).Update(ctx, 42, &newTime, nil, nil)
		require.NoError(t, err)
		assert.True(t, ok)
		store.AssertExpectations(t)
		cal.AssertExpectations(t)
	})

	t.Run("RescheduleConflict", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)

		store.On("GetBooking", ctx, int64(42)).Return(current, nil)
		store.On("MoveBooking", ctx, int64(42), &newTime, (*int64)(nil), (*string)(nil)).
			Return(models.ErrSlotUnavailable)

		_, err := newTestService(store, cal, new(mockNotifier)).Update(ctx, 42, &newTime, nil, nil)
		assert.ErrorIs(t, err, models.ErrSlotUnavailable)
		cal.AssertNotCalled(t, "UpdateEvent")
	})

	t.Run("PastDate", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", ctx, int64(42)).Return(current, nil)

		past := testNow.Add(-time.Hour)
		_, err := newTestService(store, new(mockCalendar), new(mockNotifier)).Update(ctx, 42, &past, nil, nil)
		assert.ErrorIs(t, err, models.ErrPastDate)
		store.AssertNotCalled(t, "MoveBooking")
	})

	t.Run("NotesOnlySkipsCalendar", func(t *testing.T) {
		store := new(mockStore)
		cal := new(mockCalendar)
		notifier := new(mockNotifier)

		updated := *current
		updated.Notes = "bring oil"
		updated.ServiceName = "Classic Massage"
		updated.DurationMinutes = 60
		updated.UserChatID = 500100

		notes := "bring oil"
		store.On("GetBooking", ctx, int64(42)).Return(current, nil).Once()
		store.On("MoveBooking", ctx, int64(42), (*time.Time)(nil), (*int64)(nil), &notes).Return(nil)
		store.On("GetBooking", ctx, int64(42)).Return(&updated, nil).Once()
		notifier.On("Send", ctx, int64(500100), mock.Anything).Return(nil)

		ok, err := newTestService(store, cal, notifier).Update(ctx, 42, nil, nil, &notes)
		require.NoError(t, err)
		assert.True(t, ok)
		cal.AssertNotCalled(t, "UpdateEvent")
	})

	t.Run("NotFound", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", ctx, int64(404)).Return(nil, models.ErrBookingNotFound)

		ok, err := newTestService(store, new(mockCalendar), new(mockNotifier)).Update(ctx, 404, &newTime, nil, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("NotFoundWrapped", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", ctx, int64(404)).
			Return(nil, fmt.Errorf("get booking: %w", models.ErrBookingNotFound))

		ok, err := newTestService(store, new(mockCalendar), new(mockNotifier)).Update(ctx, 404, &newTime, nil, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
