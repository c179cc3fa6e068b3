// Package booking implements the allocation and lifecycle engine:
// reserving a slot, driving best-effort side effects, cancellation and
// rescheduling.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"massagebot/internal/calendar"
	"massagebot/internal/clock"
	"massagebot/internal/events"
	"massagebot/internal/metrics"
	"massagebot/internal/models"
	"massagebot/internal/notify"
)

// Store is the persistence surface the allocator needs. The transactional
// methods (ReserveSlot, ReleaseBooking, MoveBooking) own their own
// transaction boundaries; everything before them can abort the request,
// everything after them is best-effort.
type Store interface {
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ReserveSlot(ctx context.Context, b *models.Booking) error
	ReleaseBooking(ctx context.Context, bookingID int64) (bool, error)
	MoveBooking(ctx context.Context, bookingID int64, newStart *time.Time, newServiceID *int64, notes *string) error
	UpdateSideEffects(ctx context.Context, bookingID int64, calendarEventID string, confirmationSent bool) error
}

// Service is the booking allocator.
type Service struct {
	store    Store
	calendar calendar.Adapter
	notifier notify.Notifier
	bus      *events.Bus
	clock    clock.Clock
	logger   *zerolog.Logger
}

func NewService(store Store, cal calendar.Adapter, notifier notify.Notifier, bus *events.Bus, clk clock.Clock, logger *zerolog.Logger) *Service {
	return &Service{
		store:    store,
		calendar: cal,
		notifier: notifier,
		bus:      bus,
		clock:    clk,
		logger:   logger,
	}
}

// Allocate reserves the slot at requestedTime for the user and service,
// creates a confirmed booking, and runs the post-commit side effects
// (calendar event, confirmation message). Side effect failures never
// fail the call; the booking id is returned as soon as the reservation
// is committed.
func (s *Service) Allocate(ctx context.Context, userID, serviceID int64, requestedTime time.Time, notes string) (int64, error) {
	requestedTime = requestedTime.UTC()

	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		metrics.IncAllocationRejected("service_not_found")
		return 0, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		metrics.IncAllocationRejected("user_not_found")
		return 0, err
	}
	if !requestedTime.After(s.clock.Now()) {
		metrics.IncAllocationRejected("past_date")
		return 0, models.ErrPastDate
	}

	b := &models.Booking{
		Reference:       uuid.NewString(),
		UserID:          userID,
		ServiceID:       serviceID,
		BookingDateTime: requestedTime,
		Notes:           models.ClipNotes(notes),
	}
	if err := s.store.ReserveSlot(ctx, b); err != nil {
		switch {
		case errors.Is(err, models.ErrSlotUnavailable):
			metrics.IncAllocationRejected("slot_unavailable")
		case errors.Is(err, models.ErrDuplicateBooking):
			metrics.IncAllocationRejected("duplicate")
		}
		return 0, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("user_id", userID).
		Str("service", svc.Name).
		Time("at", requestedTime).
		Msg("booking allocated")
	metrics.IncBookingCreated()
	s.bus.Publish(events.Event{Type: events.BookingCreated, BookingID: b.ID, UserID: userID, Detail: svc.Name})

	// The reservation is committed; everything below is best-effort.
	eventID := s.createCalendarEvent(ctx, b, svc, user)
	confirmed := s.sendConfirmation(ctx, b, svc, user)

	if eventID != "" || confirmed {
		if err := s.store.UpdateSideEffects(ctx, b.ID, eventID, confirmed); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to persist side effect results")
		}
	}

	return b.ID, nil
}

func (s *Service) createCalendarEvent(ctx context.Context, b *models.Booking, svc *models.Service, user *models.User) string {
	title := "Massage: " + svc.Name
	description := fmt.Sprintf("Client: %s\nPhone: %s", user.DisplayName(), user.PhoneNumber)
	end := b.BookingDateTime.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	eventID, err := s.calendar.CreateEvent(ctx, title, description, b.BookingDateTime, end)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to create calendar event")
		metrics.IncSideEffectFailure("calendar")
		return ""
	}
	return eventID
}

func (s *Service) sendConfirmation(ctx context.Context, b *models.Booking, svc *models.Service, user *models.User) bool {
	message := fmt.Sprintf(
		"✅ Booking confirmed!\n\nService: %s\nDate: %s\nDuration: %d min\nPrice: %s",
		svc.Name,
		b.BookingDateTime.Format("2006-01-02 15:04"),
		svc.DurationMinutes,
		svc.PriceLabel(),
	)
	if err := s.notifier.Send(ctx, user.TelegramUserID, message); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to send confirmation")
		metrics.IncSideEffectFailure("notification")
		return false
	}
	return true
}

// Cancel cancels a booking and frees its slot. When requesterID is
// non-nil the booking must belong to that user (end-user surfaces pass
// it; the admin surface omits it). Returns false when the booking does
// not exist or is already cancelled/completed; the second call on the
// same booking is a no-op. Calendar deletion is best-effort: the local
// state change is authoritative.
func (s *Service) Cancel(ctx context.Context, bookingID int64, requesterID *int64) (bool, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, models.ErrBookingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if requesterID != nil && b.UserID != *requesterID {
		return false, models.ErrNotOwner
	}

	released, err := s.store.ReleaseBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if !released {
		return false, nil
	}

	s.logger.Info().Int64("booking_id", bookingID).Msg("booking cancelled")
	metrics.IncBookingCancelled()
	s.bus.Publish(events.Event{Type: events.BookingCancelled, BookingID: bookingID, UserID: b.UserID})

	if b.CalendarEventID != "" {
		if err := s.calendar.DeleteEvent(ctx, b.CalendarEventID); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", bookingID).
				Str("event_id", b.CalendarEventID).Msg("failed to delete calendar event")
			metrics.IncSideEffectFailure("calendar")
		}
	}

	return true, nil
}

// Update applies a partial change to a booking: only provided fields
// change. A new date/time goes through the same slot-locking transaction
// as Allocate, so rescheduling cannot create a conflict; the old slot is
// freed and the new one claimed atomically. Calendar update and the
// change notification are best-effort.
func (s *Service) Update(ctx context.Context, bookingID int64, newTime *time.Time, newServiceID *int64, newNotes *string) (bool, error) {
	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			return false, nil
		}
		return false, err
	}

	if newServiceID != nil {
		if _, err := s.store.GetService(ctx, *newServiceID); err != nil {
			return false, err
		}
	}
	if newTime != nil {
		t := newTime.UTC()
		if !t.After(s.clock.Now()) {
			return false, models.ErrPastDate
		}
		newTime = &t
	}

	if err := s.store.MoveBooking(ctx, bookingID, newTime, newServiceID, newNotes); err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			return false, nil
		}
		return false, err
	}

	updated, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}

	s.logger.Info().Int64("booking_id", bookingID).Msg("booking updated")
	metrics.IncBookingUpdated()
	s.bus.Publish(events.Event{Type: events.BookingUpdated, BookingID: bookingID, UserID: updated.UserID})

	timeOrServiceChanged := newTime != nil || newServiceID != nil
	if timeOrServiceChanged && updated.CalendarEventID != "" {
		title := "Massage: " + updated.ServiceName
		description := fmt.Sprintf("Client: %s\nPhone: %s", updated.UserName, updated.UserPhone)
		if err := s.calendar.UpdateEvent(ctx, updated.CalendarEventID, title, description,
			updated.BookingDateTime, updated.EndTime()); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to update calendar event")
			metrics.IncSideEffectFailure("calendar")
		}
	}

	message := fmt.Sprintf(
		"📅 Booking updated!\n\nService: %s\nNew Date: %s\nDuration: %d min",
		updated.ServiceName,
		updated.BookingDateTime.Format("2006-01-02 15:04"),
		updated.DurationMinutes,
	)
	if err := s.notifier.Send(ctx, updated.UserChatID, message); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to send update notification")
		metrics.IncSideEffectFailure("notification")
	}

	return true, nil
}
