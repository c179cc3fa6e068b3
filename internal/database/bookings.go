package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"massagebot/internal/models"
)

// ReserveSlot atomically reserves the slot matching b.BookingDateTime and
// inserts the booking row. The whole operation runs in one IMMEDIATE
// transaction: among concurrent calls for the same slot at most one wins;
// the rest get models.ErrSlotUnavailable. A non-cancelled booking with
// the same (user, service, time) triple yields models.ErrDuplicateBooking.
// On success b.ID, b.CreatedAt and b.UpdatedAt are populated.
func (db *DB) ReserveSlot(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback()

	// Double-submission guard (e.g. a double-tapped confirm button).
	var dup int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE user_id = ? AND service_id = ? AND booking_datetime = ? AND status != ?`,
		b.UserID, b.ServiceID, b.BookingDateTime, models.StatusCancelled,
	).Scan(&dup)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if dup > 0 {
		return models.ErrDuplicateBooking
	}

	var slotID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM time_slots
		WHERE start_time = ? AND is_available = 1 AND is_booked = 0`,
		b.BookingDateTime,
	).Scan(&slotID)
	if err == sql.ErrNoRows {
		return models.ErrSlotUnavailable
	}
	if err != nil {
		return fmt.Errorf("select slot: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (reference, user_id, service_id, booking_datetime, status,
			confirmation_sent, reminder_24h_sent, reminder_2h_sent, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?)`,
		b.Reference, b.UserID, b.ServiceID, b.BookingDateTime, models.StatusConfirmed,
		b.Notes, now, now)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	bookingID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}

	// Guarded occupation: the is_booked = 0 predicate makes a lost race
	// observable as zero affected rows instead of a double booking.
	res, err = tx.ExecContext(ctx, `
		UPDATE time_slots SET is_booked = 1, booking_id = ?
		WHERE id = ? AND is_booked = 0`,
		bookingID, slotID)
	if err != nil {
		return fmt.Errorf("occupy slot: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return models.ErrSlotUnavailable
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve tx: %w", err)
	}

	b.ID = bookingID
	b.Status = models.StatusConfirmed
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// ReleaseBooking cancels the booking and frees its slot in one
// transaction. A missing or already cancelled/completed booking is a
// no-op, reported via the bool.
func (db *DB) ReleaseBooking(ctx context.Context, bookingID int64) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin release tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		models.StatusCancelled, time.Now().UTC(), bookingID,
		models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Missing or already cancelled/completed; either way the slot
		// must not be touched.
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE time_slots SET is_booked = 0, booking_id = NULL
		WHERE booking_id = ?`,
		bookingID); err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit release tx: %w", err)
	}
	return true, nil
}

// MoveBooking applies a partial update to a booking. When newStart is
// set and differs from the current time, the old slot is freed and the
// new one is claimed with the same guarded update as ReserveSlot, all in
// one transaction; a conflict rolls everything back with
// models.ErrSlotUnavailable.
func (db *DB) MoveBooking(ctx context.Context, bookingID int64, newStart *time.Time, newServiceID *int64, notes *string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move tx: %w", err)
	}
	defer tx.Rollback()

	var current time.Time
	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT booking_datetime, status FROM bookings WHERE id = ?", bookingID,
	).Scan(&current, &status)
	if err == sql.ErrNoRows {
		return models.ErrBookingNotFound
	}
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}

	if newStart != nil && !newStart.Equal(current) {
		if !isActiveStatus(status) {
			return models.ErrBookingNotFound
		}

		var slotID int64
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM time_slots
			WHERE start_time = ? AND is_available = 1 AND is_booked = 0`,
			*newStart,
		).Scan(&slotID)
		if err == sql.ErrNoRows {
			return models.ErrSlotUnavailable
		}
		if err != nil {
			return fmt.Errorf("select new slot: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE time_slots SET is_booked = 0, booking_id = NULL
			WHERE booking_id = ?`, bookingID); err != nil {
			return fmt.Errorf("free old slot: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE time_slots SET is_booked = 1, booking_id = ?
			WHERE id = ? AND is_booked = 0`,
			bookingID, slotID)
		if err != nil {
			return fmt.Errorf("occupy new slot: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return models.ErrSlotUnavailable
		}
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if newStart != nil {
		sets = append(sets, "booking_datetime = ?")
		args = append(args, *newStart)
	}
	if newServiceID != nil {
		sets = append(sets, "service_id = ?")
		args = append(args, *newServiceID)
	}
	if notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, models.ClipNotes(*notes))
	}
	args = append(args, bookingID)

	if _, err := tx.ExecContext(ctx,
		"UPDATE bookings SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move tx: %w", err)
	}
	return nil
}

func isActiveStatus(status string) bool {
	return status == models.StatusPending || status == models.StatusConfirmed
}

// UpdateSideEffects persists the post-commit enrichment of a booking:
// the calendar event reference (if any) and the confirmation flag.
// The confirmation flag is monotonic; it is never reset here.
func (db *DB) UpdateSideEffects(ctx context.Context, bookingID int64, calendarEventID string, confirmationSent bool) error {
	_, err := db.ExecContext(ctx, `
		UPDATE bookings SET
			calendar_event_id = CASE WHEN ? != '' THEN ? ELSE calendar_event_id END,
			confirmation_sent = CASE WHEN ? THEN 1 ELSE confirmation_sent END,
			updated_at = ?
		WHERE id = ?`,
		calendarEventID, calendarEventID, confirmationSent, time.Now().UTC(), bookingID)
	return err
}

const bookingColumns = `
	b.id, b.reference, b.user_id, b.service_id, b.booking_datetime, b.status,
	b.calendar_event_id, b.confirmation_sent, b.reminder_24h_sent, b.reminder_2h_sent,
	b.notes, b.created_at, b.updated_at,
	TRIM(COALESCE(u.first_name, '') || ' ' || COALESCE(u.last_name, '')), u.telegram_user_id, COALESCE(u.phone, ''),
	s.name, s.duration_minutes, s.price_cents`

const bookingJoins = `
	FROM bookings b
	JOIN users u ON u.id = b.user_id
	JOIN services s ON s.id = b.service_id`

// GetBooking returns a booking with user and service details joined in.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, "SELECT"+bookingColumns+bookingJoins+" WHERE b.id = ?", id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookingByReference looks a booking up by its public reference code.
func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, "SELECT"+bookingColumns+bookingJoins+" WHERE b.reference = ?", reference)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookings returns bookings within [from, to) ordered by time,
// optionally filtered by status.
func (db *DB) ListBookings(ctx context.Context, from, to time.Time, status string) ([]models.Booking, error) {
	query := "SELECT" + bookingColumns + bookingJoins +
		" WHERE b.booking_datetime >= ? AND b.booking_datetime < ?"
	args := []any{from, to}
	if status != "" {
		query += " AND b.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY b.booking_datetime"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListUserBookings returns a user's active bookings ordered by time.
func (db *DB) ListUserBookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, "SELECT"+bookingColumns+bookingJoins+`
		WHERE b.user_id = ? AND b.status IN (?, ?)
		ORDER BY b.booking_datetime`,
		userID, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListDueReminders returns confirmed bookings whose reminder of the given
// kind has not been sent and whose start falls inside [from, to].
func (db *DB) ListDueReminders(ctx context.Context, kind models.ReminderKind, from, to time.Time) ([]models.Booking, error) {
	col, err := reminderColumn(kind)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT"+bookingColumns+bookingJoins+`
		WHERE b.`+col+` = 0 AND b.status = ?
		AND b.booking_datetime >= ? AND b.booking_datetime <= ?
		ORDER BY b.booking_datetime`,
		models.StatusConfirmed, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// MarkRemindersSent flips the reminder flag of the given kind for all ids
// in one batch write. Flags only go false -> true.
func (db *DB) MarkRemindersSent(ctx context.Context, kind models.ReminderKind, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := reminderColumn(kind)
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err = db.ExecContext(ctx,
		"UPDATE bookings SET "+col+" = 1, updated_at = ? WHERE id IN ("+placeholders+")",
		args...)
	return err
}

func reminderColumn(kind models.ReminderKind) (string, error) {
	switch kind {
	case models.Reminder24h:
		return "reminder_24h_sent", nil
	case models.Reminder2h:
		return "reminder_2h_sent", nil
	default:
		return "", fmt.Errorf("unknown reminder kind %q", kind)
	}
}

func scanBooking(r rowScanner) (*models.Booking, error) {
	var b models.Booking
	var eventID, notes sql.NullString
	err := r.Scan(
		&b.ID, &b.Reference, &b.UserID, &b.ServiceID, &b.BookingDateTime, &b.Status,
		&eventID, &b.ConfirmationSent, &b.Reminder24hSent, &b.Reminder2hSent,
		&notes, &b.CreatedAt, &b.UpdatedAt,
		&b.UserName, &b.UserChatID, &b.UserPhone,
		&b.ServiceName, &b.DurationMinutes, &b.PriceCents,
	)
	if err != nil {
		return nil, err
	}
	b.CalendarEventID = eventID.String
	b.Notes = notes.String
	b.UserName = strings.TrimSpace(b.UserName)
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
