package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"massagebot/internal/models"
)

// GenerateSlots seeds the slot horizon: one slot per slotMinutes between
// openHour and closeHour for each of the next horizonDays days.
// Existing slots are left untouched, so the call is idempotent and safe
// to run nightly.
func (db *DB) GenerateSlots(ctx context.Context, now time.Time, horizonDays, openHour, closeHour, slotMinutes int) (int, error) {
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	step := time.Duration(slotMinutes) * time.Minute

	created := 0
	for day := 1; day <= horizonDays; day++ {
		date := now.AddDate(0, 0, day)
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), openHour, 0, 0, 0, time.UTC)
		dayEnd := time.Date(date.Year(), date.Month(), date.Day(), closeHour, 0, 0, 0, time.UTC)

		for cursor := dayStart; !cursor.Add(step).After(dayEnd); cursor = cursor.Add(step) {
			res, err := db.ExecContext(ctx, `
				INSERT INTO time_slots (start_time, end_time, is_available, is_booked)
				VALUES (?, ?, 1, 0)
				ON CONFLICT(start_time) DO NOTHING`,
				cursor, cursor.Add(step))
			if err != nil {
				return created, fmt.Errorf("insert slot %s: %w", cursor.Format(time.RFC3339), err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				created++
			}
		}
	}

	if created > 0 {
		db.logger.Info().Int("created", created).Int("horizon_days", horizonDays).Msg("slot horizon generated")
	}
	return created, nil
}

// ListFreeSlots returns offered, unoccupied slots within [from, to).
func (db *DB) ListFreeSlots(ctx context.Context, from, to time.Time) ([]models.TimeSlot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, start_time, end_time, is_available, is_booked, booking_id, created_at
		FROM time_slots
		WHERE is_available = 1 AND is_booked = 0 AND start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// FindSlotByStart returns the slot starting exactly at start, regardless
// of occupancy, or models.ErrSlotUnavailable if no such slot is offered.
func (db *DB) FindSlotByStart(ctx context.Context, start time.Time) (*models.TimeSlot, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, is_available, is_booked, booking_id, created_at
		FROM time_slots
		WHERE start_time = ? AND is_available = 1`,
		start)
	s, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrSlotUnavailable
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(r rowScanner) (*models.TimeSlot, error) {
	var s models.TimeSlot
	var bookingID sql.NullInt64
	err := r.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.IsAvailable, &s.IsBooked, &bookingID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		s.BookingID = &bookingID.Int64
	}
	return &s, nil
}
