// Package reminder implements the periodic reminder scheduler. Each
// pass scans for confirmed bookings inside a widened time window, sends
// the reminder, and batch-marks the delivered ones so a booking gets at
// most one reminder of each kind.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"massagebot/internal/clock"
	"massagebot/internal/metrics"
	"massagebot/internal/models"
	"massagebot/internal/notify"
)

// Store is the persistence surface the job needs.
type Store interface {
	ListDueReminders(ctx context.Context, kind models.ReminderKind, from, to time.Time) ([]models.Booking, error)
	MarkRemindersSent(ctx context.Context, kind models.ReminderKind, bookingIDs []int64) error
}

// window is a reminder pass: which flag it drives and how far around
// the nominal lead time it scans. The widened windows overlap between
// consecutive runs so a reminder is never skipped by tick timing; the
// sent flag keeps the overlap from producing duplicates.
type window struct {
	kind  models.ReminderKind
	label string
	from  time.Duration
	to    time.Duration
}

var passes = []window{
	{kind: models.Reminder24h, label: "tomorrow", from: 23 * time.Hour, to: 25 * time.Hour},
	{kind: models.Reminder2h, label: "in 2 hours", from: 90 * time.Minute, to: 150 * time.Minute},
}

// Job scans for due reminders on a fixed interval.
type Job struct {
	store    Store
	notifier notify.Notifier
	clock    clock.Clock
	interval time.Duration
	logger   *zerolog.Logger
}

func NewJob(store Store, notifier notify.Notifier, clk clock.Clock, interval time.Duration, logger *zerolog.Logger) *Job {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Job{
		store:    store,
		notifier: notifier,
		clock:    clk,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the job loop until ctx is cancelled. The first pass runs
// immediately.
func (j *Job) Start(ctx context.Context) {
	j.logger.Info().Dur("interval", j.interval).Msg("reminder job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("reminder job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce executes both reminder passes against the current clock time.
func (j *Job) RunOnce(ctx context.Context) {
	now := j.clock.Now()
	for _, w := range passes {
		if err := j.runPass(ctx, w, now); err != nil {
			j.logger.Error().Err(err).Str("kind", string(w.kind)).Msg("reminder pass failed")
		}
	}
}

func (j *Job) runPass(ctx context.Context, w window, now time.Time) error {
	due, err := j.store.ListDueReminders(ctx, w.kind, now.Add(w.from), now.Add(w.to))
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	// Only delivered reminders are flagged; a failed send stays due and
	// is retried on the next pass.
	sent := make([]int64, 0, len(due))
	for _, b := range due {
		if err := j.send(ctx, w, &b); err != nil {
			j.logger.Error().Err(err).Int64("booking_id", b.ID).
				Str("kind", string(w.kind)).Msg("failed to send reminder")
			continue
		}
		sent = append(sent, b.ID)
		metrics.IncReminderSent(string(w.kind))
	}

	if len(sent) > 0 {
		if err := j.store.MarkRemindersSent(ctx, w.kind, sent); err != nil {
			return fmt.Errorf("mark reminders sent: %w", err)
		}
	}

	j.logger.Info().
		Str("kind", string(w.kind)).
		Int("due", len(due)).
		Int("sent", len(sent)).
		Msg("reminder pass completed")
	return nil
}

func (j *Job) send(ctx context.Context, w window, b *models.Booking) error {
	message := fmt.Sprintf(
		"⏰ Reminder: your massage appointment is %s!\n\nService: %s\nDate: %s\nDuration: %d min",
		w.label,
		b.ServiceName,
		b.BookingDateTime.Format("2006-01-02 15:04"),
		b.DurationMinutes,
	)
	return j.notifier.Send(ctx, b.UserChatID, message)
}
