package calendar

import (
	"context"
	"time"
)

// Adapter syncs bookings into an external calendar. Every method may
// fail transiently or permanently; callers treat any failure the same
// way (log and continue), so implementations do not need to distinguish.
type Adapter interface {
	CreateEvent(ctx context.Context, title, description string, start, end time.Time) (string, error)
	UpdateEvent(ctx context.Context, eventID, title, description string, start, end time.Time) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// Noop is used when no calendar integration is configured.
type Noop struct{}

func (Noop) CreateEvent(ctx context.Context, title, description string, start, end time.Time) (string, error) {
	return "", nil
}

func (Noop) UpdateEvent(ctx context.Context, eventID, title, description string, start, end time.Time) error {
	return nil
}

func (Noop) DeleteEvent(ctx context.Context, eventID string) error {
	return nil
}
