package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleConfig holds service-account settings for the Calendar API.
type GoogleConfig struct {
	ServiceAccountKeyPath string
	CalendarID            string
	TimeZone              string
}

// Google is a Calendar API adapter authenticated with a service account.
type Google struct {
	service    *gcal.Service
	calendarID string
	timeZone   string
	logger     *zerolog.Logger
}

// NewGoogle builds the adapter from a service-account key file.
func NewGoogle(ctx context.Context, cfg GoogleConfig, logger *zerolog.Logger) (*Google, error) {
	if cfg.ServiceAccountKeyPath == "" {
		return nil, fmt.Errorf("service account key path is not configured")
	}

	key, err := os.ReadFile(cfg.ServiceAccountKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(key, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	service, err := gcal.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}

	logger.Info().Str("calendar_id", cfg.CalendarID).Msg("google calendar adapter initialized")
	return &Google{
		service:    service,
		calendarID: cfg.CalendarID,
		timeZone:   cfg.TimeZone,
		logger:     logger,
	}, nil
}

// CreateEvent inserts an event and returns its id.
func (g *Google) CreateEvent(ctx context.Context, title, description string, start, end time.Time) (string, error) {
	event := &gcal.Event{
		Summary:     title,
		Description: description,
		Start:       g.eventTime(start),
		End:         g.eventTime(end),
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 120},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := g.service.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}

	g.logger.Info().Str("event_id", created.Id).Str("title", title).Time("start", start).Msg("calendar event created")
	return created.Id, nil
}

// UpdateEvent rewrites an existing event's title, body and interval.
func (g *Google) UpdateEvent(ctx context.Context, eventID, title, description string, start, end time.Time) error {
	existing, err := g.service.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get event %s: %w", eventID, err)
	}

	existing.Summary = title
	existing.Description = description
	existing.Start = g.eventTime(start)
	existing.End = g.eventTime(end)

	if _, err := g.service.Events.Update(g.calendarID, eventID, existing).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}

	g.logger.Info().Str("event_id", eventID).Time("start", start).Msg("calendar event updated")
	return nil
}

// DeleteEvent removes an event.
func (g *Google) DeleteEvent(ctx context.Context, eventID string) error {
	if err := g.service.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}

	g.logger.Info().Str("event_id", eventID).Msg("calendar event deleted")
	return nil
}

func (g *Google) eventTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: g.timeZone,
	}
}
