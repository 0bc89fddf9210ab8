package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/lazypower/tether/internal/config"
	"github.com/lazypower/tether/internal/reminder"
)

const (
	eventDuration = 15 * time.Minute
	idProperty    = "tether_id"
)

// CalendarScheduler turns reminders into Google Calendar events with a popup
// alert at the due time. The event id is the notification handle.
type CalendarScheduler struct {
	srv        *calendar.Service
	calendarID string
	loc        *time.Location
}

// NewCalendarScheduler authenticates with the credentials file named in cfg.
func NewCalendarScheduler(ctx context.Context, cfg config.CalendarConfig) (*CalendarScheduler, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials %s: %w", cfg.CredentialsFile, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return NewCalendarSchedulerWithService(srv, cfg.CalendarID, time.Local), nil
}

// NewCalendarSchedulerWithService wraps an existing calendar service.
func NewCalendarSchedulerWithService(srv *calendar.Service, calendarID string, loc *time.Location) *CalendarScheduler {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	return &CalendarScheduler{srv: srv, calendarID: calendarID, loc: loc}
}

// Schedule creates the event, or patches it when r already carries a handle.
func (c *CalendarScheduler) Schedule(ctx context.Context, r reminder.Reminder) (*string, error) {
	due, ok := r.DueAt(c.loc)
	if !ok {
		return nil, nil
	}

	event := &calendar.Event{
		Summary: r.Title,
		Start:   &calendar.EventDateTime{DateTime: due.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: due.Add(eventDuration).Format(time.RFC3339)},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       []*calendar.EventReminder{{Method: "popup", Minutes: 0, ForceSendFields: []string{"Minutes"}}},
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{idProperty: r.ID},
		},
	}

	var (
		saved *calendar.Event
		err   error
	)
	if r.NotificationID != nil && *r.NotificationID != "" {
		saved, err = c.srv.Events.Patch(c.calendarID, *r.NotificationID, event).Context(ctx).Do()
	} else {
		saved, err = c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	}
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", r.ID, err)
	}
	id := saved.Id
	return &id, nil
}
