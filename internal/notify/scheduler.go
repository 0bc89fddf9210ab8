// Package notify schedules user-visible alerts for upcoming reminders.
package notify

import (
	"context"

	"github.com/lazypower/tether/internal/reminder"
)

// Scheduler arranges a notification for a reminder with a future due time.
// It returns an opaque handle, or nil when nothing was scheduled.
type Scheduler interface {
	Schedule(ctx context.Context, r reminder.Reminder) (*string, error)
}

// Noop schedules nothing.
type Noop struct{}

func (Noop) Schedule(context.Context, reminder.Reminder) (*string, error) { return nil, nil }
