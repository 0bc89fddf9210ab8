// Package reconcile keeps the on-device reminder list consistent with the
// remote service.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lazypower/tether/internal/notify"
	"github.com/lazypower/tether/internal/reminder"
	"github.com/lazypower/tether/internal/store"
)

// Remote is the slice of the remote reminder service the engine needs.
type Remote interface {
	FetchReminders(ctx context.Context) ([]reminder.Reminder, error)
	UpsertReminders(ctx context.Context, list []reminder.Reminder) error
	UpdateStatus(ctx context.Context, id string, completed bool) (*time.Time, error)
	DeleteReminder(ctx context.Context, id string) error
}

// Engine merges local and remote reminders and pushes the result back.
type Engine struct {
	KV        store.KV
	Remote    Remote
	Scheduler notify.Scheduler
	UserID    string // attributed to reminders created locally
	Log       *slog.Logger
	Now       func() time.Time
}

// New creates an Engine. A nil scheduler schedules nothing.
func New(kv store.KV, remote Remote, scheduler notify.Scheduler, logger *slog.Logger) *Engine {
	if scheduler == nil {
		scheduler = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		KV:        kv,
		Remote:    remote,
		Scheduler: scheduler,
		Log:       logger,
		Now:       time.Now,
	}
}

// Sync fetches the remote list, merges it into the local one, stores the
// result and pushes it back. On a fetch or push failure it returns a nil list
// and the error; a failed push does not undo the local write. Notification
// scheduling is best effort.
func (e *Engine) Sync(ctx context.Context) ([]reminder.Reminder, error) {
	remote, err := e.Remote.FetchReminders(ctx)
	if err != nil {
		e.Log.Warn("sync: fetch remote reminders failed", "error", err)
		return nil, fmt.Errorf("sync: %w", err)
	}

	var merged []reminder.Reminder
	e.update(func(local []reminder.Reminder) []reminder.Reminder {
		merged = reminder.Merge(local, remote)
		return merged
	})

	if err := e.Remote.UpsertReminders(ctx, merged); err != nil {
		e.Log.Warn("sync: push merged reminders failed", "count", len(merged), "error", err)
		return nil, fmt.Errorf("sync: %w", err)
	}

	handles := e.schedule(ctx, merged)
	if len(handles) > 0 {
		for i := range merged {
			if h, ok := handles[merged[i].ID]; ok {
				merged[i].NotificationID = &h
			}
		}
		e.update(func(list []reminder.Reminder) []reminder.Reminder {
			for i := range list {
				if h, ok := handles[list[i].ID]; ok {
					list[i].NotificationID = &h
				}
			}
			return list
		})
	}

	e.Log.Info("sync complete", "reminders", len(merged), "scheduled", len(handles))
	return merged, nil
}

func (e *Engine) schedule(ctx context.Context, list []reminder.Reminder) map[string]string {
	now := e.Now()
	handles := make(map[string]string)
	for _, r := range list {
		if !r.Upcoming(now) {
			continue
		}
		h, err := e.Scheduler.Schedule(ctx, r)
		if err != nil {
			e.Log.Warn("sync: schedule notification failed", "id", r.ID, "error", err)
			continue
		}
		if h != nil {
			handles[r.ID] = *h
		}
	}
	return handles
}

// SyncReminderStatus sets the completion flag remotely and, only once the
// remote accepted it, on the local copy. A remote failure leaves the local
// store untouched.
func (e *Engine) SyncReminderStatus(ctx context.Context, id string, completed bool) error {
	stamp, err := e.Remote.UpdateStatus(ctx, id, completed)
	if err != nil {
		e.Log.Warn("status update rejected, local copy unchanged", "id", id, "error", err)
		return fmt.Errorf("sync status %s: %w", id, err)
	}
	if stamp == nil {
		now := e.Now()
		stamp = &now
	}

	e.update(func(list []reminder.Reminder) []reminder.Reminder {
		if i := reminder.Index(list, id); i >= 0 {
			list[i].Completed = completed
			list[i].SyncedAt = stamp
			list[i].Synced = true
		}
		return list
	})
	return nil
}

// SyncDeleteReminder deletes remotely first and locally only on success.
func (e *Engine) SyncDeleteReminder(ctx context.Context, id string) error {
	if err := e.Remote.DeleteReminder(ctx, id); err != nil {
		e.Log.Warn("remote delete failed, local copy kept", "id", id, "error", err)
		return fmt.Errorf("sync delete %s: %w", id, err)
	}

	e.update(func(list []reminder.Reminder) []reminder.Reminder {
		if i := reminder.Index(list, id); i >= 0 {
			list = append(list[:i], list[i+1:]...)
		}
		return list
	})
	return nil
}
