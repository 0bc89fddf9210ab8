package reconcile

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/lazypower/tether/internal/reminder"
	"github.com/lazypower/tether/internal/store"
)

// ErrEmptyTitle is returned by Create for a blank title.
var ErrEmptyTitle = errors.New("reminder title required")

// List returns the local reminders as currently persisted.
func (e *Engine) List() []reminder.Reminder {
	return e.load()
}

// Get returns the local reminder with the given id.
func (e *Engine) Get(id string) (reminder.Reminder, bool) {
	list := e.List()
	if i := reminder.Index(list, id); i >= 0 {
		return list[i], true
	}
	return reminder.Reminder{}, false
}

// Create stores a new, unsynced reminder locally. It reaches the remote on
// the next Sync.
func (e *Engine) Create(title, date, clock string) (reminder.Reminder, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return reminder.Reminder{}, ErrEmptyTitle
	}
	r := reminder.Reminder{
		ID:    uuid.NewString(),
		Title: title,
		Date:  strings.TrimSpace(date),
		Time:  strings.TrimSpace(clock),
	}
	if e.UserID != "" {
		uid := e.UserID
		r.UserID = &uid
	}

	e.update(func(list []reminder.Reminder) []reminder.Reminder {
		return append(list, r)
	})
	return r, nil
}

// load reads the tasks key. Malformed data reads as an empty list.
func (e *Engine) load() []reminder.Reminder {
	var list []reminder.Reminder
	if _, err := store.LoadJSON(e.KV, store.KeyTasks, &list); err != nil {
		e.Log.Warn("stored reminders unreadable, treating as empty", "error", err)
		return nil
	}
	return list
}

// update re-reads the persisted list, applies fn and writes the result in
// one store transaction.
func (e *Engine) update(fn func([]reminder.Reminder) []reminder.Reminder) {
	err := store.UpdateJSON(e.KV, store.KeyTasks, func(list *[]reminder.Reminder, _ bool) bool {
		*list = fn(*list)
		if *list == nil {
			*list = []reminder.Reminder{}
		}
		return true
	})
	if err != nil {
		e.Log.Warn("reminders update", "error", err)
	}
}
