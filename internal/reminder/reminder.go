// Package reminder defines the reminder record and the merge that
// reconciles a local list with a remote one.
package reminder

import (
	"strings"
	"time"
)

// Reminder is a single user reminder as held on-device.
type Reminder struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Time           string     `json:"time"` // local clock, e.g. "14:30" or "2:30 PM"
	Date           string     `json:"date"` // calendar date, "2006-01-02"
	Completed      bool       `json:"completed"`
	NotificationID *string    `json:"notificationId"` // owned by the notification scheduler
	UserID         *string    `json:"userId"`
	SyncedAt       *time.Time `json:"syncedAt"` // set only by the remote side

	// Synced is local bookkeeping: true once a remote copy has been accepted.
	Synced bool `json:"synced"`
}

const dateLayout = "2006-01-02"

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm"}

// DueAt combines Date and Time in loc. ok is false if either does not parse.
func (r Reminder) DueAt(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(r.Date), loc)
	if err != nil {
		return time.Time{}, false
	}
	clock := strings.TrimSpace(r.Time)
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation(layout, clock, loc)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
	}
	return time.Time{}, false
}

// Upcoming reports whether r is not completed and due strictly after now.
func (r Reminder) Upcoming(now time.Time) bool {
	if r.Completed {
		return false
	}
	due, ok := r.DueAt(now.Location())
	return ok && due.After(now)
}

// Index returns the position of the reminder with the given id, or -1.
func Index(list []Reminder, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
