package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/lazypower/tether/internal/reminder"
)

// wireReminder is the remote shape of a reminder. The local Synced flag
// never leaves the device.
type wireReminder struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Time           string     `json:"time"`
	Date           string     `json:"date"`
	Completed      bool       `json:"completed"`
	NotificationID *string    `json:"notificationId"`
	UserID         *string    `json:"userId"`
	SyncedAt       *time.Time `json:"syncedAt,omitempty"`
}

func toWire(r reminder.Reminder) wireReminder {
	return wireReminder{
		ID:             r.ID,
		Title:          r.Title,
		Time:           r.Time,
		Date:           r.Date,
		Completed:      r.Completed,
		NotificationID: r.NotificationID,
		UserID:         r.UserID,
		SyncedAt:       r.SyncedAt,
	}
}

func (w wireReminder) reminder() reminder.Reminder {
	return reminder.Reminder{
		ID:             w.ID,
		Title:          w.Title,
		Time:           w.Time,
		Date:           w.Date,
		Completed:      w.Completed,
		NotificationID: w.NotificationID,
		UserID:         w.UserID,
		SyncedAt:       w.SyncedAt,
	}
}

// FetchReminders returns every remote reminder for the configured user.
func (c *Client) FetchReminders(ctx context.Context) ([]reminder.Reminder, error) {
	path := "/reminders"
	if c.userID != "" {
		path += "?userId=" + url.QueryEscape(c.userID)
	}

	var resp struct {
		Reminders []wireReminder `json:"reminders"`
	}
	if err := c.doJSON(ctx, "fetch reminders", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]reminder.Reminder, len(resp.Reminders))
	for i, w := range resp.Reminders {
		out[i] = w.reminder()
	}
	return out, nil
}

// UpsertReminders pushes list to the bulk endpoint, which merges on id.
// Reminders without a user id are attributed to the configured user.
func (c *Client) UpsertReminders(ctx context.Context, list []reminder.Reminder) error {
	payload := struct {
		Reminders []wireReminder `json:"reminders"`
	}{Reminders: make([]wireReminder, len(list))}

	for i, r := range list {
		w := toWire(r)
		if w.UserID == nil && c.userID != "" {
			uid := c.userID
			w.UserID = &uid
		}
		payload.Reminders[i] = w
	}
	return c.doJSON(ctx, "upsert reminders", http.MethodPost, "/reminders/bulk", payload, nil)
}

// UpdateStatus sets the completion flag of one remote reminder. It returns
// the server's new SyncedAt stamp, or nil if the server did not send one.
func (c *Client) UpdateStatus(ctx context.Context, id string, completed bool) (*time.Time, error) {
	req := map[string]bool{"completed": completed}
	var resp struct {
		SyncedAt *time.Time `json:"syncedAt"`
	}
	path := "/reminders/" + url.PathEscape(id) + "/status"
	if err := c.doJSON(ctx, "update reminder status", http.MethodPatch, path, req, &resp); err != nil {
		return nil, err
	}
	return resp.SyncedAt, nil
}

// DeleteReminder removes one remote reminder.
func (c *Client) DeleteReminder(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete reminder", http.MethodDelete, "/reminders/"+url.PathEscape(id), nil, nil)
}
