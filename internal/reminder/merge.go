package reminder

import "time"

// Merge reconciles local with remote, last writer wins on SyncedAt.
//
// Every local reminder starts out unsynced. A remote reminder replaces the
// local one with the same id when there is no local copy, or when the remote
// carries a SyncedAt and the local copy has none or an older one. Otherwise
// the local copy is kept; it is marked synced only when it is identical to
// the remote copy. Output order is local order followed by remote-only ids in
// remote order.
//
// A local copy whose SyncedAt is newer than or equal to the remote's is kept;
// an older one loses.
func Merge(local, remote []Reminder) []Reminder {
	merged := make([]Reminder, 0, len(local)+len(remote))
	pos := make(map[string]int, len(local)+len(remote))

	for _, r := range local {
		r.Synced = false
		if i, ok := pos[r.ID]; ok {
			merged[i] = r
			continue
		}
		pos[r.ID] = len(merged)
		merged = append(merged, r)
	}

	for _, r := range remote {
		i, ok := pos[r.ID]
		if !ok {
			r.Synced = true
			pos[r.ID] = len(merged)
			merged = append(merged, r)
			continue
		}
		l := merged[i]
		if remoteWins(l.SyncedAt, r.SyncedAt) {
			r.Synced = true
			merged[i] = r
			continue
		}
		if sameRecord(l, r) {
			merged[i].Synced = true
		}
	}
	return merged
}

func remoteWins(local, remote *time.Time) bool {
	if remote == nil {
		return false
	}
	return local == nil || remote.After(*local)
}

// sameRecord compares every remote-visible field.
func sameRecord(a, b Reminder) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Time == b.Time &&
		a.Date == b.Date &&
		a.Completed == b.Completed &&
		equalString(a.NotificationID, b.NotificationID) &&
		equalString(a.UserID, b.UserID) &&
		equalTime(a.SyncedAt, b.SyncedAt)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
