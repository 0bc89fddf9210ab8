package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stamp(t *testing.T, s string) *time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return &ts
}

func TestMerge_RemoteStampBeatsUnstampedLocal(t *testing.T) {
	t1 := stamp(t, "2026-03-01T10:00:00Z")
	local := []Reminder{{ID: "1", Title: "A"}}
	remote := []Reminder{{ID: "1", Title: "B", SyncedAt: t1}}

	got := Merge(local, remote)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "B", got[0].Title)
	assert.True(t, got[0].Synced)
}

func TestMerge_LocalOnlyUnstampedKept(t *testing.T) {
	local := []Reminder{
		{ID: "a", Title: "walk dog", Date: "2026-05-01", Time: "09:00"},
		{ID: "b", Title: "call bank", Synced: true},
	}

	got := Merge(local, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "walk dog", got[0].Title)
	assert.False(t, got[0].Synced)
	assert.Equal(t, "call bank", got[1].Title)
	assert.False(t, got[1].Synced, "locals are seeded unsynced")
}

func TestMerge_RemoteOnlyAddedSynced(t *testing.T) {
	got := Merge(nil, []Reminder{{ID: "r", Title: "from server"}})
	require.Len(t, got, 1)
	assert.True(t, got[0].Synced)
}

func TestMerge_NewerRemoteWins(t *testing.T) {
	old := stamp(t, "2026-03-01T10:00:00Z")
	newer := stamp(t, "2026-03-02T10:00:00Z")

	local := []Reminder{{ID: "1", Title: "old", SyncedAt: old}}
	remote := []Reminder{{ID: "1", Title: "new", SyncedAt: newer}}

	got := Merge(local, remote)
	assert.Equal(t, "new", got[0].Title)
	assert.True(t, got[0].Synced)
	assert.True(t, got[0].SyncedAt.Equal(*newer))
}

func TestMerge_NewerLocalKept(t *testing.T) {
	old := stamp(t, "2026-03-01T10:00:00Z")
	newer := stamp(t, "2026-03-02T10:00:00Z")

	local := []Reminder{{ID: "1", Title: "local edit", SyncedAt: newer}}
	remote := []Reminder{{ID: "1", Title: "stale", SyncedAt: old}}

	got := Merge(local, remote)
	assert.Equal(t, "local edit", got[0].Title)
	assert.False(t, got[0].Synced)
}

func TestMerge_UnstampedRemoteNeverReplacesLocal(t *testing.T) {
	local := []Reminder{{ID: "1", Title: "pending"}}
	remote := []Reminder{{ID: "1", Title: "other"}}

	got := Merge(local, remote)
	assert.Equal(t, "pending", got[0].Title)
	assert.False(t, got[0].Synced)
}

func TestMerge_EqualStampKeepsLocal(t *testing.T) {
	ts := stamp(t, "2026-03-01T10:00:00Z")
	local := []Reminder{{ID: "1", Title: "same", SyncedAt: ts}}
	remote := []Reminder{{ID: "1", Title: "same", SyncedAt: ts}}

	got := Merge(local, remote)
	assert.Equal(t, "same", got[0].Title)
	assert.True(t, got[0].Synced, "identical copies are confirmed synced")
}

func TestMerge_OrderLocalThenRemoteOnly(t *testing.T) {
	local := []Reminder{{ID: "c"}, {ID: "a"}}
	remote := []Reminder{{ID: "z"}, {ID: "a"}, {ID: "b"}}

	got := Merge(local, remote)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"c", "a", "z", "b"}, ids)
}

func TestMerge_DuplicateLocalIDsCollapse(t *testing.T) {
	got := Merge([]Reminder{{ID: "1", Title: "first"}, {ID: "1", Title: "second"}}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Title)
}

func TestMerge_Idempotent(t *testing.T) {
	t1 := stamp(t, "2026-03-01T10:00:00Z")
	t2 := stamp(t, "2026-03-02T10:00:00Z")
	t3 := stamp(t, "2026-03-03T10:00:00Z")

	local := []Reminder{
		{ID: "1", Title: "pending"},
		{ID: "2", Title: "stale", SyncedAt: t1},
		{ID: "3", Title: "fresh local", SyncedAt: t3},
		{ID: "4", Title: "local only"},
	}
	remote := []Reminder{
		{ID: "1", Title: "server 1", SyncedAt: t1},
		{ID: "2", Title: "server 2", SyncedAt: t2},
		{ID: "3", Title: "server 3", SyncedAt: t2},
		{ID: "5", Title: "server only", SyncedAt: t2},
		{ID: "6", Title: "server unstamped"},
	}

	once := Merge(local, remote)
	twice := Merge(once, remote)
	assert.Equal(t, once, twice)
}

func TestDueAt(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		date, clock string
		want        time.Time
		ok          bool
	}{
		{"2026-05-01", "14:30", time.Date(2026, 5, 1, 14, 30, 0, 0, loc), true},
		{"2026-05-01", "2:30 PM", time.Date(2026, 5, 1, 14, 30, 0, 0, loc), true},
		{"2026-05-01", "08:15:30", time.Date(2026, 5, 1, 8, 15, 30, 0, loc), true},
		{"2026-05-01", "noon", time.Time{}, false},
		{"May 1", "14:30", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := Reminder{Date: tt.date, Time: tt.clock}.DueAt(loc)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.date, tt.clock)
		if tt.ok {
			assert.True(t, tt.want.Equal(got), "%s %s: got %v", tt.date, tt.clock, got)
		}
	}
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Reminder{Date: "2026-05-01", Time: "13:00"}.Upcoming(now))
	assert.False(t, Reminder{Date: "2026-05-01", Time: "11:00"}.Upcoming(now))
	assert.False(t, Reminder{Date: "2026-05-02", Time: "13:00", Completed: true}.Upcoming(now))
	assert.False(t, Reminder{Date: "", Time: ""}.Upcoming(now))
}
