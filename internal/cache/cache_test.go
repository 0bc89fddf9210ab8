package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/tether/internal/store"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) tick() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func testCache(t *testing.T) (*Cache, *clock) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := &clock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := New(db.KV(nil), nil)
	c.Now = clk.tick
	return c, clk
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"buy milk today", "buy milk today", 1.0},
		{"Buy  MILK today", "buy milk today", 1.0},
		{"buy milk today", "buy some milk today", 0.75},
		{"call mom about the dinner", "call mom about the dinner tonight", 5.0 / 6.0},
		{"alpha beta", "gamma delta", 0},
		{"", "", 0},
		{"milk milk milk", "milk", 1.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9, "%q vs %q", tt.a, tt.b)
	}
}

func TestFindMatchExact(t *testing.T) {
	c, _ := testCache(t)
	c.Add("buy milk today", "buy milk")

	got, ok := c.FindMatch("buy milk today")
	require.True(t, ok)
	assert.Equal(t, "buy milk", got)
}

func TestFindMatchNearDuplicate(t *testing.T) {
	c, _ := testCache(t)
	c.Add("call mom about the dinner", "Call Mom about dinner.")

	got, ok := c.FindMatch("call mom about the dinner tonight")
	require.True(t, ok)
	assert.Equal(t, "Call Mom about dinner.", got)
}

func TestFindMatchBelowThreshold(t *testing.T) {
	c, _ := testCache(t)
	c.Add("buy milk today", "buy milk")
	c.Add("walk the dog", "Walk the dog")

	// One extra word out of four distinct is 0.75.
	_, ok := c.FindMatch("buy some milk today")
	assert.False(t, ok)

	_, ok = c.FindMatch("pay the electric bill")
	assert.False(t, ok)
}

func TestFindMatchBumpsUsage(t *testing.T) {
	c, _ := testCache(t)
	c.Add("buy milk today", "buy milk")
	before := c.Entries()[0]

	_, ok := c.FindMatch("buy milk today")
	require.True(t, ok)

	after := c.Entries()[0]
	assert.Equal(t, 2, after.Uses)
	assert.Greater(t, after.Timestamp, before.Timestamp)
}

func TestFindMatchPrefersHighestThenFirst(t *testing.T) {
	c, _ := testCache(t)
	c.Threshold = 0.5
	c.Add("pick up kids at school", "partial")
	c.Add("pick up the kids at school", "exact")
	c.Add("pick up the kids at school", "exact newer")

	// Equal uses rank newest first, so both exact entries tie at 1.0 and the
	// first one in cache order wins.
	require.Equal(t, []string{"exact newer", "exact", "partial"}, cleanedOf(c.Entries()))

	got, ok := c.FindMatch("pick up the kids at school")
	require.True(t, ok)
	assert.Equal(t, "exact newer", got)

	// A hit does not re-rank.
	assert.Equal(t, []string{"exact newer", "exact", "partial"}, cleanedOf(c.Entries()))
}

func cleanedOf(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Cleaned
	}
	return out
}

func TestAddRanksByUsesThenRecency(t *testing.T) {
	c, _ := testCache(t)
	c.Add("one", "1")
	c.Add("two", "2")
	c.FindMatch("one")
	c.Add("three", "3")

	assert.Equal(t, []string{"1", "3", "2"}, cleanedOf(c.Entries()))
}

func TestAddCapsSize(t *testing.T) {
	c, _ := testCache(t)

	for i := 0; i < 100; i++ {
		c.Add(fmt.Sprintf("note %d", i), fmt.Sprintf("cleaned %d", i))
	}
	require.Len(t, c.Entries(), 100)

	c.Add("note 100", "cleaned 100")
	entries := c.Entries()
	require.Len(t, entries, 100)

	for _, e := range entries {
		assert.NotEqual(t, "note 0", e.Raw, "oldest entry should be evicted")
	}
	assert.Equal(t, "note 100", entries[0].Raw)
}

func TestAddEvictsLowestUsage(t *testing.T) {
	c, _ := testCache(t)
	c.MaxSize = 3

	c.Add("alpha", "a")
	c.Add("bravo", "b")
	c.Add("charlie", "c")
	c.FindMatch("alpha")
	c.FindMatch("charlie")
	c.FindMatch("alpha")

	// bravo (uses 1, older) and the new delta (uses 1, newer) compete for the last slot.
	c.Add("delta", "d")
	assert.Equal(t, []string{"a", "c", "d"}, cleanedOf(c.Entries()))
}

func TestClearOldEntries(t *testing.T) {
	c, clk := testCache(t)
	c.Add("stale", "stale")
	c.Add("popular", "popular")
	for i := 0; i < 5; i++ {
		c.FindMatch("popular")
	}
	c.Add("fresh", "fresh")

	// Jump past the retention window.
	clk.now = clk.now.Add(31 * 24 * time.Hour)
	c.Add("recent", "recent")
	c.Now = func() time.Time { return clk.now.Add(24 * time.Hour) }

	removed := c.ClearOldEntries()
	assert.Equal(t, 2, removed, "stale and fresh are older than 30 days")
	assert.ElementsMatch(t, []string{"popular", "recent"}, cleanedOf(c.Entries()))
}

func TestClearOldEntriesKeepsBoundary(t *testing.T) {
	c, clk := testCache(t)
	c.Add("edge", "edge")
	added := clk.now

	c.Now = func() time.Time { return added.Add(DefaultRetention) }
	assert.Equal(t, 0, c.ClearOldEntries())

	c.Now = func() time.Time { return added.Add(DefaultRetention + time.Millisecond) }
	assert.Equal(t, 1, c.ClearOldEntries())
}

func TestCorruptCacheReadsEmpty(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	kv := db.KV(nil)
	kv.Set(store.KeyTranscripts, "{{")

	c := New(kv, nil)
	_, ok := c.FindMatch("anything")
	assert.False(t, ok)

	c.Add("anything", "Anything")
	got, ok := c.FindMatch("anything")
	require.True(t, ok)
	assert.Equal(t, "Anything", got)
}

func TestHitsFromTwoHandlesAllCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.db")
	stamp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	var caches []*Cache
	for range 2 {
		db, err := store.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		c := New(db.KV(nil), nil)
		c.Now = func() time.Time { return stamp }
		caches = append(caches, c)
	}
	caches[0].Add("buy milk tomorrow", "Buy milk tomorrow.")

	var wg sync.WaitGroup
	for _, c := range caches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 15 {
				_, ok := c.FindMatch("buy milk tomorrow")
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()

	entries := caches[1].Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 31, entries[0].Uses)
}
