package usage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/tether/internal/store"
)

func testLimiter(t *testing.T, now *time.Time) (*Limiter, store.KV) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	kv := db.KV(nil)
	l := New(kv, nil)
	l.Now = func() time.Time { return *now }
	return l, kv
}

func TestCurrentWithoutState(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)
	l, kv := testLimiter(t, &now)

	c := l.Current()
	assert.Equal(t, Counter{Count: 0, Month: 5, Year: 2026}, c)

	_, ok := kv.Get(store.KeyUsage)
	assert.False(t, ok, "reading does not create state")
}

func TestQuotaExhaustedThenMonthRollsOver(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)
	l, _ := testLimiter(t, &now)

	for i := 1; i <= 50; i++ {
		require.True(t, l.CanRecord(), "recording %d", i)
		assert.Equal(t, i, l.Increment())
	}
	assert.False(t, l.CanRecord())
	assert.Equal(t, 0, l.Remaining())

	now = time.Date(2026, 6, 1, 0, 0, 1, 0, time.Local)
	assert.True(t, l.CanRecord())
	assert.Equal(t, 50, l.Remaining())
	assert.Equal(t, Counter{Count: 0, Month: 6, Year: 2026}, l.Current())
}

func TestResetIsPersisted(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)
	l, kv := testLimiter(t, &now)
	l.Increment()
	l.Increment()

	now = now.AddDate(0, 1, 0)
	l.Current()

	var stored Counter
	ok, err := store.LoadJSON(kv, store.KeyUsage, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, stored.Count)
	assert.Equal(t, 6, stored.Month)
}

func TestSameMonthNextYearResets(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)
	l, _ := testLimiter(t, &now)
	l.Increment()

	now = now.AddDate(1, 0, 0)
	assert.Equal(t, 0, l.Current().Count)
}

func TestRemainingNeverNegative(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)
	l, kv := testLimiter(t, &now)
	require.NoError(t, store.SaveJSON(kv, store.KeyUsage, Counter{Count: 70, Month: 5, Year: 2026}))

	assert.Equal(t, 0, l.Remaining())
	assert.False(t, l.CanRecord())
}

func TestCorruptUsageReadsAsUnused(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)
	l, kv := testLimiter(t, &now)
	kv.Set(store.KeyUsage, "garbage")

	assert.Equal(t, 0, l.Current().Count)
	assert.Equal(t, 1, l.Increment())
	assert.Equal(t, 1, l.Current().Count)
}

func TestIncrementFromTwoHandlesCountsEveryRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.db")
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.Local)

	var wg sync.WaitGroup
	var limiters []*Limiter
	for range 2 {
		db, err := store.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		l := New(db.KV(nil), nil)
		l.Limit = 100
		l.Now = func() time.Time { return now }
		limiters = append(limiters, l)
	}
	for _, l := range limiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				l.Increment()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, limiters[0].Current().Count)
	assert.Equal(t, 60, limiters[1].Remaining())
}
