// Package usage enforces the monthly voice recording quota.
package usage

import (
	"log/slog"
	"time"

	"github.com/lazypower/tether/internal/store"
)

const DefaultMonthlyLimit = 50

// Counter is the persisted usage for one calendar month.
type Counter struct {
	Count int `json:"count"`
	Month int `json:"month"` // 1-12, local clock
	Year  int `json:"year"`
}

// Limiter counts recordings per local calendar month. The count resets
// lazily the first time a new month is observed.
type Limiter struct {
	kv  store.KV
	log *slog.Logger

	Limit int
	Now   func() time.Time
}

// New creates a Limiter with the default monthly limit.
func New(kv store.KV, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{kv: kv, log: logger, Limit: DefaultMonthlyLimit, Now: time.Now}
}

// Current returns this month's usage, persisting a reset if the stored
// counter belongs to another month.
func (l *Limiter) Current() Counter {
	return l.update(nil)
}

// Increment records one recording and returns the new count.
func (l *Limiter) Increment() int {
	return l.update(func(c *Counter) { c.Count++ }).Count
}

// update rolls the counter over to the current month and applies bump, all in
// one store transaction. A nil bump writes only when the month changed.
func (l *Limiter) update(bump func(*Counter)) Counter {
	now := l.Now()
	fresh := Counter{Month: int(now.Month()), Year: now.Year()}

	var out Counter
	err := store.UpdateJSON(l.kv, store.KeyUsage, func(c *Counter, found bool) bool {
		write := false
		if !found {
			*c = fresh
		} else if c.Month != fresh.Month || c.Year != fresh.Year {
			*c, write = fresh, true
		}
		if bump != nil {
			bump(c)
			write = true
		}
		out = *c
		return write
	})
	if err != nil {
		l.log.Warn("usage update", "error", err)
	}
	return out
}

// CanRecord reports whether another recording fits in this month's quota.
func (l *Limiter) CanRecord() bool {
	return l.Current().Count < l.Limit
}

// Remaining returns how many recordings are left this month.
func (l *Limiter) Remaining() int {
	return max(0, l.Limit-l.Current().Count)
}
