// Package queue holds voice recordings whose transcription could not reach
// the network and retries them later, at least once and at most MaxRetries times.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/tether/internal/connectivity"
	"github.com/lazypower/tether/internal/store"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// ErrBusy is returned by Process while another drain is in flight.
var ErrBusy = errors.New("offline queue: drain already in progress")

// Item is one pending transcription.
type Item struct {
	ID             string `json:"id"`
	ResourceHandle string `json:"resourceHandle"` // path of the recorded audio
	Retries        int    `json:"retries"`
	Timestamp      int64  `json:"timestamp"` // enqueue time, unix millis
}

func (it Item) same(other Item) bool {
	if it.ID != "" || other.ID != "" {
		return it.ID == other.ID
	}
	// Items written without an id.
	return it.ResourceHandle == other.ResourceHandle && it.Timestamp == other.Timestamp
}

// Transcriber submits a recording and returns its transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, handle string) (string, error)
}

// CompleteFunc receives each successfully transcribed item.
type CompleteFunc func(ctx context.Context, item Item, transcript string)

// Report summarizes one Process pass.
type Report struct {
	Offline   bool `json:"offline"`
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Abandoned int  `json:"abandoned"`
	Remaining int  `json:"remaining"`
	Deferred  bool `json:"deferred"` // pass stopped because Allow refused
}

// Queue is the durable offline transcription queue.
type Queue struct {
	kv          store.KV
	transcriber Transcriber
	probe       connectivity.Probe
	log         *slog.Logger

	MaxRetries int
	RetryDelay time.Duration // cooldown after a failed item, before the next one
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error

	// Allow, when set, is asked before each submission. A false answer ends
	// the pass and leaves the remaining items queued.
	Allow func() bool

	running atomic.Bool
}

// New creates a Queue with the default retry policy.
func New(kv store.KV, transcriber Transcriber, probe connectivity.Probe, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		kv:          kv,
		transcriber: transcriber,
		probe:       probe,
		log:         logger,
		MaxRetries:  DefaultMaxRetries,
		RetryDelay:  DefaultRetryDelay,
		Now:         time.Now,
		Sleep:       sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Add appends a new item and persists the queue before returning.
func (q *Queue) Add(handle string) Item {
	it := Item{ID: uuid.NewString(), ResourceHandle: handle, Timestamp: q.Now().UnixMilli()}
	q.update(func(items []Item) []Item {
		return append(items, it)
	})
	q.log.Info("queued transcription for retry", "handle", handle)
	return it
}

// Items returns the persisted queue.
func (q *Queue) Items() []Item {
	return q.load()
}

// Running reports whether a drain is in flight.
func (q *Queue) Running() bool { return q.running.Load() }

// Process drains the queue once, one item at a time. It does nothing while
// offline and returns ErrBusy if another drain is running. Items that already
// used all their retries are dropped without calling onComplete.
func (q *Queue) Process(ctx context.Context, onComplete CompleteFunc) (Report, error) {
	if !q.running.CompareAndSwap(false, true) {
		return Report{}, ErrBusy
	}
	defer q.running.Store(false)

	var rep Report
	if !q.probe.Online(ctx) {
		rep.Offline = true
		rep.Remaining = len(q.Items())
		return rep, nil
	}

	pending := q.Items()
	for i, snap := range pending {
		if err := ctx.Err(); err != nil {
			rep.Remaining = len(q.Items())
			return rep, err
		}

		it, ok := q.current(snap)
		if !ok {
			continue
		}
		if it.Retries >= q.MaxRetries {
			q.remove(it)
			rep.Abandoned++
			q.log.Warn("abandoned queued transcription", "handle", it.ResourceHandle, "retries", it.Retries)
			continue
		}
		if q.Allow != nil && !q.Allow() {
			rep.Deferred = true
			q.log.Info("offline queue pass held back by quota", "handle", it.ResourceHandle)
			break
		}

		rep.Attempted++
		transcript, err := q.transcriber.Transcribe(ctx, it.ResourceHandle)
		if err == nil {
			if onComplete != nil {
				onComplete(ctx, it, transcript)
			}
			q.remove(it)
			rep.Delivered++
			continue
		}

		rep.Failed++
		retries := q.bump(it)
		q.log.Warn("queued transcription failed", "handle", it.ResourceHandle, "retries", retries, "error", err)

		if i < len(pending)-1 {
			if err := q.Sleep(ctx, q.RetryDelay); err != nil {
				rep.Remaining = len(q.Items())
				return rep, err
			}
		}
	}

	rep.Remaining = len(q.Items())
	return rep, nil
}

// Drain calls Process every interval until ctx is done.
func (q *Queue) Drain(ctx context.Context, interval time.Duration, onComplete CompleteFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := q.Process(ctx, onComplete)
			switch {
			case errors.Is(err, ErrBusy):
			case err != nil:
				q.log.Warn("offline queue drain stopped", "error", err)
			case rep.Attempted > 0 || rep.Abandoned > 0:
				q.log.Info("offline queue drained", "delivered", rep.Delivered, "failed", rep.Failed,
					"abandoned", rep.Abandoned, "remaining", rep.Remaining)
			}
		}
	}
}

func (q *Queue) current(snap Item) (Item, bool) {
	for _, it := range q.Items() {
		if it.same(snap) {
			return it, true
		}
	}
	return Item{}, false
}

func (q *Queue) remove(target Item) {
	q.update(func(items []Item) []Item {
		out := items[:0]
		for _, it := range items {
			if !it.same(target) {
				out = append(out, it)
			}
		}
		return out
	})
}

func (q *Queue) bump(target Item) int {
	retries := target.Retries + 1
	q.update(func(items []Item) []Item {
		for i := range items {
			if items[i].same(target) {
				items[i].Retries++
				retries = items[i].Retries
			}
		}
		return items
	})
	return retries
}

// load reads the persisted queue; malformed data reads as empty.
func (q *Queue) load() []Item {
	var items []Item
	if _, err := store.LoadJSON(q.kv, store.KeyOfflineQueue, &items); err != nil {
		q.log.Warn("stored offline queue unreadable, treating as empty", "error", err)
		return nil
	}
	return items
}

// update applies fn to the persisted queue inside one store transaction.
func (q *Queue) update(fn func([]Item) []Item) {
	err := store.UpdateJSON(q.kv, store.KeyOfflineQueue, func(items *[]Item, _ bool) bool {
		*items = fn(*items)
		if *items == nil {
			*items = []Item{}
		}
		return true
	})
	if err != nil {
		q.log.Warn("offline queue update", "error", err)
	}
}
