// Package voice turns a recorded audio handle into cleaned reminder text,
// deferring to the offline queue when the network is not there.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lazypower/tether/internal/cache"
	"github.com/lazypower/tether/internal/connectivity"
	"github.com/lazypower/tether/internal/failure"
	"github.com/lazypower/tether/internal/queue"
	"github.com/lazypower/tether/internal/usage"
)

// ErrQuotaExceeded is returned when this month's recordings are used up.
var ErrQuotaExceeded = errors.New("monthly voice recording limit reached")

// Cleaner normalizes a raw transcript remotely.
type Cleaner interface {
	Cleanup(ctx context.Context, text string) (string, error)
}

// Result is the outcome of one capture.
type Result struct {
	Handle    string `json:"handle"`
	Raw       string `json:"raw,omitempty"`
	Cleaned   string `json:"cleaned,omitempty"`
	FromCache bool   `json:"fromCache"`
	Queued    bool   `json:"queued"`
	Remaining int    `json:"remaining"` // recordings left this month
}

// Pipeline wires the usage limiter, offline queue and transcription cache
// around the remote transcription and cleanup calls.
type Pipeline struct {
	Limiter     *usage.Limiter
	Queue       *queue.Queue
	Cache       *cache.Cache
	Transcriber queue.Transcriber
	Cleaner     Cleaner
	Probe       connectivity.Probe
	Log         *slog.Logger

	// Delivered receives results of queued recordings once they go through.
	Delivered func(Result)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

// Capture transcribes and cleans the recording at handle. When offline, or
// when the transcription call fails for network or server reasons, the
// recording is queued and the result has Queued set. Queued recordings hold
// a slot of the monthly quota until they are delivered or abandoned.
func (p *Pipeline) Capture(ctx context.Context, handle string) (Result, error) {
	if p.available() <= 0 {
		return Result{Handle: handle}, ErrQuotaExceeded
	}

	if !p.Probe.Online(ctx) {
		return p.enqueue(handle), nil
	}

	raw, err := p.Transcriber.Transcribe(ctx, handle)
	if err != nil {
		switch failure.KindOf(err) {
		case failure.Network, failure.Server:
			p.logger().Warn("transcription failed, queued for retry", "handle", handle, "error", err)
			return p.enqueue(handle), nil
		}
		return Result{Handle: handle}, fmt.Errorf("capture %s: %w", handle, err)
	}

	return p.finish(ctx, handle, raw), nil
}

// Complete is the offline queue callback for delivered recordings.
func (p *Pipeline) Complete(ctx context.Context, item queue.Item, transcript string) {
	res := p.finish(ctx, item.ResourceHandle, transcript)
	p.logger().Info("queued recording delivered", "handle", item.ResourceHandle, "cached", res.FromCache)
	if p.Delivered != nil {
		p.Delivered(res)
	}
}

// available is the quota left once every queued recording is delivered.
func (p *Pipeline) available() int {
	return p.Limiter.Remaining() - len(p.Queue.Items())
}

func (p *Pipeline) enqueue(handle string) Result {
	p.Queue.Add(handle)
	return Result{Handle: handle, Queued: true, Remaining: max(0, p.available())}
}

// finish cleans raw, through the cache when possible, and counts the recording.
func (p *Pipeline) finish(ctx context.Context, handle, raw string) Result {
	res := Result{Handle: handle, Raw: raw}

	if cleaned, ok := p.Cache.FindMatch(raw); ok {
		res.Cleaned, res.FromCache = cleaned, true
	} else {
		cleaned, err := p.Cleaner.Cleanup(ctx, raw)
		if err != nil {
			p.logger().Warn("cleanup failed, using raw transcript", "handle", handle, "error", err)
			res.Cleaned = raw
		} else {
			res.Cleaned = cleaned
			p.Cache.Add(raw, cleaned)
		}
	}

	p.Limiter.Increment()
	res.Remaining = max(0, p.available())
	return res
}
