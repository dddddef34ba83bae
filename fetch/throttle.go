package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Throttle admits at most rate requests per window.
type Throttle struct {
	rate   int
	window time.Duration
	ticker *time.Ticker

	mu       sync.Mutex
	attempts []time.Time
}

func NewThrottle(rate int, window time.Duration) *Throttle {
	return &Throttle{
		rate:   rate,
		window: window,
		ticker: time.NewTicker(window / time.Duration(rate)),
	}
}

// Wait blocks until a request may go out.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.ticker.C:
		}

		t.mu.Lock()
		att := t.attempts
		if len(att) < t.rate || time.Since(att[0]) > t.window {
			att = append(att, time.Now())
			if len(att) > t.rate {
				att = att[1:]
			}
			t.attempts = att
			t.mu.Unlock()
			return nil
		}
		t.mu.Unlock()
	}
}

func (t *Throttle) Stop() { t.ticker.Stop() }

// backoff grows the cooldown for as long as the server keeps refusing.
type backoff struct {
	min  time.Duration
	from atomic.Pointer[time.Time]
}

func (b *backoff) next() time.Duration {
	last := b.from.Load()
	now := time.Now()
	b.from.CompareAndSwap(nil, &now)
	if last != nil {
		return max(b.min, time.Since(*last))
	}
	return b.min
}

func (b *backoff) reset() { b.from.Store(nil) }

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
