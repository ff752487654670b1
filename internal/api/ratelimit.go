package api

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow admits at most limit calls in any window-long interval.
//
// It keeps the timestamps of admitted calls; when the window is full, Wait
// sleeps until the oldest timestamp falls out of the window.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time // Admission times, oldest first

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSlidingWindow creates a limiter allowing limit calls per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit < 1 {
		limit = 1
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		calls:  make([]time.Time, 0, limit),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Wait blocks until a slot is free and records the call.
// It returns how long the caller was held back.
func (w *SlidingWindow) Wait(ctx context.Context) (time.Duration, error) {
	var waited time.Duration

	for {
		delay, ok := w.reserve()
		if ok {
			return waited, nil
		}

		if err := w.sleep(ctx, delay); err != nil {
			return waited, err
		}
		waited += delay
	}
}

// Delay returns how long a call made now would have to wait.
func (w *SlidingWindow) Delay() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.calls) < w.limit {
		return 0
	}
	return w.calls[0].Add(w.window).Sub(now)
}

// Len returns the number of calls inside the current window.
func (w *SlidingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	return len(w.calls)
}

// reserve records a call if the window has room, otherwise returns the
// time until the oldest call expires.
func (w *SlidingWindow) reserve() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)

	if len(w.calls) < w.limit {
		w.calls = append(w.calls, now)
		return 0, true
	}

	return w.calls[0].Add(w.window).Sub(now), false
}

// evict drops calls that are window or more in the past.
func (w *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)

	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
