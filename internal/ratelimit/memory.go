package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Defaults for the referral endpoint: five requests per trailing minute.
const (
	DefaultWindow = time.Minute
	DefaultMax    = 5
)

// SlidingWindow is an in-process sliding-log limiter. Each key keeps the
// timestamps of its admitted requests inside the trailing window.
type SlidingWindow struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	window  time.Duration
	max     int
	now     func() time.Time
}

// NewSlidingWindow creates a limiter admitting max requests per window per key.
func NewSlidingWindow(window time.Duration, max int) *SlidingWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &SlidingWindow{
		windows: make(map[string][]time.Time),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it fits the budget.
// A refused request is not recorded, so the caller recovers as the window slides.
func (l *SlidingWindow) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.windows[key], now.Add(-l.window))
	if len(recent) >= l.max {
		l.windows[key] = recent
		return false
	}
	l.windows[key] = append(recent, now)
	return true
}

// Sweep drops keys with no timestamps left inside the window and returns how
// many were removed.
func (l *SlidingWindow) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, stamps := range l.windows {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (l *SlidingWindow) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Keys returns the number of tracked keys.
func (l *SlidingWindow) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order, so the survivors are a suffix.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[i:]...)
}
