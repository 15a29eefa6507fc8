package dispatcher

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window call counter keyed by platform and operation.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	calls  map[string][]time.Time
}

// NewRateLimiter allows limit calls per window for every key.
func NewRateLimiter(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    now,
		calls:  map[string][]time.Time{},
	}
}

// Allow records a call when the window has room. Otherwise it reports how long
// until the oldest call leaves the window.
func (l *RateLimiter) Allow(platform, operation string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := platform + "/" + operation
	now := l.now()
	cutoff := now.Add(-l.window)

	calls := l.calls[key]
	kept := calls[:0]
	for _, at := range calls {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if l.limit > 0 && len(kept) >= l.limit {
		l.calls[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}

	l.calls[key] = append(kept, now)
	return true, 0
}

// Used returns the number of calls inside the current window for a key.
func (l *RateLimiter) Used(platform, operation string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, at := range l.calls[platform+"/"+operation] {
		if at.After(cutoff) {
			n++
		}
	}
	return n
}
