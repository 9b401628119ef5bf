package notify

import (
	"sync"
	"time"
)

// RateLimiter counts sends per key over a sliding window.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
}

// NewRateLimiter returns a limiter over window reading time from now.
func NewRateLimiter(window time.Duration, now func() time.Time) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{window: window, now: now, hits: make(map[string][]time.Time)}
}

// Allow records a send for key and returns true if fewer than limit sends
// happened in the window. A limit of zero rejects every send.
func (l *RateLimiter) Allow(key string, limit int) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	hits := prune(l.hits[key], now.Add(-l.window))
	if len(hits) >= limit {
		l.hits[key] = hits
		return false
	}
	l.hits[key] = append(hits, now)
	return true
}

// Count returns the sends recorded for key inside the window.
func (l *RateLimiter) Count(key string) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(prune(l.hits[key], now.Add(-l.window)))
}

// Prune drops timestamps outside the window for every key and returns how
// many were removed.
func (l *RateLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, hits := range l.hits {
		kept := prune(hits, now.Add(-l.window))
		removed += len(hits) - len(kept)
		if len(kept) == 0 {
			delete(l.hits, k)
			continue
		}
		l.hits[k] = kept
	}
	return removed
}

// Forget drops all state for key.
func (l *RateLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.hits, key)
	l.mu.Unlock()
}

// prune keeps timestamps strictly after start. hits is in ascending order.
func prune(hits []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(start) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}
