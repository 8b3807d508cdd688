package chat

import "time"

// RateLimiter is a sliding-window admission counter scoped to a single
// connection. It is owned by the connection's read loop and is not safe for
// concurrent use; cross-connection synchronization is deliberately absent.
//
// The window slides: a request is admitted as soon as the oldest recorded
// admission ages past windowMs, not at fixed bucket boundaries.
type RateLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time
	stamps []time.Time
}

// NewRateLimiter returns a limiter admitting at most max calls per window.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{window: window, max: max, now: time.Now}
}

// Admit reports whether one more request fits in the trailing window,
// recording it when it does. A rejected request is not recorded, so
// rejections never extend the penalty.
func (l *RateLimiter) Admit() bool {
	now := l.now()
	cutoff := now.Add(-l.window)
	drop := 0
	for drop < len(l.stamps) && !l.stamps[drop].After(cutoff) {
		drop++
	}
	l.stamps = l.stamps[drop:]

	if len(l.stamps) >= l.max {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}

// Reset clears all admission history, e.g. on reconnect.
func (l *RateLimiter) Reset() {
	l.stamps = nil
}
