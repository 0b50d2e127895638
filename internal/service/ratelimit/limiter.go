package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 100
	DefaultWindow      = time.Hour
)

// Limiter is a sliding-window counter per key. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	m      map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New admits at most maxRequests per key within any trailing window.
// Non-positive values fall back to 100 per hour.
func New(maxRequests int, window time.Duration, opts ...Option) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		m:      make(map[string][]time.Time),
		max:    maxRequests,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsAllowed prunes timestamps older than the window, then records and admits
// the request if the key is under its limit. Rejections are not recorded.
func (l *Limiter) IsAllowed(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.m[key]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	stamps = stamps[i:]

	if len(stamps) >= l.max {
		l.m[key] = stamps
		return false
	}
	l.m[key] = append(stamps, now)
	return true
}

// RetryAfter reports how long until key's oldest recorded request leaves the window.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.m[key]
	if len(stamps) < l.max {
		return 0
	}
	wait := stamps[0].Add(l.window).Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (l *Limiter) Window() time.Duration { return l.window }
