package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether a caller identified by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter allows at most limit calls per key in any window
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

type window struct {
	requests []time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow checks if a request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}

	now := l.now()
	w.requests = trim(w.requests, now.Add(-l.windowSize))

	if len(w.requests) >= l.limit {
		return false, nil
	}
	w.requests = append(w.requests, now)
	return true, nil
}

// Reset resets the rate limit for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// Sweep drops keys with no requests inside the window and returns how many
// were dropped
func (l *SlidingWindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now().Add(-l.windowSize)
	dropped := 0
	for key, w := range l.windows {
		w.requests = trim(w.requests, start)
		if len(w.requests) == 0 {
			delete(l.windows, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps every interval until ctx is done
func (l *SlidingWindowLimiter) Run(ctx context.Context, interval time.Duration) {
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

// trim removes requests at or before start; requests are in time order
func trim(requests []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(start) {
		i++
	}
	return requests[i:]
}

// PrefixedLimiter namespaces keys so one store can hold several limits
type PrefixedLimiter struct {
	prefix  string
	limiter RateLimiter
}

// NewIPRateLimiter limits callers by client IP
func NewIPRateLimiter(limiter RateLimiter) *PrefixedLimiter {
	return &PrefixedLimiter{prefix: "ip:", limiter: limiter}
}

// NewSessionRateLimiter limits callers by board session
func NewSessionRateLimiter(limiter RateLimiter) *PrefixedLimiter {
	return &PrefixedLimiter{prefix: "session:", limiter: limiter}
}

// Allow checks if a request for key is allowed
func (l *PrefixedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(ctx, l.prefix+key)
}

// Reset resets the rate limit for key
func (l *PrefixedLimiter) Reset(ctx context.Context, key string) error {
	return l.limiter.Reset(ctx, l.prefix+key)
}
