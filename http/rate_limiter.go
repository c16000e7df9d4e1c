package http

import (
	"sync"
	"time"
)

const (
	idleBucketTTL   = 1 * time.Hour
	cleanupInterval = 30 * time.Minute
)

type sourceBucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-source token bucket that refills continuously at
// limit tokens per window.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	sources map[string]*sourceBucket
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter returns a limiter allowing limit requests per window for
// each source. A limit of zero or less disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		sources: make(map[string]*sourceBucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stop:
			return
		}
	}
}

func (r *RateLimiter) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for source, b := range r.sources {
		if now.Sub(b.lastSeen) > idleBucketTTL {
			delete(r.sources, source)
		}
	}
}

func (r *RateLimiter) Stop() {
	r.once.Do(func() { close(r.stop) })
}

// Allow consumes one token for source and reports whether one was left.
func (r *RateLimiter) Allow(source string) bool {
	if r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.sources[source]
	if !ok {
		b = &sourceBucket{tokens: float64(r.limit), lastSeen: now}
		r.sources[source] = b
	}

	elapsed := now.Sub(b.lastSeen)
	if elapsed > 0 {
		b.tokens += float64(r.limit) * elapsed.Seconds() / r.window.Seconds()
		if b.tokens > float64(r.limit) {
			b.tokens = float64(r.limit)
		}
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
