package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultIdleTTL       = time.Hour
)

type memoryEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory. A background goroutine
// drops buckets idle for longer than the idle ttl; Close stops it.
type MemoryLimiter struct {
	limiters sync.Map
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// MemoryOption customizes a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.idleTTL = ttl }
}

// NewMemoryLimiter allows attempts per window for each key, refilling evenly.
func NewMemoryLimiter(attempts int, window time.Duration, sweepInterval time.Duration, opts ...MemoryOption) *MemoryLimiter {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if attempts <= 0 {
		attempts = 1
	}
	l := &MemoryLimiter{
		limit:   rate.Every(window / time.Duration(attempts)),
		burst:   attempts,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.sweepLoop(sweepInterval)
	return l
}

// Allow consumes one token from key's bucket.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	limiter := l.limiterFor(key, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, RetryAfter: time.Second}, nil
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return Decision{Allowed: true}, nil
	}
	reservation.CancelAt(now)
	return Decision{Allowed: false, RetryAfter: delay}, nil
}

func (l *MemoryLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	if val, ok := l.limiters.Load(key); ok {
		entry := val.(*memoryEntry)
		entry.mu.Lock()
		entry.lastAccess = now
		entry.mu.Unlock()
		return entry.limiter
	}
	entry := &memoryEntry{limiter: rate.NewLimiter(l.limit, l.burst), lastAccess: now}
	actual, _ := l.limiters.LoadOrStore(key, entry)
	return actual.(*memoryEntry).limiter
}

// Sweep removes buckets idle since before now minus the idle ttl and returns how many it removed.
func (l *MemoryLimiter) Sweep() int {
	threshold := l.now().Add(-l.idleTTL)
	removed := 0
	l.limiters.Range(func(key, value any) bool {
		entry := value.(*memoryEntry)
		entry.mu.Lock()
		stale := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()
		if stale {
			l.limiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (l *MemoryLimiter) sweepLoop(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Close stops the sweeper and waits for it to exit.
func (l *MemoryLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	<-l.done
	return nil
}
