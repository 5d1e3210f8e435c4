package service

import (
	"math"
	"sync"
	"time"
)

// SubmissionLimiter throttles uploads, comments and replies per client with a
// token bucket per key. A nil *SubmissionLimiter allows everything.
type SubmissionLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      float64 // tokens added per second
	burst     float64 // maximum tokens
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// idleBucketTTL is how long an untouched bucket is kept before it is dropped.
const idleBucketTTL = 10 * time.Minute

// NewSubmissionLimiter allows burst submissions at once per key, refilling at
// perMinute. A non-positive perMinute disables limiting and returns nil.
// A nil now defaults to time.Now.
func NewSubmissionLimiter(perMinute, burst int, now func() time.Time) *SubmissionLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	if now == nil {
		now = time.Now
	}
	return &SubmissionLimiter{
		buckets:   make(map[string]*bucket),
		rate:      float64(perMinute) / 60,
		burst:     float64(burst),
		now:       now,
		lastSweep: now(),
	}
}

// Allow consumes one token for key. When the bucket is empty it returns false
// and how long until the next token is available.
func (l *SubmissionLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*l.rate, l.burst)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration(math.Ceil((1-b.tokens)/l.rate)) * time.Second
	return false, wait
}

// Len reports how many clients are currently tracked.
func (l *SubmissionLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle buckets at most once per TTL. Caller holds l.mu.
func (l *SubmissionLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleBucketTTL {
		return
	}
	cutoff := now.Add(-idleBucketTTL)
	for key, b := range l.buckets {
		if b.last.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
