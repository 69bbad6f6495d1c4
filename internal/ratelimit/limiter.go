package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a per-credential requests-per-minute budget with a token
// bucket that refills continuously. Each credential gets one rate.Limiter,
// which performs its own atomic reserve-and-check; the mutex only guards the
// bucket map.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit rate.Limit
	burst int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func New(perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
	}
	go l.evictStale()
	return l
}

// Admit consumes one slot for the credential. When the budget is exhausted
// it reports the wait until at least one slot frees, without consuming.
func (l *Limiter) Admit(credential string, now time.Time) (time.Duration, bool) {
	b := l.bucket(credential, now)

	res := b.ReserveN(now, 1)
	if !res.OK() {
		return time.Minute, false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

func (l *Limiter) bucket(credential string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[credential]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[credential] = b
	}
	b.lastSeen = now
	return b.limiter
}

// evictStale drops buckets idle long enough to have fully refilled, so the
// map does not grow without bound across many credentials.
func (l *Limiter) evictStale() {
	for {
		time.Sleep(time.Minute)
		cutoff := time.Now().Add(-3 * time.Minute)
		l.mu.Lock()
		for credential, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, credential)
			}
		}
		l.mu.Unlock()
	}
}
